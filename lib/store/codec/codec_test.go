package codec

import (
	"reflect"
	"testing"
)

// testCodecs is a map of codec name to factory function
var testCodecs = map[string]func() ICodec{
	"json":    NewJSONCodec,
	"gob":     NewGOBCodec,
	"cbor":    NewCBORCodec,
	"msgpack": NewMsgpackCodec,
}

type testDocument struct {
	Title string
	Words int
	Tags  []string
	Score float64
}

// testValues creates a set of test values of different shapes
func testValues() []testDocument {
	return []testDocument{
		{Title: "a", Words: 1, Tags: []string{"x"}, Score: 0.5},
		{Title: "a longer title with spaces", Words: 4096, Tags: []string{"x", "y", "z"}, Score: -12.25},
		{Title: "unicode: äöü ✓", Words: 0, Tags: []string{""}, Score: 1},
	}
}

// TestCodecRoundTrip tests that values can be encoded and decoded correctly
func TestCodecRoundTrip(t *testing.T) {
	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			c := factory()
			if c.Name() != name {
				t.Errorf("Name() = %q, want %q", c.Name(), name)
			}

			for i, v := range testValues() {
				data, err := c.Marshal(v)
				if err != nil {
					t.Fatalf("Failed to marshal value %d: %v", i, err)
				}

				var result testDocument
				if err := c.Unmarshal(data, &result); err != nil {
					t.Fatalf("Failed to unmarshal value %d: %v", i, err)
				}

				if !reflect.DeepEqual(v, result) {
					t.Errorf("Value %d mismatch:\nOriginal: %+v\nDecoded:  %+v", i, v, result)
				}
			}
		})
	}
}

// TestCodecScalars tests values that are not structs
func TestCodecScalars(t *testing.T) {
	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			c := factory()

			data, err := c.Marshal("plain string")
			if err != nil {
				t.Fatalf("Failed to marshal string: %v", err)
			}
			var s string
			if err := c.Unmarshal(data, &s); err != nil || s != "plain string" {
				t.Errorf("string round trip: got %q, err %v", s, err)
			}

			data, err = c.Marshal(int64(-42))
			if err != nil {
				t.Fatalf("Failed to marshal int: %v", err)
			}
			var n int64
			if err := c.Unmarshal(data, &n); err != nil || n != -42 {
				t.Errorf("int round trip: got %d, err %v", n, err)
			}
		})
	}
}

// TestCodecTruncated tests that truncated payloads fail to decode
func TestCodecTruncated(t *testing.T) {
	v := testValues()[1]

	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			c := factory()
			data, err := c.Marshal(v)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}

			var result testDocument
			if err := c.Unmarshal(data[:len(data)/2], &result); err == nil {
				t.Errorf("expected an error for a truncated payload")
			}
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range Names {
		c, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q) failed: %v", name, err)
		}
		if c.Name() != name {
			t.Errorf("ByName(%q).Name() = %q", name, c.Name())
		}
	}

	if c, err := ByName(""); err != nil || c.Name() != "json" {
		t.Errorf("empty name should select json")
	}
	if _, err := ByName("xml"); err == nil {
		t.Errorf("expected an error for an unknown codec")
	}
}

// BenchmarkMarshal benchmarks encoding for all codecs
func BenchmarkMarshal(b *testing.B) {
	v := testValues()[1]

	for name, factory := range testCodecs {
		b.Run(name, func(b *testing.B) {
			c := factory()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := c.Marshal(v); err != nil {
					b.Fatalf("Failed to marshal: %v", err)
				}
			}
		})
	}
}

// BenchmarkSize reports the encoded size for each codec
func BenchmarkSize(b *testing.B) {
	v := testValues()[1]

	for name, factory := range testCodecs {
		b.Run(name, func(b *testing.B) {
			data, err := factory().Marshal(v)
			if err != nil {
				b.Fatalf("Failed to marshal: %v", err)
			}

			// Report the size as a custom metric
			b.ReportMetric(float64(len(data)), "bytes")

			for i := 0; i < b.N; i++ {
				_ = data
			}
		})
	}
}
