package perf

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/kvmap/cmd/util"
	"github.com/ValentinKolb/kvmap/lib/dispatch"
	"github.com/ValentinKolb/kvmap/lib/future"
	"github.com/ValentinKolb/kvmap/lib/operation"
	"github.com/ValentinKolb/kvmap/lib/persist"
	"github.com/ValentinKolb/kvmap/lib/store"
	"github.com/google/uuid"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// PerfCmd measures the latency of every operation in every calling idiom
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the persistence router",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfCollection = "__perf"
	perfCount      = 1000
	perfNumThreads = 4
	perfValueSize  = 128
	perfSkip       = make([]string, 0)

	idioms     = []string{"sync", "async", "future", "operation"}
	operations = []string{"write", "read", "remove"}
)

func init() {
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Tests to skip (comma separated, operations or idioms - e.g. remove,future)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 4, util.WrapString("Number of goroutines issuing calls, each with its own connection"))
	key = "count"
	PerfCmd.Flags().Int(key, 1000, util.WrapString("How many calls to issue per test"))
	key = "value-size"
	PerfCmd.Flags().Int(key, 128, util.WrapString("The size of the stored values (in bytes)"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

// record is the value written by the benchmark
type record struct {
	Key   string
	Value []byte
}

func (r record) Identifier() string { return r.Key }

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	perfCount = viper.GetInt("count")
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfValueSize = viper.GetInt("value-size")
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	return nil
}

// result is the outcome of one test
type result struct {
	test   string
	timer  gometrics.Timer
	errors int64
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for the persistence router")

	cfg := util.GetConfig()
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(cfg.String())
	fmt.Printf("Threads: %d, Calls per test: %d, Value size: %dB\n", perfNumThreads, perfCount, perfValueSize)
	fmt.Println()

	database, err := util.OpenDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	registry := gometrics.NewRegistry()
	queue := operation.NewQueue("perf", cfg.MaxOperations)
	defer queue.Wait()

	fmt.Println("starting tests...")
	var results []result
	for _, idiom := range idioms {
		for _, op := range operations {
			test := op + "/" + idiom
			if shouldSkip(op) || shouldSkip(idiom) {
				fmt.Printf("%-20sskipped\n", test)
				continue
			}
			r := runTest(database, queue, registry, test, idiom, op)
			results = append(results, r)
			printResult(r)
		}
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}
	return nil
}

// runTest issues perfCount calls of op in idiom, spread over perfNumThreads connections
func runTest(database *store.Database, queue *operation.Queue, registry gometrics.Registry, test, idiom, op string) result {
	timer := gometrics.GetOrRegisterTimer(test, registry)
	var errCount atomic.Int64

	prefix := uuid.NewString()[:8]
	value := make([]byte, perfValueSize)

	var wg sync.WaitGroup
	for t := 0; t < perfNumThreads; t++ {
		wg.Add(1)
		go func(thread int) {
			defer wg.Done()
			conn := database.NewConnection()
			defer conn.Close()
			repo := persist.New(conn, persist.Objects[record]().In(perfCollection), persist.WithQueue(dispatch.Immediate))

			var records []record
			for i := thread; i < perfCount; i += perfNumThreads {
				records = append(records, record{Key: fmt.Sprintf("%s-%d", prefix, i), Value: value})
			}

			// reads and removes need existing values
			if op != "write" {
				if _, err := repo.WriteAll(records); err != nil {
					errCount.Add(int64(len(records)))
					return
				}
			}

			for _, r := range records {
				start := time.Now()
				err := call(repo, queue, idiom, op, r)
				timer.UpdateSince(start)
				if err != nil {
					errCount.Add(1)
				}
			}

			// cleanup
			if op != "remove" {
				_ = repo.RemoveAll(records)
			}
		}(t)
	}
	wg.Wait()

	return result{test: test, timer: timer, errors: errCount.Load()}
}

// call issues one operation in the given idiom
func call(repo *persist.Repository[record], queue *operation.Queue, idiom, op string, r record) error {
	switch op {
	case "write":
		return issue(idiom, queue,
			func() (record, error) { return repo.Write(r) },
			func(done func(record, error)) { repo.AsyncWrite(r, done) },
			func() *future.Future[record] { return repo.FutureWrite(r) },
			func() *operation.Task[record] { return repo.WriteOperation(r) },
		)
	case "read":
		return issue(idiom, queue,
			func() (persist.Lookup[record], error) {
				v, found, err := repo.Read(r.Key)
				return persist.Lookup[record]{Value: v, Found: found}, err
			},
			func(done func(persist.Lookup[record], error)) {
				repo.AsyncRead(r.Key, func(v record, found bool, err error) {
					done(persist.Lookup[record]{Value: v, Found: found}, err)
				})
			},
			func() *future.Future[persist.Lookup[record]] { return repo.FutureRead(r.Key) },
			func() *operation.Task[persist.Lookup[record]] { return repo.ReadOperation(r.Key) },
		)
	case "remove":
		return issue(idiom, queue,
			func() (struct{}, error) { return struct{}{}, repo.Remove(r) },
			func(done func(struct{}, error)) {
				repo.AsyncRemove(r, func(err error) { done(struct{}{}, err) })
			},
			func() *future.Future[struct{}] { return repo.FutureRemove(r) },
			func() *operation.Task[struct{}] { return repo.RemoveOperation(r) },
		)
	default:
		return fmt.Errorf("unknown operation %s", op)
	}
}

// issue runs one call in idiom and waits for its outcome
func issue[R any](
	idiom string,
	queue *operation.Queue,
	syncCall func() (R, error),
	asyncCall func(done func(R, error)),
	futureCall func() *future.Future[R],
	operationCall func() *operation.Task[R],
) error {
	switch idiom {
	case "sync":
		_, err := syncCall()
		return err
	case "async":
		done := make(chan error, 1)
		asyncCall(func(_ R, err error) { done <- err })
		return <-done
	case "future":
		_, err := futureCall().Receive()
		return err
	case "operation":
		task := operationCall()
		if err := queue.Add(task); err != nil {
			return err
		}
		return task.Err()
	default:
		return fmt.Errorf("unknown idiom %s", idiom)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// printResult prints the result of a test in a formatted way
func printResult(r result) {
	t := r.timer.Snapshot()
	if t.Count() == 0 {
		fmt.Printf("%-20sno calls\n", r.test)
		return
	}
	fmt.Printf("%-20s%8d calls\tmean %-10s p50 %-10s p99 %-10s max %-10s errors %d\n",
		r.test,
		t.Count(),
		time.Duration(t.Mean()),
		time.Duration(t.Percentile(0.5)),
		time.Duration(t.Percentile(0.99)),
		time.Duration(t.Max()),
		r.errors,
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []result) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "Calls", "MeanNs", "P50Ns", "P99Ns", "MaxNs", "Errors",
		"Engine", "Codec", "Compression", "Threads", "ValueSize",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	cfg := util.GetConfig()
	for _, r := range results {
		t := r.timer.Snapshot()
		row := []string{
			r.test,
			strconv.FormatInt(t.Count(), 10),
			fmt.Sprintf("%.0f", t.Mean()),
			fmt.Sprintf("%.0f", t.Percentile(0.5)),
			fmt.Sprintf("%.0f", t.Percentile(0.99)),
			strconv.FormatInt(t.Max(), 10),
			strconv.FormatInt(r.errors, 10),
			cfg.Engine,
			cfg.Codec,
			cfg.Compression,
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfValueSize),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", r.test, err)
		}
	}

	return nil
}
