package info

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ValentinKolb/kvmap/cmd/util"
	"github.com/ValentinKolb/kvmap/lib/common"
	"github.com/ValentinKolb/kvmap/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// InfoCmd prints information about the configured database
var InfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Prints engine information and optionally the metrics",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	key := "metrics"
	InfoCmd.Flags().Bool(key, false, util.WrapString("Also print the Prometheus exposition of the metrics"))
	key = "output"
	InfoCmd.Flags().String(key, "yaml", util.WrapString("The output format (json, yaml)"))
}

// report is the printed form of the database information
type report struct {
	Engine      string         `json:"engine" yaml:"engine"`
	Path        string         `json:"path,omitempty" yaml:"path,omitempty"`
	Codec       string         `json:"codec" yaml:"codec"`
	Compression string         `json:"compression" yaml:"compression"`
	SizeBytes   int            `json:"size_bytes" yaml:"size_bytes"`
	Features    []string       `json:"features" yaml:"features"`
	Collections map[string]int `json:"collections" yaml:"collections"`
}

func run(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	database, err := util.OpenDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	r, err := collect(database)
	if err != nil {
		return err
	}

	var out []byte
	switch format := viper.GetString("output"); format {
	case "json":
		out, err = json.MarshalIndent(r, "", "  ")
	case "yaml":
		out, err = yaml.Marshal(r)
	default:
		return fmt.Errorf("invalid output format %s. must be json or yaml", format)
	}
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if viper.GetBool("metrics") {
		fmt.Println()
		common.WriteMetrics(os.Stdout, true)
	}
	return nil
}

// collect reads the engine information and the number of keys per collection
func collect(database *store.Database) (report, error) {
	info := database.Info()
	r := report{
		Engine:      string(info.DbType),
		Path:        util.GetConfig().Path,
		Codec:       database.Codec().Name(),
		Compression: database.Compression().Name(),
		SizeBytes:   info.SizeBytes,
		Collections: make(map[string]int),
	}
	for _, f := range info.SupportedFeatures {
		r.Features = append(r.Features, f.String())
	}

	conn := database.NewConnection()
	defer conn.Close()

	err := conn.Read(func(txn store.ReadTransaction) error {
		collections, err := txn.Collections()
		if err != nil {
			return err
		}
		for _, c := range collections {
			keys, err := txn.Keys(c)
			if err != nil {
				return err
			}
			r.Collections[c] = len(keys)
		}
		return nil
	})
	return r, err
}
