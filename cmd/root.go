package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/kvmap/cmd/info"
	"github.com/ValentinKolb/kvmap/cmd/obj"
	"github.com/ValentinKolb/kvmap/cmd/perf"
	"github.com/ValentinKolb/kvmap/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvmap",
		Short: "typed object mapping over embedded key-value engines",
		Long: fmt.Sprintf(`kvmap (v%s)

Stores typed values in collections of an embedded key-value database
(in-memory, leveldb or sqlite) and reads them back, synchronously,
asynchronously, as futures or as cancellable operations.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvmap",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvmap v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(obj.ObjectCommands)
	RootCmd.AddCommand(info.InfoCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupDatabaseFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
