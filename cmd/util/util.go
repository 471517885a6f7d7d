package util

import (
	"strings"

	"github.com/ValentinKolb/kvmap/lib/common"
	"github.com/ValentinKolb/kvmap/lib/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupDatabaseFlags adds the flags selecting and configuring the database
func SetupDatabaseFlags(cmd *cobra.Command) {
	def := common.DefaultConfig()

	key := "engine"
	cmd.PersistentFlags().String(key, def.Engine, WrapString("The storage engine to use (maple, leveldb, sqlite). maple keeps everything in memory and forgets it on exit"))

	key = "path"
	cmd.PersistentFlags().String(key, "", WrapString("The directory (leveldb) or file (sqlite) of the database"))

	key = "sync"
	cmd.PersistentFlags().Bool(key, def.Sync, WrapString("Whether leveldb should fsync every commit"))

	key = "codec"
	cmd.PersistentFlags().String(key, def.Codec, WrapString("The codec for object-style values (json, gob, cbor, msgpack)"))

	key = "compression"
	cmd.PersistentFlags().String(key, def.Compression, WrapString("The compression applied to stored payloads (none, snappy, zstd, lz4)"))

	key = "max-operations"
	cmd.PersistentFlags().Int(key, def.MaxOperations, WrapString("How many operations an operation queue runs at once"))

	key = "log-level"
	cmd.PersistentFlags().String(key, def.LogLevel, WrapString("The log level (debug, info, warn, error, critical)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("kvmap")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetConfig reads the database configuration from viper
func GetConfig() common.Config {
	return common.Config{
		Engine:        viper.GetString("engine"),
		Path:          viper.GetString("path"),
		Sync:          viper.GetBool("sync"),
		Codec:         viper.GetString("codec"),
		Compression:   viper.GetString("compression"),
		MaxOperations: viper.GetInt("max-operations"),
		LogLevel:      viper.GetString("log-level"),
	}
}

// OpenDatabase applies the log level and opens the configured database
func OpenDatabase() (*store.Database, error) {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := common.InitLoggers(cfg.LogLevel); err != nil {
		return nil, err
	}
	return store.Open(cfg)
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
