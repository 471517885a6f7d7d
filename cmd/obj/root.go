package obj

import (
	"encoding/json"

	"github.com/ValentinKolb/kvmap/cmd/util"
	"github.com/ValentinKolb/kvmap/lib/persist"
	"github.com/ValentinKolb/kvmap/lib/store"
	"github.com/spf13/cobra"
)

var (
	database *store.Database
	conn     *store.Connection

	// ObjectCommands represents the object command group
	ObjectCommands = &cobra.Command{
		Use:                "obj",
		Short:              "Store and read JSON documents",
		PersistentPreRunE:  openDatabase,
		PersistentPostRunE: closeDatabase,
	}
)

func init() {
	// Add subcommands
	ObjectCommands.AddCommand(putCmd)
	ObjectCommands.AddCommand(getCmd)
	ObjectCommands.AddCommand(getManyCmd)
	ObjectCommands.AddCommand(delCmd)
	ObjectCommands.AddCommand(listCmd)
	ObjectCommands.AddCommand(collectionsCmd)

	// Add flags
	key := "meta"
	putCmd.Flags().String(key, "", util.WrapString("Optional JSON metadata stored next to the document"))
	key = "idiom"
	putCmd.Flags().String(key, "sync", util.WrapString("How the write is issued (sync, async, future, operation)"))
}

// openDatabase opens the configured database and a connection to it
func openDatabase(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	database, err = util.OpenDatabase()
	if err != nil {
		return err
	}
	conn = database.NewConnection()
	return nil
}

func closeDatabase(_ *cobra.Command, _ []string) error {
	if database == nil {
		return nil
	}
	return database.Close()
}

// documents returns the repository of the documents in collection
func documents(collection string) *persist.Repository[Document] {
	return persist.New(conn, persist.ObjectsWithObjectMetadata[Document, json.RawMessage]().In(collection))
}
