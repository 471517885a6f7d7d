package obj

import (
	"fmt"

	"github.com/ValentinKolb/kvmap/cmd/util"
	"github.com/ValentinKolb/kvmap/lib/operation"
	"github.com/ValentinKolb/kvmap/lib/persist"
	"github.com/ValentinKolb/kvmap/lib/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	putCmd = &cobra.Command{
		Use:   "put [collection] [key] [json]",
		Short: "Stores a JSON document, under a generated key if none is given",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection := args[0]
			key, body := uuid.NewString(), args[1]
			if len(args) == 3 {
				key, body = args[1], args[2]
			}

			doc := Document{Key: key}
			var err error
			if doc.Body, err = parseJSON("document", body); err != nil {
				return err
			}
			if meta, _ := cmd.Flags().GetString("meta"); meta != "" {
				if doc.meta, err = parseJSON("metadata", meta); err != nil {
					return err
				}
			}

			idiom, _ := cmd.Flags().GetString("idiom")
			written, err := write(documents(collection), doc, idiom)
			if err != nil {
				return err
			}
			return printJSON(view(written))
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [collection] [key]",
		Short: "Reads a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, found, err := documents(args[0]).Read(args[1])
			if err != nil {
				return err
			}
			if !found {
				fmt.Printf("key=%s, found=false\n", args[1])
				return nil
			}
			return printJSON(view(doc))
		},
	}
	getManyCmd = &cobra.Command{
		Use:   "get-many [collection] [keys...]",
		Short: "Reads several documents, skipping missing keys",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := documents(args[0]).ReadAll(args[1:])
			if err != nil {
				return err
			}
			return printDocuments(docs)
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [collection] [keys...]",
		Short: "Deletes documents",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := documents(args[0]).RemoveKeys(args[1:]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list [collection]",
		Short: "Lists all documents of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := documents(args[0]).ReadCollection()
			if err != nil {
				return err
			}
			return printDocuments(docs)
		},
	}
	collectionsCmd = &cobra.Command{
		Use:   "collections",
		Short: "Lists all non-empty collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var collections []string
			err := conn.Read(func(txn store.ReadTransaction) error {
				var err error
				collections, err = txn.Collections()
				return err
			})
			if err != nil {
				return err
			}
			for _, c := range collections {
				fmt.Println(c)
			}
			return nil
		},
	}
)

// write stores doc in the given calling idiom
func write(repo *persist.Repository[Document], doc Document, idiom string) (Document, error) {
	switch idiom {
	case "sync":
		return repo.Write(doc)
	case "async":
		type result struct {
			doc Document
			err error
		}
		done := make(chan result, 1)
		repo.AsyncWrite(doc, func(d Document, err error) { done <- result{d, err} })
		r := <-done
		return r.doc, r.err
	case "future":
		return repo.FutureWrite(doc).Receive()
	case "operation":
		q := operation.NewQueue("obj", util.GetConfig().MaxOperations)
		task := repo.WriteOperation(doc)
		if err := q.Add(task); err != nil {
			return Document{}, err
		}
		q.Wait()
		return task.Result()
	default:
		return Document{}, fmt.Errorf("invalid idiom %s. must be one of sync, async, future, operation", idiom)
	}
}

func printDocuments(docs []Document) error {
	views := make([]documentView, len(docs))
	for i, d := range docs {
		views[i] = view(d)
	}
	return printJSON(views)
}
