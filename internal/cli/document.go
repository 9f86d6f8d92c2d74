package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	uio "github.com/matzehuels/urbanknots/pkg/io"
	"github.com/matzehuels/urbanknots/pkg/session"
)

// documentCommand creates the document management command.
func (c *CLI) documentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Manage documents saved by resolve --save",
	}

	cmd.AddCommand(c.documentShowCommand())
	cmd.AddCommand(c.documentRemoveCommand())
	cmd.AddCommand(c.documentCleanupCommand())

	return cmd
}

func (c *CLI) documentShowCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Print a saved document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := session.ValidateID(args[0]); err != nil {
				return fmt.Errorf("%w: %s", err, args[0])
			}
			store, err := newDocumentStore()
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("document %s not found", args[0])
			}
			if asJSON {
				return uio.WriteJSON(os.Stdout, rec)
			}
			printRecord(rec)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full record as JSON")
	return cmd
}

func (c *CLI) documentRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a saved document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := session.ValidateID(args[0]); err != nil {
				return fmt.Errorf("%w: %s", err, args[0])
			}
			store, err := newDocumentStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess("Deleted %s", args[0])
			return nil
		},
	}
}

func (c *CLI) documentCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newDocumentStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Cleanup(cmd.Context()); err != nil {
				return err
			}
			printSuccess("Removed expired documents")
			return nil
		},
	}
}

// printRecord prints a short summary of a stored document.
func printRecord(rec *session.Record) {
	fmt.Println(StyleTitle.Render(nameOr(rec.Name, rec.ID)))
	printKeyValue("ID", rec.ID)
	printKeyValue("Created", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if !rec.ExpiresAt.IsZero() {
		printKeyValue("Expires", rec.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	}
	printKeyValue("Layers", fmt.Sprint(len(rec.Buffers.Layers)))
	printNewline()
	for _, k := range rec.Functions.Knots {
		line := fmt.Sprintf("%-20s %s@%s  %d values", k.ID, k.Layer, k.Level, len(k.Values))
		if k.Error != "" {
			printWarning("%s  %s", line, k.Error)
			continue
		}
		printDetail("%s  [%.4g, %.4g]", line, k.Min, k.Max)
	}
}
