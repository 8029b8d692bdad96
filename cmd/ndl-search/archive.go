// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/ndl-search/internal/archive"
	"github.com/pdiddy/ndl-search/internal/search"
	"github.com/pdiddy/ndl-search/pkg/types"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect the local record archive (list, show, export, count)",
	Long: `Archive reads the SQLite database that "search --archive" writes to.
Use subcommands to list or export records, optionally filtered by title,
language, creator or subject.`,
}

// --- list subcommand ---

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived records, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := archive.Open(cfg.Archive)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(commandContext(cmd), archiveQueryFromFlags(cmd))
		if err != nil {
			return err
		}
		return writePage(cmd, search.Page{Records: records}, os.Stdout)
	},
}

// --- show subcommand ---

var archiveShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one archived record as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := archive.Open(cfg.Archive)
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := store.Get(commandContext(cmd), args[0])
		if err != nil {
			return err
		}
		return search.FormatYAML([]types.NormalizedRecord{rec}, os.Stdout)
	},
}

// --- export subcommand ---

var archiveExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived records to YAML or JSON",
	Long: `Export writes every archived record (or a filtered subset) to stdout or
to --output. Supports the same filter flags as list; --limit is ignored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		store, err := archive.Open(cfg.Archive)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := commandContext(cmd)
		opts := archiveQueryFromFlags(cmd)
		var export func(io.Writer) error
		switch format {
		case "yaml", "":
			export = func(w io.Writer) error { return store.ExportYAML(ctx, w, opts) }
		case "json":
			export = func(w io.Writer) error { return store.ExportJSON(ctx, w, opts) }
		default:
			return errors.Newf("unsupported format %q: use yaml or json", format)
		}

		if output == "" {
			return export(os.Stdout)
		}
		if err := writeFile(output, export); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported to %s\n", output)
		return nil
	},
}

// writeFile creates path and runs write against it. A failed close is
// reported when write itself succeeded.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "closing %s", path)
		}
	}()
	return write(f)
}

// --- count subcommand ---

var archiveCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of archived records",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := archive.Open(cfg.Archive)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Count(commandContext(cmd))
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

// --- shared helpers ---

func addArchiveFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "filter by title substring")
	cmd.Flags().String("language", "", "filter by language code (e.g. jpn)")
	cmd.Flags().String("creator", "", "filter by creator name")
	cmd.Flags().String("subject", "", "filter by subject")
	cmd.Flags().Int("limit", 0, "maximum records (0 = default of 100)")
}

func archiveQueryFromFlags(cmd *cobra.Command) archive.QueryOptions {
	title, _ := cmd.Flags().GetString("title")
	language, _ := cmd.Flags().GetString("language")
	creator, _ := cmd.Flags().GetString("creator")
	subject, _ := cmd.Flags().GetString("subject")
	limit, _ := cmd.Flags().GetInt("limit")
	return archive.QueryOptions{
		Title:    title,
		Language: language,
		Creator:  creator,
		Subject:  subject,
		Limit:    limit,
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	addArchiveFilterFlags(archiveListCmd)
	archiveListCmd.Flags().Bool("json", false, "output records as JSON")
	archiveListCmd.Flags().Bool("yaml", false, "output records as YAML")
	archiveListCmd.MarkFlagsMutuallyExclusive("json", "yaml")

	addArchiveFilterFlags(archiveExportCmd)
	archiveExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	archiveExportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	archiveCmd.PersistentFlags().String("path", "", "archive database (default from config)")
	_ = viper.BindPFlag("archive.path", archiveCmd.PersistentFlags().Lookup("path"))

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveShowCmd)
	archiveCmd.AddCommand(archiveExportCmd)
	archiveCmd.AddCommand(archiveCountCmd)

	rootCmd.AddCommand(archiveCmd)
}
