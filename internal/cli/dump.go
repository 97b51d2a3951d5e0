package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/emdb/internal/value"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	EngineFlags
	Output    string
	NoTables  bool
	NoRecords bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a database as a SQL dump",
		Long: `Export the selected namespace and database as a SQL dump that
"emdb import" replays.

Examples:
  emdb export --endpoint file:///tmp/app.db --ns app --db main
  emdb export --endpoint file:///tmp/app.db --ns app --db main -o backup.sql
  emdb export --no-records --ns app --db main`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	opts.EngineFlags.register(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the dump to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.NoTables, "no-tables", false, "leave table definitions out")
	cmd.Flags().BoolVar(&opts.NoRecords, "no-records", false, "leave records out")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts.RootOptions, &opts.EngineFlags)
	if err != nil {
		return err
	}
	defer s.Close()

	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	dump, err := s.client.Export(ctx, value.Object{
		"tables":  value.Bool(!opts.NoTables),
		"records": value.Bool(!opts.NoRecords),
	})
	if err != nil {
		return WrapExitError(ExitFailure, "export failed", err)
	}
	f.VerboseLog("exported %d bytes from %s (tables: %t, records: %t)",
		len(dump), s.endpoint, !opts.NoTables, !opts.NoRecords)

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(dump), 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write dump", err)
		}
		if opts.Format == "json" {
			return f.Success(map[string]any{"output": opts.Output, "bytes": len(dump)})
		}
		return f.Success(fmt.Sprintf("Exported %d bytes to %s", len(dump), opts.Output))
	}
	if opts.Format == "json" {
		return f.Success(map[string]any{"dump": dump})
	}
	_, err = io.WriteString(cmd.OutOrStdout(), dump)
	return err
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	EngineFlags
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <dump-file>",
		Short: "Import a SQL dump",
		Long: `Replay a dump produced by "emdb export" into the selected namespace
and database. The dump runs in one transaction: either all of it applies or
none of it does. Use "-" to read the dump from stdin.

Examples:
  emdb import --endpoint file:///tmp/copy.db --ns app --db main backup.sql
  emdb export --ns app --db main | emdb import --ns app --db copy -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	opts.EngineFlags.register(cmd)

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	var (
		dump []byte
		err  error
	)
	if path == "-" {
		dump, err = io.ReadAll(cmd.InOrStdin())
	} else {
		dump, err = os.ReadFile(path)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read dump", err)
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	f.VerboseLog("read %d bytes from %s", len(dump), path)

	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts.RootOptions, &opts.EngineFlags)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.client.Import(ctx, string(dump)); err != nil {
		return WrapExitError(ExitFailure, "import failed", err)
	}
	f.VerboseLog("imported into %s", s.endpoint)

	if opts.Format == "json" {
		return f.Success(map[string]any{"imported": path, "bytes": len(dump)})
	}
	return f.Success(fmt.Sprintf("Imported %d bytes from %s", len(dump), path))
}
