package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/emdb/internal/rpc"
	"github.com/roach88/emdb/internal/value"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	EngineFlags
	Vars map[string]string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Run a batch of SQL statements",
		Long: `Run a batch of SQL statements against a database.

The batch is read from the argument, or from stdin when no argument is
given. Each statement reports its own status; a failed statement does not
stop the ones after it.

Variables bind as $name, :name or @name. Values given with --var are parsed
as JSON when they can be and are strings otherwise.

Exit codes:
  0 - Every statement succeeded
  1 - One or more statements failed
  2 - Command error (bad config, unreachable endpoint, etc.)

Examples:
  emdb query --endpoint file:///tmp/app.db --ns app --db main "SELECT 1"
  emdb query --var name=Tobie "SELECT $name AS name"
  echo "SELECT 1; SELECT 2" | emdb query --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sql string
			if len(args) == 1 {
				sql = args[0]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read stdin", err)
				}
				sql = string(b)
			}
			return runQuery(opts, sql, cmd)
		},
	}

	opts.EngineFlags.register(cmd)
	cmd.Flags().StringToStringVar(&opts.Vars, "var", nil, "query variable as name=value (repeatable)")

	return cmd
}

func runQuery(opts *QueryOptions, sql string, cmd *cobra.Command) error {
	if strings.TrimSpace(sql) == "" {
		return NewExitError(ExitCommandError, "no query given")
	}
	ctx := commandContext(cmd)

	s, err := openSession(ctx, opts.RootOptions, &opts.EngineFlags)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.client.Call(ctx, rpc.Query, value.String(sql), parseVars(opts.Vars))
	if err != nil {
		return WrapExitError(ExitFailure, "query failed", err)
	}

	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err := f.Value(result); err != nil {
		return err
	}
	logStatements(f, result)

	if failed := failedStatements(result); failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d statement(s) failed", failed))
	}
	return nil
}

func parseVars(raw map[string]string) value.Value {
	if len(raw) == 0 {
		return value.None{}
	}
	vars := make(value.Object, len(raw))
	for name, text := range raw {
		v, err := value.FromJSON([]byte(text))
		if err != nil {
			v = value.String(text)
		}
		vars[name] = v
	}
	return vars
}

// logStatements notes each statement's status and time under --verbose.
func logStatements(f *OutputFormatter, result value.Value) {
	entries, _ := result.(value.Array)
	for i, e := range entries {
		obj, ok := e.(value.Object)
		if !ok {
			continue
		}
		f.VerboseLog("statement %d: %s in %s", i+1, render(obj.Get("status")), render(obj.Get("time")))
	}
}

func render(v value.Value) string {
	if s, ok := v.(value.String); ok {
		return string(s)
	}
	b, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func failedStatements(result value.Value) int {
	entries, ok := result.(value.Array)
	if !ok {
		return 0
	}
	failed := 0
	for _, e := range entries {
		if obj, ok := e.(value.Object); ok && obj.Get("status") == value.String("ERR") {
			failed++
		}
	}
	return failed
}
