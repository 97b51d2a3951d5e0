package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/emdb/internal/host"
	"github.com/roach88/emdb/internal/rpc"
	"github.com/roach88/emdb/internal/value"
)

// cliEngineID is the engine slot the one-shot commands connect.
const cliEngineID int32 = 1

// EngineFlags select the database a data command works on.
type EngineFlags struct {
	Endpoint string
	NS       string
	DB       string
}

func (f *EngineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Endpoint, "endpoint", "e", "", "database endpoint (defaults to the configured endpoint)")
	cmd.Flags().StringVar(&f.NS, "ns", "", "namespace to use")
	cmd.Flags().StringVar(&f.DB, "db", "", "database to use")
}

// session is a runtime with one connected engine.
type session struct {
	rt       *host.Runtime
	client   *host.Client
	endpoint string
}

// openSession connects an engine to the endpoint from the flags or the
// config and selects the namespace and database.
func openSession(ctx context.Context, opts *RootOptions, flags *EngineFlags) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	endpoint := flags.Endpoint
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}

	rt := host.New(host.Config{Workers: cfg.Workers, Logger: slog.Default()})
	s := &session{rt: rt, client: rt.Client(cliEngineID), endpoint: endpoint}

	slog.Debug("connecting", "endpoint", endpoint)
	if err := s.client.Connect(ctx, endpoint, cfg.ConnectOptions()); err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	if flags.NS != "" || flags.DB != "" {
		if _, err := s.client.Call(ctx, rpc.Use, optionalString(flags.NS), optionalString(flags.DB)); err != nil {
			s.Close()
			return nil, WrapExitError(ExitCommandError, "failed to select namespace", err)
		}
	}
	return s, nil
}

// Close shuts the runtime down, disposing the engine.
func (s *session) Close() {
	if err := s.rt.Shutdown(context.Background()); err != nil {
		slog.Error("error shutting down runtime", "error", err)
	}
}

func optionalString(s string) value.Value {
	if s == "" {
		return value.None{}
	}
	return value.String(s)
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
