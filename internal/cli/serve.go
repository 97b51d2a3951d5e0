package cli

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/emdb/internal/api"
	"github.com/roach88/emdb/internal/config"
	"github.com/roach88/emdb/internal/host"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string
	Connect bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the boundary operations over HTTP",
		Long: `Start an HTTP server exposing connect, execute, import, export and
dispose, plus /health and Prometheus /metrics.

Routes:
  GET    /health
  GET    /metrics
  GET    /engines
  POST   /engines/{engine}          connect ({"endpoint": ..., "options": {...}})
  DELETE /engines/{engine}          dispose
  POST   /engines/{engine}/import   body is the dump
  POST   /engines/{engine}/export   optional JSON export config
  POST   /rpc/{engine}/{method}     CBOR params in, CBOR result out

Examples:
  emdb serve --addr :8080
  emdb serve --connect --config emdb.cue`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (defaults to the configured address)")
	cmd.Flags().BoolVar(&opts.Connect, "connect", false, "connect engine 1 to the configured endpoint at startup")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	addr := opts.Addr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	level := cfg.LogLevel
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := config.NewLogger(cmd.ErrOrStderr(), level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rt := host.Init(host.Config{Workers: cfg.Workers, Registerer: reg, Logger: logger})
	defer func() {
		if err := rt.Shutdown(context.Background()); err != nil {
			logger.Error("runtime shutdown failed", "error", err)
		}
	}()

	ctx := commandContext(cmd)
	if opts.Connect {
		if err := rt.Client(cliEngineID).Connect(ctx, cfg.Endpoint, cfg.ConnectOptions()); err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		logger.Info("engine connected", "engine_id", cliEngineID, "endpoint", cfg.Endpoint)
	}

	srv := api.NewServer(addr, rt, reg, logger)
	if err := srv.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	return nil
}
