package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/internal/api"
	"github.com/dyike/forexcell/internal/debug"
	"github.com/dyike/forexcell/internal/display"
	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/internal/metrics"
	"github.com/dyike/forexcell/internal/service"
	"github.com/dyike/forexcell/pkg/app"
	"github.com/dyike/forexcell/pkg/bridge"
)

func newServeCmd() *cobra.Command {
	var addr string
	var einoDebug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, reloading when the config file changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, addr, einoDebug)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to api_addr)")
	cmd.Flags().BoolVar(&einoDebug, "eino-debug", false, "Start the Eino visual debug server")
	return cmd
}

func serve(cmd *cobra.Command, addr string, einoDebug bool) error {
	log := logger.Component("serve")
	defaults := config.DefaultConfig()

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = filepath.Join(defaults.DataDir, "config.json")
	}
	mgr, err := config.NewManager(config.WithConfigPath(path), config.WithInitialConfig(defaults))
	if err != nil {
		return err
	}
	defer mgr.Close()

	rt, err := app.NewRuntime(mgr, app.WithNotifier(bridge.Notify))
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := mgr.Get()
	if addr == "" {
		addr = cfg.APIAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if einoDebug {
		cfg.EinoDebugEnabled = true
	}
	debugger := debug.NewEinoDebugger(&cfg)
	if err := debugger.Initialize(ctx); err != nil {
		display.Warning(cmd.ErrOrStderr(), err.Error())
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = metrics.Serve(cfg.MetricsAddr)
	}

	server := api.NewServer(func() *service.Service {
		if e := rt.Engine(); e != nil {
			return e.Service
		}
		return nil
	})
	srv := &http.Server{Addr: addr, Handler: server.R, ReadHeaderTimeout: 10 * time.Second}

	out := cmd.OutOrStdout()
	display.Banner(out, "ForexCell", "API listening on "+addr)
	if url := debugger.GetDebugURL(); url != "" {
		display.Info(out, "Eino debug UI at "+url)
	}
	display.Info(out, "Config file "+mgr.Path())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return srv.Shutdown(shutdownCtx)
}
