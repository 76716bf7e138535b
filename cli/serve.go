package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/adythan1/Tax-Returns/config"
	"github.com/adythan1/Tax-Returns/router"
	"github.com/adythan1/Tax-Returns/service"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const (
	notifyTimeout   = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the portal HTTP server.

Settings come from the config file, .env files and the environment, in
increasing order of precedence. --port overrides all of them.

Example:
  tax-returns serve
  tax-returns serve --config /etc/portal.yaml --port 8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "listen port (overrides config)")

	return cmd
}

// App is the wired server
type App struct {
	Config     *config.Config
	Backend    service.Backend
	Dispatcher *service.Dispatcher
	Handler    http.Handler
}

// Build wires storage, services and routes from cfg
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	backend, err := service.NewBackend(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	metadata := service.NewMetadataStore(backend)
	dispatcher := service.NewDispatcher(newNotifier(cfg), notifyTimeout)
	svc := &router.Services{
		Backend: backend,
		Intake:  service.NewIntakeService(backend, metadata, service.NewAllowList(&cfg.Upload), dispatcher),
		Admin:   service.NewAdminService(backend, metadata, cfg.Admin.PageSize),
	}

	return &App{
		Config:     cfg,
		Backend:    backend,
		Dispatcher: dispatcher,
		Handler:    router.New(cfg, svc),
	}, nil
}

func newNotifier(cfg *config.Config) service.Notifier {
	if !cfg.Email.Enabled() {
		slog.Warn("email not configured, notifications will only be logged")
		return service.LogNotifier{}
	}
	return service.NewSMTPNotifier(&cfg.Email)
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	slog.Info("configuration loaded", "storage", cfg.Storage.Backend, "intake_mode", cfg.Intake.Mode)

	if len(cfg.Users) == 0 || cfg.Auth.JWTSecret == "" {
		slog.Warn("admin login disabled: configure users and auth.jwt_secret")
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := Build(ctx, cfg)
	if err != nil {
		return err
	}

	srv := newHTTPServer(cfg, app.Handler)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "storage", app.Backend.Kind())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// let queued staff emails go out
	app.Dispatcher.Wait()
	slog.Info("server exited gracefully")
	return nil
}

// newHTTPServer bounds only header reads and idle connections. Bodies get no
// read or write deadline: uploads and zip downloads run as long as the
// transfer takes.
func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
