package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/guestpass/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the guestpass web server.

Example:
  guestpass serve --config guestpass.yaml
  GUESTPASS_ADMIN_PASSWORD=door guestpass serve --addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error("Failed to close storage", "error", closeErr)
		}
	}()
	logger.Info("Storage initialized", "backend", cfg.Backend, "data_dir", cfg.DataDir)

	srv := &http.Server{
		Addr: cfg.Addr,
		// h2c serves HTTP/2 without TLS alongside HTTP/1.1
		Handler:           h2c.NewHandler(a.server.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serveUntilDone(ctx, srv, logger)
}

// serveUntilDone runs srv until ctx is cancelled, then shuts it down.
func serveUntilDone(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
