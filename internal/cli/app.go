package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mmynk/guestpass/internal/auth"
	"github.com/mmynk/guestpass/internal/badge"
	"github.com/mmynk/guestpass/internal/checkin"
	"github.com/mmynk/guestpass/internal/config"
	"github.com/mmynk/guestpass/internal/metrics"
	"github.com/mmynk/guestpass/internal/storage"
	"github.com/mmynk/guestpass/internal/storage/csvstore"
	"github.com/mmynk/guestpass/internal/storage/sqlite"
	"github.com/mmynk/guestpass/internal/web"
	"github.com/mmynk/guestpass/pkg/logging"
)

// loadConfig layers flags over the file and environment configuration.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	return cfg, nil
}

// openStore opens the configured storage backend.
func openStore(cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendCSV:
		store, err := csvstore.New(csvstore.Options{
			Dir:         cfg.DataDir,
			LockTimeout: cfg.LockTimeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendSQLite:
		store, err := sqlite.New(sqlite.Options{
			Path:        filepath.Join(cfg.DataDir, sqlite.DBName),
			LockTimeout: cfg.LockTimeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

// authenticator prefers the configured hash over the plaintext password.
func authenticator(cfg config.Config) (auth.Authenticator, error) {
	if cfg.AdminPasswordHash != "" {
		return auth.NewPasswordAuthenticator(cfg.AdminPasswordHash)
	}
	return auth.NewPlainPasswordAuthenticator(cfg.AdminPassword)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// app is everything serve needs, built from one Config.
type app struct {
	store  storage.Store
	server *web.Server
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	authn, err := authenticator(cfg)
	if err != nil {
		return nil, err
	}

	secret := cfg.SessionSecret
	if secret == "" {
		logger.Warn("No session_secret configured, admin sessions will not survive a restart")
		if secret, err = randomSecret(); err != nil {
			return nil, err
		}
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	m := metrics.New()
	svc := checkin.NewService(store, checkin.WithMetrics(m), checkin.WithLogger(logger))
	badges := badge.New(badge.Options{
		FontPath:     cfg.FontPath,
		BoldFontPath: cfg.BoldFontPath,
		Event: badge.Event{
			Title:  cfg.Event.Title,
			Lines:  cfg.Event.Lines,
			Footer: cfg.Event.Footer,
		},
		Logger: logger,
	})

	server, err := web.New(web.Options{
		Service:       svc,
		Badges:        badges,
		Authenticator: authn,
		Sessions:      auth.NewJWTManager(secret, cfg.SessionTTL),
		Metrics:       m,
		CookieName:    cfg.SessionCookie,
		Logger:        logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{store: store, server: server}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// openService loads configuration, sets up logging on stderr and opens
// storage for the one-shot commands.
func openService(opts *RootOptions) (*checkin.Service, storage.Store, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return checkin.NewService(store, checkin.WithLogger(logger)), store, nil
}
