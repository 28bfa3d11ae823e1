package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/guestpass/internal/checkin"
	"github.com/mmynk/guestpass/internal/config"
	"github.com/mmynk/guestpass/internal/storage/csvstore"
	"github.com/mmynk/guestpass/internal/storage/sqlite"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func seed(t *testing.T, dir string) {
	t.Helper()
	store, err := csvstore.New(csvstore.Options{Dir: dir})
	require.NoError(t, err)
	svc := checkin.NewService(store)
	ctx := context.Background()

	ann, err := svc.Register(ctx, checkin.RegisterInput{Name: "Ann", Phone: "9876543210", Address: "12 Park Lane"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, checkin.RegisterInput{Name: "Bob", Phone: "5551111111", Address: "1 Main St"})
	require.NoError(t, err)
	_, _, err = svc.CheckIn(ctx, ann.ID)
	require.NoError(t, err)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "guestpass", cmd.Use)

	for _, name := range []string{"serve", "export", "stats", "hash-password"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	require.NotNil(t, cmd.PersistentFlags().Lookup("data-dir"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("backend"))

	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	require.NotNil(t, serveCmd.Flags().Lookup("addr"))

	exportCmd, _, err := cmd.Find([]string{"export"})
	require.NoError(t, err)
	outFlag := exportCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag)
	assert.Equal(t, "o", outFlag.Shorthand)
}

func TestHashPassword(t *testing.T) {
	stdout, _, err := execute(t, "hash-password", "door")
	require.NoError(t, err)

	hash := strings.TrimSpace(stdout)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("door")))

	_, _, err = execute(t, "hash-password")
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir)

	stdout, _, err := execute(t, "stats", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Total:          2")
	assert.Contains(t, stdout, "Checked in:     1")
	assert.Contains(t, stdout, "Not checked in: 1")
	assert.Contains(t, stdout, "Plus ones:      0")
}

func TestExport(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		stdout, stderr, err := execute(t, "export", "--data-dir", t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, stdout)
		assert.Contains(t, stderr, "No guests registered yet.")
	})

	t.Run("stdout", func(t *testing.T) {
		dir := t.TempDir()
		seed(t, dir)

		stdout, _, err := execute(t, "export", "--data-dir", dir)
		require.NoError(t, err)
		rows, err := csv.NewReader(strings.NewReader(stdout)).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, csvstore.Fields, rows[0])

		backups, err := filepath.Glob(filepath.Join(dir, csvstore.TableName+".bak_*"))
		require.NoError(t, err)
		assert.NotEmpty(t, backups)
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		seed(t, dir)
		out := filepath.Join(t.TempDir(), "guest_list.csv")

		_, stderr, err := execute(t, "export", "--data-dir", dir, "--out", out)
		require.NoError(t, err)
		assert.Contains(t, stderr, "Exported 2 guests")

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "id,name,phone,"))
	})
}

func TestUnknownBackend(t *testing.T) {
	_, _, err := execute(t, "stats", "--data-dir", t.TempDir(), "--backend", "postgres")
	assert.ErrorIs(t, err, config.ErrUnknownBackend)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guestpass.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /from/file\nbackend: csv\n"), 0o600))

	cfg, err := loadConfig(&RootOptions{ConfigPath: path, Backend: config.BackendSQLite})
	require.NoError(t, err)
	assert.Equal(t, "/from/file", cfg.DataDir)
	assert.Equal(t, config.BackendSQLite, cfg.Backend)
}

func TestOpenStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	store, err := openStore(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &csvstore.CSVStore{}, store)
	require.NoError(t, store.Close())

	cfg.Backend = config.BackendSQLite
	store, err = openStore(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.SQLiteStore{}, store)
	require.NoError(t, store.Close())
}

func TestNewApp(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("requires admin credential", func(t *testing.T) {
		cfg := config.Default()
		cfg.DataDir = t.TempDir()
		_, err := newApp(cfg, logger)
		assert.ErrorIs(t, err, config.ErrNoAdminPassword)
	})

	t.Run("serves", func(t *testing.T) {
		cfg := config.Default()
		cfg.DataDir = t.TempDir()
		cfg.AdminPassword = "door"

		a, err := newApp(cfg, logger)
		require.NoError(t, err)
		defer a.Close()

		ts := httptest.NewServer(a.server.Handler())
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestServeUntilDone(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveUntilDone(ctx, srv, logger) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
