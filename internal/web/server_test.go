package web

import (
	"context"
	"encoding/csv"
	"image/png"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/guestpass/internal/auth"
	"github.com/mmynk/guestpass/internal/badge"
	"github.com/mmynk/guestpass/internal/checkin"
	"github.com/mmynk/guestpass/internal/guestid"
	"github.com/mmynk/guestpass/internal/metrics"
	"github.com/mmynk/guestpass/internal/storage/csvstore"
)

const (
	adminPassword = "door"
	testCookie    = "test_admin_session"
)

type harness struct {
	t      *testing.T
	dir    string
	store  *csvstore.CSVStore
	svc    *checkin.Service
	server *httptest.Server
	client *http.Client
}

func newHarness(t *testing.T, lockTimeout time.Duration) *harness {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 8, 3, 19, 0, 0, 0, time.Local))

	dir := t.TempDir()
	store, err := csvstore.New(csvstore.Options{Dir: dir, Clock: mock, LockTimeout: lockTimeout})
	require.NoError(t, err)

	m := metrics.New()
	svc := checkin.NewService(store,
		checkin.WithClock(mock),
		checkin.WithMetrics(m),
		checkin.WithGenerator(guestid.NewWithRandom(func() string { return "a1b2c3" })),
	)

	authn, err := auth.NewPlainPasswordAuthenticator(adminPassword)
	require.NoError(t, err)

	srv, err := New(Options{
		Service:       svc,
		Badges:        badge.New(badge.Options{Event: badge.Event{Title: "Launch Evening"}}),
		Authenticator: authn,
		Sessions:      auth.NewJWTManager("test-secret", time.Hour),
		Metrics:       m,
		CookieName:    testCookie,
		Clock:         mock,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &harness{
		t:      t,
		dir:    dir,
		store:  store,
		svc:    svc,
		server: ts,
		client: &http.Client{Jar: jar},
	}
}

func (h *harness) get(path string) (*http.Response, string) {
	h.t.Helper()
	resp, err := h.client.Get(h.server.URL + path)
	require.NoError(h.t, err)
	return resp, readBody(h.t, resp)
}

func (h *harness) post(path string, form url.Values) (*http.Response, string) {
	h.t.Helper()
	resp, err := h.client.PostForm(h.server.URL+path, form)
	require.NoError(h.t, err)
	return resp, readBody(h.t, resp)
}

func (h *harness) login() {
	h.t.Helper()
	resp, body := h.post("/admin", url.Values{"password": {adminPassword}})
	require.Equal(h.t, http.StatusOK, resp.StatusCode)
	require.Equal(h.t, PathDashboard, resp.Request.URL.Path)
	require.Contains(h.t, body, "Admin Dashboard")
}

func (h *harness) register(name, phone string) {
	h.t.Helper()
	_, body := h.post("/register", url.Values{
		"name":    {name},
		"phone":   {phone},
		"address": {"12 Park Lane"},
	})
	require.Contains(h.t, body, "Registration successful! Your ID: ")
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestPublicPages(t *testing.T) {
	h := newHarness(t, 0)

	resp, body := h.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, PathRegister, resp.Request.URL.Path)
	assert.Contains(t, body, "Guest Registration")
	assert.Contains(t, body, "2025")

	resp, body = h.get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", body)

	resp, body = h.get("/no/such/page")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, msgPageNotFound)
}

func TestRegister(t *testing.T) {
	h := newHarness(t, 0)

	_, body := h.post("/register", url.Values{"name": {"Ann"}, "phone": {"12345"}, "address": {"x"}})
	assert.Contains(t, body, msgInvalidPhone)

	_, body = h.post("/register", url.Values{"name": {"Ann"}, "phone": {"9876543210"}, "address": {"x"}})
	assert.Contains(t, body, "Registration successful! Your ID: AN3210A1B2C3")

	_, body = h.post("/register", url.Values{"name": {"Bob"}, "phone": {"9876543210"}, "address": {"y"}})
	assert.Contains(t, body, msgDuplicatePhone)

	guests, err := h.store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, guests, 1)
}

func TestDownloadQR(t *testing.T) {
	h := newHarness(t, 0)
	h.register("Ann", "9876543210")

	_, body := h.get("/download_qr")
	assert.Contains(t, body, `name="identifier"`)
	assert.NotContains(t, body, "data:image/png")

	_, body = h.post("/download_qr", url.Values{"identifier": {"0000000000"}})
	assert.Contains(t, body, msgNotFound)

	_, body = h.post("/download_qr", url.Values{"identifier": {"9876543210"}})
	assert.Contains(t, body, "data:image/png;base64,")
	assert.Contains(t, body, "AN3210A1B2C3")

	_, body = h.get("/download_qr?identifier=AN3210A1B2C3")
	assert.Contains(t, body, "data:image/png;base64,")
}

func TestQRImage(t *testing.T) {
	h := newHarness(t, 0)

	resp, body := h.get("/qr/anything-goes")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, qrSize, img.Bounds().Dx())
}

func TestAdminGate(t *testing.T) {
	h := newHarness(t, 0)

	for _, path := range []string{"/admin/dashboard", "/welcome", "/guest_list", "/guest_list.csv"} {
		t.Run(path, func(t *testing.T) {
			resp, body := h.get(path)
			assert.Equal(t, PathLogin, resp.Request.URL.Path)
			assert.Contains(t, body, "Admin Login")
		})
	}

	t.Run("sentinel cookie is not a session", func(t *testing.T) {
		u, err := url.Parse(h.server.URL)
		require.NoError(t, err)
		h.client.Jar.SetCookies(u, []*http.Cookie{{Name: testCookie, Value: "authenticated"}})

		resp, _ := h.get("/guest_list")
		assert.Equal(t, PathLogin, resp.Request.URL.Path)
	})
}

func TestLogin(t *testing.T) {
	h := newHarness(t, 0)

	_, body := h.post("/admin", url.Values{"password": {"wrong"}})
	assert.Contains(t, body, msgInvalidPassword)

	h.login()

	u, err := url.Parse(h.server.URL)
	require.NoError(t, err)
	cookies := h.client.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookie, cookies[0].Name)
	assert.NotEqual(t, "authenticated", cookies[0].Value)

	resp, _ := h.get("/admin/logout")
	assert.Equal(t, PathLogin, resp.Request.URL.Path)
	assert.Empty(t, h.client.Jar.Cookies(u))

	resp, _ = h.get("/guest_list")
	assert.Equal(t, PathLogin, resp.Request.URL.Path)
}

func TestCheckInFlow(t *testing.T) {
	h := newHarness(t, 0)
	h.register("Ann", "9876543210")
	h.login()

	_, body := h.post("/welcome", url.Values{"lookup": {"5555555555"}})
	assert.Contains(t, body, msgNotFound)

	_, body = h.post("/add_plus_one", url.Values{"lookup": {"AN3210A1B2C3"}})
	assert.Contains(t, body, msgPlusOneRejected, "plus one before check-in")

	_, body = h.post("/welcome", url.Values{"lookup": {"9876543210"}})
	assert.Contains(t, body, "Welcome, Ann! Check-in complete.")

	_, body = h.post("/welcome", url.Values{"lookup": {"AN3210A1B2C3"}})
	assert.Contains(t, body, "Ann is already checked in.")

	_, body = h.post("/add_plus_one", url.Values{"lookup": {"AN3210A1B2C3"}})
	assert.Contains(t, body, "Ann is already checked in.")
	assert.NotContains(t, body, `action="/add_plus_one"`)

	_, body = h.post("/add_plus_one", url.Values{"lookup": {"AN3210A1B2C3"}})
	assert.NotContains(t, body, msgPlusOneRejected, "repeat grant still finds the guest")

	_, body = h.get("/guest_list")
	assert.Contains(t, body, "Total: <strong>1</strong>")
	assert.Contains(t, body, "Checked in: <strong>1</strong>")
	assert.Contains(t, body, "Plus ones: <strong>1</strong>")
}

func TestExport(t *testing.T) {
	h := newHarness(t, 0)
	h.login()

	resp, body := h.get("/guest_list.csv")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, msgNoGuests, body)

	h.register("Ann", "9876543210")
	resp, body = h.get("/guest_list.csv")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="guest_list.csv"`)

	rows, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvstore.Fields, rows[0])
	assert.Equal(t, "AN3210A1B2C3", rows[1][0])

	backups, err := filepath.Glob(filepath.Join(h.dir, csvstore.TableName+".bak_*"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestLockTimeoutIsRetryable(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)
	h.register("Ann", "9876543210")

	held := flock.New(filepath.Join(h.dir, csvstore.TableName+".lock"))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	resp, body := h.post("/download_qr", url.Values{"identifier": {"9876543210"}})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, retryAfterSeconds, resp.Header.Get("Retry-After"))
	assert.Contains(t, body, msgBusy)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, 0)
	h.register("Ann", "9876543210")

	_, body := h.get("/metrics")
	assert.Contains(t, body, `guestpass_registrations_total{result="ok"} 1`)
	assert.Contains(t, body, `guestpass_http_requests_total{code="200",method="POST",route="/register"} 1`)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Service: checkin.NewService(nil)})
	assert.Error(t, err)
}
