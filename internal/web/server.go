// Package web serves the guestpass HTML interface.
package web

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"

	"github.com/mmynk/guestpass/internal/auth"
	"github.com/mmynk/guestpass/internal/badge"
	"github.com/mmynk/guestpass/internal/checkin"
	"github.com/mmynk/guestpass/internal/metrics"
	"github.com/mmynk/guestpass/internal/middleware"
)

// Paths that other pages redirect to.
const (
	PathRegister  = "/register"
	PathLogin     = "/admin"
	PathDashboard = "/admin/dashboard"
)

// DefaultCookieName names the admin session cookie when none is configured.
const DefaultCookieName = "guestpass_admin_session"

// qrSize is the edge length of images served by /qr/{id}.
const qrSize = 256

// Options configures a Server.
type Options struct {
	Service       *checkin.Service
	Badges        *badge.Renderer
	Authenticator auth.Authenticator
	Sessions      *auth.JWTManager
	Metrics       *metrics.Metrics

	// CookieName names the admin session cookie.
	CookieName string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	svc        *checkin.Service
	badges     *badge.Renderer
	authn      auth.Authenticator
	sessions   *auth.JWTManager
	metrics    *metrics.Metrics
	cookieName string
	clock      clock.Clock
	logger     *slog.Logger
	templates  map[string]*template.Template
}

// New validates opts and parses the embedded templates.
func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("checkin service is required")
	}
	if opts.Authenticator == nil || opts.Sessions == nil {
		return nil, errors.New("authenticator and session manager are required")
	}
	if opts.Badges == nil {
		opts.Badges = badge.New(badge.Options{Logger: opts.Logger})
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &Server{
		svc:        opts.Service,
		badges:     opts.Badges,
		authn:      opts.Authenticator,
		sessions:   opts.Sessions,
		metrics:    opts.Metrics,
		cookieName: opts.CookieName,
		clock:      opts.Clock,
		logger:     opts.Logger,
		templates:  templates,
	}, nil
}

// Handler returns the full handler chain: request logging, panic recovery,
// routing and per-route instrumentation.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Instrument(s.metrics))
	r.NotFoundHandler = http.HandlerFunc(s.notFound)

	r.HandleFunc("/", s.root).Methods(http.MethodGet)
	r.HandleFunc(PathRegister, s.registerForm).Methods(http.MethodGet)
	r.HandleFunc(PathRegister, s.registerSubmit).Methods(http.MethodPost)
	r.HandleFunc("/download_qr", s.downloadQR).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/qr/{id}", s.qr).Methods(http.MethodGet)

	r.HandleFunc(PathLogin, s.loginForm).Methods(http.MethodGet)
	r.HandleFunc(PathLogin, s.loginSubmit).Methods(http.MethodPost)
	r.HandleFunc("/admin/logout", s.logout).Methods(http.MethodGet)

	admin := middleware.RequireAdmin(s.logger, s.sessions, s.cookieName, PathLogin)
	r.Handle(PathDashboard, admin(http.HandlerFunc(s.dashboard))).Methods(http.MethodGet)
	r.Handle("/welcome", admin(http.HandlerFunc(s.welcomeForm))).Methods(http.MethodGet)
	r.Handle("/welcome", admin(http.HandlerFunc(s.welcomeSubmit))).Methods(http.MethodPost)
	r.Handle("/add_plus_one", admin(http.HandlerFunc(s.addPlusOne))).Methods(http.MethodPost)
	r.Handle("/guest_list", admin(http.HandlerFunc(s.guestList))).Methods(http.MethodGet)
	r.Handle("/guest_list.csv", admin(http.HandlerFunc(s.guestListCSV))).Methods(http.MethodGet)

	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)

	recovered := middleware.Recover(s.logger, s.fail)(r)
	return middleware.RequestLogger(s.logger)(recovered)
}

func (s *Server) sessionCookie(value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
