package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/mmynk/guestpass/internal/models"
	"github.com/mmynk/guestpass/internal/storage"
	"github.com/mmynk/guestpass/pkg/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageRegister   = "register.html"
	pageDownloadQR = "download_qr.html"
	pageLogin      = "admin_login.html"
	pageDashboard  = "admin_dashboard.html"
	pageWelcome    = "welcome.html"
	pageGuestList  = "guest_list.html"
	pageError      = "error.html"
)

var pages = []string{
	pageRegister,
	pageDownloadQR,
	pageLogin,
	pageDashboard,
	pageWelcome,
	pageGuestList,
	pageError,
}

// Messages shown to users.
const (
	msgInvalidPhone     = "Phone must be 10 digits."
	msgDuplicatePhone   = "Phone already registered."
	msgNotFound         = "Guest not found."
	msgInvalidPassword  = "Invalid password. Please try again."
	msgPlusOneRejected  = "Guest not found, not checked in, or plus one already added."
	msgNoGuests         = "No guests registered yet."
	msgUnexpected       = "An unexpected error occurred."
	msgBusy             = "The guest list is busy right now. Please try again in a moment."
	msgConflict         = "The guest list changed while saving. Please try again."
	msgPageNotFound     = "Page not found."
	msgRegisterTemplate = "Registration successful! Your ID: %s"
)

// retryAfterSeconds is sent with 503 responses caused by lock contention.
const retryAfterSeconds = "2"

// pageData is the template context shared by every page.
type pageData struct {
	Year int

	Message string
	Error   string

	Guest            *models.Guest
	AlreadyCheckedIn bool
	Badge            template.URL

	Guests []models.Guest
	Stats  models.DashboardStats
}

var funcs = template.FuncMap{
	"flag": models.FormatFlag,
}

func parseTemplates() (map[string]*template.Template, error) {
	set := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		set[page] = t
	}
	return set, nil
}

func (s *Server) page() pageData {
	return pageData{Year: s.clock.Now().Year()}
}

// render executes page into a buffer first so a template failure never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	var buf bytes.Buffer
	err := fmt.Errorf("unknown template %s", page)
	if t, ok := s.templates[page]; ok {
		err = t.ExecuteTemplate(&buf, "layout", data)
	}
	if err != nil {
		logging.FromContext(r.Context(), s.logger).Error("Failed to render template", "template", page, "error", err)
		http.Error(w, msgUnexpected, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// fail renders the error page for err.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context(), s.logger)
	data := s.page()

	switch {
	case errors.Is(err, storage.ErrLockTimeout):
		log.Warn("Guest table busy", "path", r.URL.Path, "error", err)
		w.Header().Set("Retry-After", retryAfterSeconds)
		data.Message = msgBusy
		s.render(w, r, http.StatusServiceUnavailable, pageError, data)
	case errors.Is(err, storage.ErrDuplicateKey):
		log.Warn("Rejected conflicting write", "path", r.URL.Path, "error", err)
		data.Message = msgConflict
		s.render(w, r, http.StatusConflict, pageError, data)
	default:
		log.Error("Global Error", "path", r.URL.Path, "error", err)
		data.Message = msgUnexpected
		s.render(w, r, http.StatusInternalServerError, pageError, data)
	}
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	data := s.page()
	data.Message = msgPageNotFound
	s.render(w, r, http.StatusNotFound, pageError, data)
}
