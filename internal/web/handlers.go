package web

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mmynk/guestpass/internal/auth"
	"github.com/mmynk/guestpass/internal/badge"
	"github.com/mmynk/guestpass/internal/checkin"
	"github.com/mmynk/guestpass/pkg/logging"
)

const (
	subjectAdmin = "admin"
	exportName   = "guest_list.csv"
)

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, PathRegister, http.StatusTemporaryRedirect)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

func (s *Server) registerForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageRegister, s.page())
}

func (s *Server) registerSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	guest, err := s.svc.Register(r.Context(), checkin.RegisterInput{
		Name:       r.PostFormValue("name"),
		Phone:      r.PostFormValue("phone"),
		Address:    r.PostFormValue("address"),
		Profession: r.PostFormValue("profession"),
		Notes:      r.PostFormValue("notes"),
	})

	data := s.page()
	switch {
	case errors.Is(err, checkin.ErrInvalidPhone):
		data.Message = msgInvalidPhone
	case errors.Is(err, checkin.ErrDuplicatePhone):
		data.Message = msgDuplicatePhone
	case err != nil:
		s.fail(w, r, err)
		return
	default:
		data.Message = fmt.Sprintf(msgRegisterTemplate, guest.ID)
	}
	s.render(w, r, http.StatusOK, pageRegister, data)
}

// downloadQR shows the badge lookup form. A GET with an identifier query
// parameter or a POST renders the badge inline.
func (s *Server) downloadQR(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	data := s.page()
	identifier := r.FormValue("identifier")
	if r.Method == http.MethodGet && identifier == "" {
		s.render(w, r, http.StatusOK, pageDownloadQR, data)
		return
	}

	log := logging.FromContext(r.Context(), s.logger)
	guest, err := s.svc.Lookup(r.Context(), identifier)
	if errors.Is(err, checkin.ErrNotFound) {
		log.Info("FAILED QR Download: guest not found", "identifier", identifier)
		data.Error = msgNotFound
		s.render(w, r, http.StatusOK, pageDownloadQR, data)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	png, err := s.badges.Render(guest)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	log.Info("SUCCESS QR Generated", "guest_id", guest.ID, "phone", guest.Phone)

	data.Guest = guest
	data.Badge = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
	s.render(w, r, http.StatusOK, pageDownloadQR, data)
}

func (s *Server) qr(w http.ResponseWriter, r *http.Request) {
	png, err := badge.QR(mux.Vars(r)["id"], qrSize)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageLogin, s.page())
}

func (s *Server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	log := logging.FromContext(r.Context(), s.logger)

	err := s.authn.Authenticate(r.Context(), r.PostFormValue("password"))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		log.Warn("Admin login failed", "remote_addr", r.RemoteAddr)
		data := s.page()
		data.Error = msgInvalidPassword
		s.render(w, r, http.StatusOK, pageLogin, data)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	token, err := s.sessions.Generate(subjectAdmin, auth.RoleAdmin)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	log.Info("Admin logged in", "remote_addr", r.RemoteAddr)
	http.SetCookie(w, s.sessionCookie(token, s.sessions.Duration()))
	http.Redirect(w, r, PathDashboard, http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	cookie := s.sessionCookie("", 0)
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
	http.Redirect(w, r, PathLogin, http.StatusFound)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageDashboard, s.page())
}

func (s *Server) welcomeForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageWelcome, s.page())
}

func (s *Server) welcomeSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	data := s.page()
	guest, changed, err := s.svc.CheckIn(r.Context(), r.PostFormValue("lookup"))
	switch {
	case errors.Is(err, checkin.ErrNotFound):
		data.Error = msgNotFound
	case err != nil:
		s.fail(w, r, err)
		return
	default:
		data.Guest = guest
		data.AlreadyCheckedIn = !changed
	}
	s.render(w, r, http.StatusOK, pageWelcome, data)
}

func (s *Server) addPlusOne(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	id := r.PostFormValue("lookup")

	found, _, err := s.svc.GrantPlusOne(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data := s.page()
	if !found {
		data.Error = msgPlusOneRejected
		s.render(w, r, http.StatusOK, pageWelcome, data)
		return
	}

	guest, err := s.svc.Lookup(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data.Guest = guest
	data.AlreadyCheckedIn = true
	s.render(w, r, http.StatusOK, pageWelcome, data)
}

func (s *Server) guestList(w http.ResponseWriter, r *http.Request) {
	guests, err := s.svc.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data := s.page()
	data.Guests = guests
	data.Stats = checkin.DashboardStats(guests)
	s.metrics.ObserveStats(data.Stats)
	s.render(w, r, http.StatusOK, pageGuestList, data)
}

// guestListCSV buffers the export so a storage failure can still render
// the error page.
func (s *Server) guestListCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	_, err := s.svc.Export(r.Context(), &buf)
	if errors.Is(err, checkin.ErrNoGuests) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(msgNoGuests))
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName))
	w.Write(buf.Bytes())
}
