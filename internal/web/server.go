package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/example/marketbook/internal/domain/availability"
	"github.com/example/marketbook/internal/drafts"
	"github.com/example/marketbook/internal/internaltypes"
	"github.com/example/marketbook/internal/picker"
	"github.com/example/marketbook/internal/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

// FetcherFunc binds the scheduling client to a visitor's session.
type FetcherFunc func(s session.Session) picker.Fetcher

// Server hosts the booking time picker. The checkout draft is the source of
// truth for the selection; the picker is rebuilt from it on every request.
type Server struct {
	Fetchers          FetcherFunc
	Drafts            drafts.Store
	Cookies           *session.CookieStore
	SessionCookieName string
	LoginURL          string
	Log               *zap.Logger
	Now               func() time.Time

	tmpl *template.Template
}

type pageData struct {
	Title      string
	BusinessID string
	Draft      drafts.Draft
	Today      string
	Flash      string
	View       picker.View
}

func (s *Server) Routes() (http.Handler, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s.tmpl = tmpl
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.Now == nil {
		s.Now = time.Now
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /book/{businessID}", s.handleBook)
	mux.HandleFunc("POST /book/{businessID}/date", s.handlePickDate)
	mux.HandleFunc("POST /book/{businessID}/time", s.handlePickTime)

	return otelhttp.NewHandler(accessLog(s.Log, mux), "marketbook"), nil
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	businessID := strings.TrimSpace(r.PathValue("businessID"))
	duration := 0
	if v := r.URL.Query().Get("duration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "duration must be a positive number of minutes", http.StatusBadRequest)
			return
		}
		duration = n
	}

	d, err := s.currentDraft(r, businessID)
	switch {
	case errors.Is(err, internaltypes.ErrNotFound) || (err == nil && duration != 0 && d.DurationMinutes != duration):
		if duration == 0 {
			http.Error(w, "duration is required to start a booking", http.StatusBadRequest)
			return
		}
		d, err = s.Drafts.Create(r.Context(), drafts.Draft{BusinessID: businessID, DurationMinutes: duration})
		if err != nil {
			s.Log.Error("create draft failed", zap.String("business_id", businessID), zap.Error(err))
			http.Error(w, "could not start booking", http.StatusInternalServerError)
			return
		}
		if err := s.Cookies.SetDraftID(w, r, d.ID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	case err != nil:
		s.Log.Error("load draft failed", zap.Error(err))
		http.Error(w, "could not load booking", http.StatusInternalServerError)
		return
	}

	s.resolveAndRender(w, r, d, action{})
}

func (s *Server) handlePickDate(w http.ResponseWriter, r *http.Request) {
	d, ok := s.requireDraft(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := availability.ParseDate(r.FormValue("date"), s.Now().Location())
	if err != nil {
		s.render(w, http.StatusBadRequest, s.page(d, picker.View{}, "Please choose a valid date."))
		return
	}

	s.resolveAndRender(w, r, d, action{date: date})
}

func (s *Server) handlePickTime(w http.ResponseWriter, r *http.Request) {
	d, ok := s.requireDraft(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t := strings.TrimSpace(r.FormValue("time"))
	s.resolveAndRender(w, r, d, action{time: t})
}

// action is the user pick carried by a request, if any.
type action struct {
	date time.Time
	time string
}

// resolveAndRender feeds the draft into a fresh picker, applies the pick,
// waits for the window to resolve and renders the result.
func (s *Server) resolveAndRender(w http.ResponseWriter, r *http.Request, d drafts.Draft, act action) {
	ctx := r.Context()
	var expired atomic.Bool
	sess := session.FromRequest(r, s.SessionCookieName, session.InvalidatorFunc(func() { expired.Store(true) }))

	record := drafts.Recorder(ctx, s.Drafts, d.ID, s.Log)
	p := picker.New(s.Fetchers(sess),
		picker.WithClock(s.Now),
		picker.WithLogger(s.Log),
		picker.WithOnSelect(func(date, t string) {
			record(date, t)
			d.Date, d.Time = date, t
		}),
	)
	p.Configure(ctx, d.BusinessID, d.DurationMinutes)

	flash, status := "", http.StatusOK
	seed := func() {
		if d.Date != "" {
			if date, err := availability.ParseDate(d.Date, s.Now().Location()); err == nil {
				p.SetDate(ctx, date)
			}
		}
		p.SetTime(d.Time)
	}

	switch {
	case !act.date.IsZero():
		if err := p.PickDate(ctx, act.date); err != nil {
			flash, status = "Please choose today or a later date.", http.StatusBadRequest
			seed()
		}
		p.Wait()
	case act.time != "":
		seed()
		p.Wait()
		if err := p.PickTime(act.time); err != nil {
			flash, status = "That time is no longer available. Please pick another.", http.StatusConflict
		}
	default:
		seed()
		p.Wait()
	}

	if expired.Load() {
		session.ClearCookie(w, s.SessionCookieName)
		http.Redirect(w, r, s.loginRedirect(r), http.StatusFound)
		return
	}
	s.render(w, status, s.page(d, picker.Present(p.State()), flash))
}

func (s *Server) currentDraft(r *http.Request, businessID string) (drafts.Draft, error) {
	id, ok := s.Cookies.DraftID(r)
	if !ok {
		return drafts.Draft{}, internaltypes.ErrNotFound
	}
	d, err := s.Drafts.Get(r.Context(), id)
	if err != nil {
		return drafts.Draft{}, err
	}
	if d.BusinessID != businessID {
		return drafts.Draft{}, internaltypes.ErrNotFound
	}
	return d, nil
}

func (s *Server) requireDraft(w http.ResponseWriter, r *http.Request) (drafts.Draft, bool) {
	businessID := strings.TrimSpace(r.PathValue("businessID"))
	d, err := s.currentDraft(r, businessID)
	if errors.Is(err, internaltypes.ErrNotFound) {
		http.Redirect(w, r, "/book/"+url.PathEscape(businessID), http.StatusSeeOther)
		return drafts.Draft{}, false
	}
	if err != nil {
		s.Log.Error("load draft failed", zap.Error(err))
		http.Error(w, "could not load booking", http.StatusInternalServerError)
		return drafts.Draft{}, false
	}
	return d, true
}

func (s *Server) loginRedirect(r *http.Request) string {
	login := s.LoginURL
	if login == "" {
		login = "/login"
	}
	sep := "?"
	if strings.Contains(login, "?") {
		sep = "&"
	}
	next := "/book/" + url.PathEscape(r.PathValue("businessID"))
	return login + sep + "next=" + url.QueryEscape(next)
}

func (s *Server) page(d drafts.Draft, v picker.View, flash string) pageData {
	return pageData{
		Title:      "Book a time",
		BusinessID: d.BusinessID,
		Draft:      d,
		Today:      availability.FormatDate(s.Now()),
		Flash:      flash,
		View:       v,
	}
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "base", data); err != nil {
		s.Log.Error("render failed", zap.Error(err))
	}
}

// Start serves h on addr until ctx is done.
func Start(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
