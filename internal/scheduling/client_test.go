package scheduling

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/marketbook/internal/domain/availability"
	"github.com/example/marketbook/internal/internaltypes"
	"github.com/example/marketbook/internal/session"
)

func testQuery(t *testing.T) availability.Query {
	t.Helper()
	q, ok := availability.NewQuery("biz-1", 60, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatalf("query preconditions")
	}
	return q
}

func TestFetchSlots_Success(t *testing.T) {
	var gotPath, gotQuery, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		if c, err := r.Cookie("sid"); err == nil {
			gotCookie = c.Value
		}
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[
			{"date":"2025-06-11","time":"09:00","available":true},
			{"date":"2025-06-10","time":"09:00","available":true}
		]}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL + "/", Session: session.FromToken("sid", "tok", nil)})
	slots, err := c.FetchSlots(context.Background(), testQuery(t))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/businesses/biz-1/availability" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	want := "durationMinutes=60&endDate=2025-06-17&slotIntervalMinutes=30&startDate=2025-06-10"
	if gotQuery != want {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if gotCookie != "tok" {
		t.Fatalf("session cookie not forwarded, got %q", gotCookie)
	}
	// upstream order is preserved
	if len(slots) != 2 || slots[0].Date != "2025-06-11" || slots[1].Date != "2025-06-10" {
		t.Fatalf("unexpected slots %+v", slots)
	}
}

func TestFetchSlots_Failures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "upstream message", status: http.StatusBadRequest, body: `{"success":false,"message":"Business not found"}`, message: "Business not found"},
		{name: "no message", status: http.StatusInternalServerError, body: `oops`, message: ""},
		{name: "success false", status: http.StatusOK, body: `{"success":false,"message":"Schedule disabled"}`, message: "Schedule disabled"},
		{name: "malformed", status: http.StatusOK, body: `{"success":`, message: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := New(Options{BaseURL: srv.URL}).FetchSlots(context.Background(), testQuery(t))
			var fe *availability.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if fe.Message != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, fe.Message)
			}
			if got := availability.ReasonTransport.Message(availability.UpstreamMessage(err)); tc.message == "" && got != availability.MessageTransport {
				t.Fatalf("expected fallback message, got %q", got)
			}
		})
	}
}

func TestFetchSlots_UnauthorizedInvalidatesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"Please log in"}`))
	}))
	defer srv.Close()

	expired := false
	c := New(Options{BaseURL: srv.URL}).WithSession(session.FromToken("sid", "tok", session.InvalidatorFunc(func() { expired = true })))
	_, err := c.FetchSlots(context.Background(), testQuery(t))
	if !errors.Is(err, internaltypes.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if !expired {
		t.Fatalf("invalidator not called")
	}
	if availability.UpstreamMessage(err) != "Please log in" {
		t.Fatalf("upstream message lost: %v", err)
	}
}

func TestFetchSlots_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(Options{BaseURL: url, Timeout: time.Second}).FetchSlots(context.Background(), testQuery(t))
	var fe *availability.FetchError
	if !errors.As(err, &fe) || fe.Err == nil {
		t.Fatalf("expected transport FetchError, got %v", err)
	}
}

func TestFetchSlots_InvalidQuery(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	if _, err := New(Options{BaseURL: srv.URL}).FetchSlots(context.Background(), availability.Query{}); err == nil {
		t.Fatalf("expected error for empty query")
	}
	if called {
		t.Fatalf("no request expected for invalid query")
	}
}
