package session

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const draftCookieName = "marketbook_draft"

// CookieStore keeps the visitor's checkout draft reference in a signed,
// encrypted cookie.
type CookieStore struct {
	sc     *securecookie.SecureCookie
	maxAge time.Duration
}

func NewCookieStore(hashKey, blockKey []byte) *CookieStore {
	sc := securecookie.New(hashKey, blockKey)
	maxAge := 7 * 24 * time.Hour
	sc.MaxAge(int(maxAge.Seconds()))
	return &CookieStore{sc: sc, maxAge: maxAge}
}

func (s *CookieStore) SetDraftID(w http.ResponseWriter, r *http.Request, draftID string) error {
	encoded, err := s.sc.Encode(draftCookieName, map[string]string{"draft": draftID})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     draftCookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(s.maxAge.Seconds()),
	})
	return nil
}

func (s *CookieStore) DraftID(r *http.Request) (string, bool) {
	c, err := r.Cookie(draftCookieName)
	if err != nil {
		return "", false
	}
	value := map[string]string{}
	if err := s.sc.Decode(draftCookieName, c.Value, &value); err != nil {
		return "", false
	}
	id := value["draft"]
	if id == "" {
		return "", false
	}
	return id, true
}

func (s *CookieStore) ClearDraft(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name: draftCookieName, Value: "", Path: "/", MaxAge: -1,
		HttpOnly: true, SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires an arbitrary cookie, used to drop a rejected marketplace session.
func ClearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}
