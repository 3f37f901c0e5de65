package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/csvappend/internal/core"
	"github.com/JonMunkholm/csvappend/internal/logging"
)

type sessionKey struct{}

// withSession loads the session named by the session cookie, creating one
// (and setting the cookie) when it is missing or expired.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessions := s.service.Sessions()

		var sess *core.Session
		if c, err := r.Cookie(s.cfg.Session.CookieName); err == nil && c.Value != "" {
			sess, _ = sessions.Get(c.Value)
		}
		if sess == nil {
			sess = sessions.Create()
			http.SetCookie(w, &http.Cookie{
				Name:     s.cfg.Session.CookieName,
				Value:    sess.ID,
				Path:     "/",
				MaxAge:   int(s.cfg.Session.TTL.Seconds()),
				HttpOnly: true,
				Secure:   s.cfg.Session.SecureCookie,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		ctx = logging.WithSessionID(ctx, sess.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the session attached by withSession.
func sessionFrom(ctx context.Context) (*core.Session, error) {
	sess, ok := ctx.Value(sessionKey{}).(*core.Session)
	if !ok || sess == nil {
		return nil, core.ErrSessionNotFound
	}
	return sess, nil
}
