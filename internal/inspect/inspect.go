package inspect

import (
	"net/http"

	"go.uber.org/zap"
)

const sessionKeyPrefixLen = 10

// Identity reports the authenticated user's email for a request, if any.
type Identity func(r *http.Request) (email string, ok bool)

type Inspector struct {
	switches   *Switches
	logger     *zap.SugaredLogger
	cookieName string
	identity   Identity
}

func New(switches *Switches, logger *zap.SugaredLogger, cookieName string, identity Identity) *Inspector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Inspector{
		switches:   switches,
		logger:     logger,
		cookieName: cookieName,
		identity:   identity,
	}
}

// Middleware logs on the way in and on the way out. It never alters the
// request or the response.
func (i *Inspector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.switches.Active(EnableSessionInspect) {
			next.ServeHTTP(w, r)
			return
		}

		i.inspect("request", r)
		next.ServeHTTP(w, r)
		i.inspect("response", r)
	})
}

func (i *Inspector) inspect(phase string, r *http.Request) {
	email, authenticated := "", false
	if i.identity != nil {
		email, authenticated = i.identity(r)
	}
	cookie, err := r.Cookie(i.cookieName)
	hasSession := err == nil && cookie.Value != ""

	if !authenticated && !hasSession {
		i.logger.Infow("no session", "phase", phase, "method", r.Method, "uri", r.RequestURI)
		return
	}

	i.logger.Infow("inspecting request", requestFields(phase, r)...)

	sessionType := "unauthenticated"
	if authenticated {
		sessionType = "authenticated"
	}
	fields := []any{"phase", phase, "session_type", sessionType}
	if authenticated {
		fields = append(fields, "email", email)
	}
	if hasSession {
		fields = append(fields, "session_key", keyPrefix(cookie.Value), "cookie_name", i.cookieName)
	} else {
		fields = append(fields, "session", "no session object found")
	}
	i.logger.Infow("inspecting session", fields...)
}

func requestFields(phase string, r *http.Request) []any {
	fields := []any{"phase", phase, "method", r.Method}
	if ref := r.Referer(); ref != "" {
		fields = append(fields, "referrer", ref)
	}
	if r.URL != nil && r.URL.User != nil {
		fields = append(fields, "remote_user", r.URL.User.Username())
	} else if user, _, ok := r.BasicAuth(); ok && user != "" {
		fields = append(fields, "remote_user", user)
	}
	if r.RemoteAddr != "" {
		fields = append(fields, "remote_addr", r.RemoteAddr)
	}
	if r.Host != "" {
		fields = append(fields, "host", r.Host)
	}
	return append(fields, "uri", r.RequestURI)
}

func keyPrefix(key string) string {
	if len(key) > sessionKeyPrefixLen {
		return key[:sessionKeyPrefixLen]
	}
	return key
}
