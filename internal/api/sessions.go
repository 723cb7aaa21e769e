package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"

	"github.com/jdholdren/indexwatch/internal/credential"
)

const credentialCookieName = "indexation-api-key"

// Fetches the api key kept in the client's cookie, if any.
func cookieKey(r *http.Request, secureCookie *securecookie.SecureCookie) string {
	cookie, err := r.Cookie(credentialCookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return ""
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "error fetching cookie", "err", err)
		return ""
	}

	var key string
	if err := secureCookie.Decode(credentialCookieName, cookie.Value, &key); err != nil {
		slog.WarnContext(r.Context(), "error decoding cookie", "err", err)
		return ""
	}

	return key
}

// Stores the api key in the client's cookie. An empty key clears it.
func setCookieKey(w http.ResponseWriter, secureCookie *securecookie.SecureCookie, https bool, key string) error {
	cookie := &http.Cookie{
		Name:     credentialCookieName,
		Path:     "/",
		Secure:   https,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	if key == "" {
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
		return nil
	}

	encoded, err := secureCookie.Encode(credentialCookieName, key)
	if err != nil {
		return err
	}
	cookie.Value = encoded
	cookie.MaxAge = 365 * 24 * 60 * 60

	http.SetCookie(w, cookie)
	return nil
}

// Makes the cookie's key available to the credential chain.
func credentialMiddleware(sc *securecookie.SecureCookie) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := cookieKey(r, sc); key != "" {
				r = r.WithContext(credential.WithKey(r.Context(), key))
			}

			next.ServeHTTP(w, r)
		})
	}
}
