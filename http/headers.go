package http

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/segmentio/encoding/json"
)

const (
	// HeaderClientID carries the client generated identifier used to
	// correlate logs and metrics across reconnections.
	HeaderClientID = "X-Ygg-Client-Id"

	HeaderXForwardedFor = "X-Forwarded-For"
)

// GetUserTokenFromHTTPRequest extracts the user token from the Authorization
// header or from the access_token query parameter.
func GetUserTokenFromHTTPRequest(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}

	return r.URL.Query().Get("access_token")
}

// GetAppKeyFromUserToken returns the app key embedded in the given user
// token. It returns an empty string when the token is malformed.
func GetAppKeyFromUserToken(token string) string {
	payload, _, _ := strings.Cut(token, ".")

	b, err := hex.DecodeString(payload)
	if err != nil {
		return ""
	}

	var claims UserTokenClaims
	if err := json.Unmarshal(b, &claims); err != nil {
		return ""
	}

	return claims.AppKey
}

// HandleWithCORS decorates the given handler to accept cross origin
// requests.
func HandleWithCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+HeaderClientID)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}
