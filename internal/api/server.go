// Package api serves the JSON api the dashboard is built on.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"

	iwerrs "github.com/jdholdren/indexwatch/internal/errors"
	"github.com/jdholdren/indexwatch/internal/indexwatch"
	"github.com/jdholdren/indexwatch/internal/metrics"
	"github.com/jdholdren/indexwatch/internal/serverutil"
	"github.com/jdholdren/indexwatch/internal/sync"
)

type (
	// Store is what the server reads directly, outside of the controller.
	Store interface {
		indexwatch.SettingsRepo
		Ping(ctx context.Context) error
	}

	// Server is an instance of the dashboard api.
	Server struct {
		*http.Server

		ctrl    *sync.Controller
		store   Store
		metrics *metrics.Metrics

		secureCookie    *securecookie.SecureCookie
		httpsCookies    bool // Whether or not HTTPS should be used for cookies
		defaultPageSize int
		maxPageSize     int
	}

	ServerConfig struct {
		Port            int
		CookieHashKey   []byte
		CookieBlockKey  []byte
		HttpsCookies    bool
		CorsOrigin      string
		DefaultPageSize int
		MaxPageSize     int
	}
)

func NewServer(config ServerConfig, ctrl *sync.Controller, store Store, m *metrics.Metrics) *Server {
	r := serverutil.ErrRouter{Router: mux.NewRouter()}

	srvr := Server{
		ctrl:            ctrl,
		store:           store,
		metrics:         m,
		secureCookie:    securecookie.New(config.CookieHashKey, config.CookieBlockKey),
		httpsCookies:    config.HttpsCookies,
		defaultPageSize: config.DefaultPageSize,
		maxPageSize:     config.MaxPageSize,
		Server: &http.Server{
			Addr:        fmt.Sprintf(":%d", config.Port),
			ReadTimeout: 5 * time.Second,
			// Checking a batch of urls takes a while
			WriteTimeout: 5 * time.Minute,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsOrigin}),
				handlers.AllowCredentials(),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything
	r.Use(m.Middleware)
	r.Use(credentialMiddleware(srvr.secureCookie))

	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.HandleFuncE("/healthz", srvr.getHealth).Methods(http.MethodGet)

	// Dashboard
	r.HandleFuncE("/api/dashboard", srvr.getDashboard).Methods(http.MethodGet)
	r.HandleFuncE("/api/results", srvr.getResults).Methods(http.MethodGet)
	r.HandleFuncE("/api/history", srvr.getHistory).Methods(http.MethodGet)

	// Url management
	r.HandleFuncE("/api/urls", srvr.postURLs).Methods(http.MethodPost)
	r.HandleFuncE("/api/urls:check", srvr.postURLCheck).Methods(http.MethodPost)
	r.HandleFuncE("/api/urls:refresh", srvr.postURLsRefresh).Methods(http.MethodPost)
	r.HandleFuncE("/api/urls", srvr.deleteURL).Methods(http.MethodDelete)

	// Groups
	r.HandleFuncE("/api/groups", srvr.getGroups).Methods(http.MethodGet)
	r.HandleFuncE("/api/groups", srvr.postGroup).Methods(http.MethodPost)
	r.HandleFuncE("/api/groups/{groupID}", srvr.putGroup).Methods(http.MethodPut)
	r.HandleFuncE("/api/groups/{groupID}", srvr.deleteGroup).Methods(http.MethodDelete)
	r.HandleFuncE("/api/groups/{groupID}/urls", srvr.deleteGroupURL).Methods(http.MethodDelete)

	// Settings and the client side api key
	r.HandleFuncE("/api/settings", srvr.getSettings).Methods(http.MethodGet)
	r.HandleFuncE("/api/settings", srvr.putSettings).Methods(http.MethodPut)
	r.HandleFuncE("/api/credential", srvr.putCredential).Methods(http.MethodPut)
	r.HandleFuncE("/api/credential", srvr.deleteCredential).Methods(http.MethodDelete)

	slog.Debug("configured api server", "port", config.Port)

	return &srvr
}

func (s Server) getHealth(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return iwerrs.E(iwerrs.KindRemoteStore, fmt.Errorf("error pinging store: %w", err), http.StatusServiceUnavailable)
	}

	return serverutil.WriteJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}
