package api

import (
	"fmt"
	"net/http"
	"strings"

	iwerrs "github.com/jdholdren/indexwatch/internal/errors"
	"github.com/jdholdren/indexwatch/internal/indexwatch"
	"github.com/jdholdren/indexwatch/internal/serverutil"
)

type (
	// The key itself never leaves the server.
	settingsResp struct {
		APIKeySet            bool `json:"api_key_set"`
		CheckIntervalHours   int  `json:"check_interval_hours"`
		NotificationsEnabled bool `json:"notifications_enabled"`
	}

	putSettingsRequest struct {
		APIKey               *string `json:"api_key"` // Left alone when omitted
		CheckIntervalHours   int     `json:"check_interval_hours"`
		NotificationsEnabled bool    `json:"notifications_enabled"`
	}

	putCredentialRequest struct {
		Key string `json:"key"`
	}
)

// At most a month between checks.
const maxCheckIntervalHours = 24 * 30

func (req putSettingsRequest) Validate() error {
	if req.CheckIntervalHours < 1 || req.CheckIntervalHours > maxCheckIntervalHours {
		return iwerrs.E(
			iwerrs.KindInvalid,
			iwerrs.Detail{Field: "check_interval_hours", Error: fmt.Sprintf("must be between 1 and %d", maxCheckIntervalHours)},
			"invalid check interval",
		)
	}

	return nil
}

func (req putCredentialRequest) Validate() error {
	if strings.TrimSpace(req.Key) == "" {
		return iwerrs.E(iwerrs.KindInvalid, iwerrs.Detail{Field: "key", Error: "required"}, "api key is required")
	}

	return nil
}

func (s Server) getSettings(w http.ResponseWriter, r *http.Request) error {
	settings, err := s.store.Settings(r.Context())
	if err != nil {
		return iwerrs.E(iwerrs.KindRemoteStore, err)
	}

	return serverutil.WriteJSON(w, http.StatusOK, settingsResp{
		APIKeySet:            settings.APIKey != "" || cookieKey(r, s.secureCookie) != "",
		CheckIntervalHours:   settings.CheckIntervalHours,
		NotificationsEnabled: settings.NotificationsEnabled,
	})
}

func (s Server) putSettings(w http.ResponseWriter, r *http.Request) error {
	req, err := serverutil.DecodeValid[putSettingsRequest](r.Body)
	if err != nil {
		return err
	}

	current, err := s.store.Settings(r.Context())
	if err != nil {
		return iwerrs.E(iwerrs.KindRemoteStore, err)
	}

	next := indexwatch.Settings{
		APIKey:               current.APIKey,
		CheckIntervalHours:   req.CheckIntervalHours,
		NotificationsEnabled: req.NotificationsEnabled,
	}
	if req.APIKey != nil {
		next.APIKey = strings.TrimSpace(*req.APIKey)
	}
	if err := s.store.SaveSettings(r.Context(), next); err != nil {
		return iwerrs.E(iwerrs.KindRemoteStore, err)
	}

	// Keep the client side key in step with the saved one
	if req.APIKey != nil {
		if err := setCookieKey(w, s.secureCookie, s.httpsCookies, next.APIKey); err != nil {
			return fmt.Errorf("error encoding cookie: %w", err)
		}
	}

	return serverutil.WriteJSON(w, http.StatusOK, settingsResp{
		APIKeySet:            next.APIKey != "",
		CheckIntervalHours:   next.CheckIntervalHours,
		NotificationsEnabled: next.NotificationsEnabled,
	})
}

func (s Server) putCredential(w http.ResponseWriter, r *http.Request) error {
	req, err := serverutil.DecodeValid[putCredentialRequest](r.Body)
	if err != nil {
		return err
	}

	if err := setCookieKey(w, s.secureCookie, s.httpsCookies, strings.TrimSpace(req.Key)); err != nil {
		return fmt.Errorf("error encoding cookie: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s Server) deleteCredential(w http.ResponseWriter, r *http.Request) error {
	if err := setCookieKey(w, s.secureCookie, s.httpsCookies, ""); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
