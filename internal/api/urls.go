package api

import (
	"net/http"

	iwerrs "github.com/jdholdren/indexwatch/internal/errors"
	"github.com/jdholdren/indexwatch/internal/serverutil"
	"github.com/jdholdren/indexwatch/internal/sync"
)

// The limit on urls submitted at once.
const maxBatchSize = 500

type (
	postURLsRequest struct {
		URLs  []string `json:"urls"`
		Group string   `json:"group"` // Id or name, created when unknown
	}

	postURLCheckRequest struct {
		URL string `json:"url"`
	}

	outcomeResp struct {
		sync.Outcome
		Partial bool `json:"partial"`
	}
)

func (req postURLsRequest) Validate() error {
	if len(req.URLs) == 0 {
		return iwerrs.E(iwerrs.KindInvalid, iwerrs.Detail{Field: "urls", Error: "required"}, "no urls given")
	}
	if len(req.URLs) > maxBatchSize {
		return iwerrs.E(iwerrs.KindInvalid, iwerrs.Detail{Field: "urls", Error: "too many"}, "too many urls")
	}

	return nil
}

func (req postURLCheckRequest) Validate() error {
	if req.URL == "" {
		return iwerrs.E(iwerrs.KindInvalid, iwerrs.Detail{Field: "url", Error: "required"}, "no url given")
	}

	return nil
}

func (s Server) getDashboard(w http.ResponseWriter, r *http.Request) error {
	args, err := s.parseListParams(r)
	if err != nil {
		return err
	}

	dash, err := s.ctrl.Reload(r.Context(), args)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, dash)
}

func (s Server) getResults(w http.ResponseWriter, r *http.Request) error {
	args, err := s.parseListParams(r)
	if err != nil {
		return err
	}

	page, err := s.ctrl.Results(r.Context(), args)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, page)
}

func (s Server) getHistory(w http.ResponseWriter, r *http.Request) error {
	hist, err := s.ctrl.History(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, hist)
}

func (s Server) postURLs(w http.ResponseWriter, r *http.Request) error {
	req, err := serverutil.DecodeValid[postURLsRequest](r.Body)
	if err != nil {
		return err
	}

	out, err := s.ctrl.AddUrls(r.Context(), req.URLs, req.Group)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, outcomeResp{Outcome: out, Partial: out.Partial()})
}

func (s Server) postURLCheck(w http.ResponseWriter, r *http.Request) error {
	req, err := serverutil.DecodeValid[postURLCheckRequest](r.Body)
	if err != nil {
		return err
	}

	res, err := s.ctrl.CheckUrl(r.Context(), req.URL)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, res)
}

func (s Server) postURLsRefresh(w http.ResponseWriter, r *http.Request) error {
	out, err := s.ctrl.RefreshKnown(r.Context())
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, outcomeResp{Outcome: out, Partial: out.Partial()})
}

func (s Server) deleteURL(w http.ResponseWriter, r *http.Request) error {
	url, err := requiredQuery(r, "url")
	if err != nil {
		return err
	}

	if err := s.ctrl.DeleteUrl(r.Context(), url); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
