package api

import (
	"net/http"

	"github.com/gorilla/mux"

	iwerrs "github.com/jdholdren/indexwatch/internal/errors"
	"github.com/jdholdren/indexwatch/internal/serverutil"
)

type groupRequest struct {
	Name string `json:"name"`
}

// The controller does the thorough checks on names, this only catches a
// missing one.
func (req groupRequest) Validate() error {
	if req.Name == "" {
		return iwerrs.E(iwerrs.KindInvalid, iwerrs.Detail{Field: "name", Error: "required"}, "group name is required")
	}

	return nil
}

func (s Server) getGroups(w http.ResponseWriter, r *http.Request) error {
	groups, err := s.ctrl.Groups(r.Context())
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, groups)
}

func (s Server) postGroup(w http.ResponseWriter, r *http.Request) error {
	req, err := serverutil.DecodeValid[groupRequest](r.Body)
	if err != nil {
		return err
	}

	group, err := s.ctrl.CreateGroup(r.Context(), req.Name)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusCreated, group)
}

func (s Server) putGroup(w http.ResponseWriter, r *http.Request) error {
	req, err := serverutil.DecodeValid[groupRequest](r.Body)
	if err != nil {
		return err
	}

	if err := s.ctrl.RenameGroup(r.Context(), mux.Vars(r)["groupID"], req.Name); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s Server) deleteGroup(w http.ResponseWriter, r *http.Request) error {
	if err := s.ctrl.DeleteGroup(r.Context(), mux.Vars(r)["groupID"]); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s Server) deleteGroupURL(w http.ResponseWriter, r *http.Request) error {
	url, err := requiredQuery(r, "url")
	if err != nil {
		return err
	}

	if err := s.ctrl.RemoveURLFromGroup(r.Context(), mux.Vars(r)["groupID"], url); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
