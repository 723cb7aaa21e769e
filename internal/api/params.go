package api

import (
	"net/http"
	"strings"

	iwerrs "github.com/jdholdren/indexwatch/internal/errors"
)

// Reads a required query parameter.
func requiredQuery(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", iwerrs.E(iwerrs.KindInvalid, iwerrs.Detail{Field: name, Error: "required"}, name+" is required")
	}

	return v, nil
}
