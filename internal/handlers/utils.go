package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harborfun/fisharena/internal/room"
)

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps registry failures onto HTTP statuses: not-found to 404,
// state conflicts to 409, host violations to 403, everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case room.IsNotFound(err):
		status = http.StatusNotFound
	case room.IsConflict(err):
		status = http.StatusConflict
	case errors.Is(err, room.ErrNotHost), errors.Is(err, room.ErrOperationNotAllowed):
		status = http.StatusForbidden
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// decodeJSON reads the request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
