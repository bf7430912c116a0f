package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

type heartbeatResponse struct {
	UserID   uuid.UUID `json:"userId"`
	Online   bool      `json:"online"`
	LastSeen int64     `json:"lastSeen,omitempty"`
}

// GetHeartbeat reports whether a user's connection heartbeat is still live.
// The websocket layer refreshes the key on every heartbeat message, so a
// missing key means the user has been silent past the TTL.
func (s *Server) GetHeartbeat(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid user id"})
		return
	}
	resp := heartbeatResponse{UserID: userID}
	if s.Cache != nil {
		fields, err := s.Cache.HGetAll(r.Context(), "heartbeat:"+userID.String())
		if err != nil {
			writeError(w, err)
			return
		}
		if raw, ok := fields["lastSeen"]; ok {
			resp.Online = true
			resp.LastSeen, _ = strconv.ParseInt(raw, 10, 64)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
