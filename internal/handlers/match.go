package handlers

import (
	"net/http"
	"time"

	"github.com/harborfun/fisharena/internal/middleware"
	"github.com/harborfun/fisharena/internal/models"
	"github.com/harborfun/fisharena/internal/ws"
)

// StartMatching puts the caller into the matchmaking queue. Re-queueing
// while already waiting is a no-op reported as queued=true.
func (s *Server) StartMatching(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r)
	claims, _ := middleware.ClaimsFrom(r)

	_, err := s.Matcher.Enqueue(r.Context(), models.MatchingPlayer{
		UserID:   userID,
		Nickname: claims.Nickname,
		QueuedAt: time.Now(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"queued": true})
}

// CancelMatching removes the caller from the queue.
func (s *Server) CancelMatching(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r)
	removed, err := s.Matcher.Dequeue(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// ConfirmMatch confirms a formed match within the ready window.
func (s *Server) ConfirmMatch(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r)
	confirmed, err := s.Matcher.ConfirmReady(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.WS.Router.BindRoom(userID, confirmed.ID)
	s.broadcastRoom(confirmed)
	writeJSON(w, http.StatusOK, confirmed)
}

// MatchStatus reports queue membership, current room, and the live timer.
func (s *Server) MatchStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r)
	data := ws.StatusFor(r.Context(), s.Reg, s.Session, s.Matcher, userID)
	writeJSON(w, http.StatusOK, data)
}
