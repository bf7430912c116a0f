package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/harborfun/fisharena/internal/game"
	"github.com/harborfun/fisharena/internal/middleware"
	"github.com/harborfun/fisharena/internal/models"
	"github.com/harborfun/fisharena/internal/room"
)

func (s *Server) profileOf(r *http.Request) models.Profile {
	claims, _ := middleware.ClaimsFrom(r)
	return models.Profile{Nickname: claims.Nickname}
}

func pathRoomID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	return id, err == nil
}

type createRoomRequest struct {
	Type models.RoomType `json:"type"`
}

// CreateRoom opens a new room with the caller as host. Defaults to a
// private, code-joinable room.
func (s *Server) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r)
	var req createRoomRequest
	_ = decodeJSON(r, &req)
	if req.Type == "" {
		req.Type = models.RoomTypePrivate
	}
	if req.Type != models.RoomTypePublic && req.Type != models.RoomTypePrivate {
		http.Error(w, "bad room type", http.StatusBadRequest)
		return
	}

	created, err := s.Reg.CreateRoom(r.Context(), userID, s.profileOf(r), req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type joinRoomRequest struct {
	RoomID   string `json:"roomId"`
	RoomCode string `json:"roomCode"`
}

// JoinRoom joins by id or code.
func (s *Server) JoinRoom(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r)
	var req joinRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var (
		joined *models.Room
		err    error
	)
	switch {
	case req.RoomID != "":
		roomID, perr := uuid.Parse(req.RoomID)
		if perr != nil {
			http.Error(w, "bad roomId", http.StatusBadRequest)
			return
		}
		joined, err = s.Reg.Join(r.Context(), roomID, userID, s.profileOf(r))
	case req.RoomCode != "":
		joined, err = s.Reg.JoinByCode(r.Context(), req.RoomCode, userID, s.profileOf(r))
	default:
		http.Error(w, "roomId or roomCode required", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.broadcastRoom(joined)
	writeJSON(w, http.StatusOK, joined)
}

// QuickJoin drops the caller into the oldest open public room.
func (s *Server) QuickJoin(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r)
	candidate, err := s.Reg.FindMatchable(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	joined, err := s.Reg.Join(r.Context(), candidate.ID, userID, s.profileOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	s.broadcastRoom(joined)
	writeJSON(w, http.StatusOK, joined)
}

// ListPublicRooms is the open room browser.
func (s *Server) ListPublicRooms(w http.ResponseWriter, r *http.Request) {
	items, err := s.Reg.ListPublicRooms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathRoomID(r)
	if !ok {
		http.Error(w, "bad room id", http.StatusBadRequest)
		return
	}
	found, err := s.Reg.GetRoom(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) GetRoomByCode(w http.ResponseWriter, r *http.Request) {
	found, err := s.Reg.GetRoomByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r)
	roomID, ok := pathRoomID(r)
	if !ok {
		http.Error(w, "bad room id", http.StatusBadRequest)
		return
	}
	left, err := s.Reg.Leave(r.Context(), roomID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.WS.Router.UnbindRoom(userID)
	if left == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"dissolved": true})
		return
	}
	s.broadcastRoom(left)
	writeJSON(w, http.StatusOK, left)
}

type readyRequest struct {
	Ready bool `json:"ready"`
}

func (s *Server) SetReady(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r)
	roomID, ok := pathRoomID(r)
	if !ok {
		http.Error(w, "bad room id", http.StatusBadRequest)
		return
	}
	var req readyRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	updated, err := s.Reg.SetReady(r.Context(), roomID, userID, req.Ready)
	if err != nil {
		writeError(w, err)
		return
	}
	s.broadcastRoom(updated)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) StartGame(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r)
	roomID, ok := pathRoomID(r)
	if !ok {
		http.Error(w, "bad room id", http.StatusBadRequest)
		return
	}
	started, err := s.Session.StartByHost(r.Context(), roomID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, started)
}

func (s *Server) EndGame(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r)
	roomID, ok := pathRoomID(r)
	if !ok {
		http.Error(w, "bad room id", http.StatusBadRequest)
		return
	}
	record, err := s.Session.EndByHost(r.Context(), roomID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) NextGame(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r)
	roomID, ok := pathRoomID(r)
	if !ok {
		http.Error(w, "bad room id", http.StatusBadRequest)
		return
	}
	updated, err := s.Reg.ReadyForNextGame(r.Context(), roomID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.broadcastRoom(updated)
	writeJSON(w, http.StatusOK, updated)
}

// ListPositions serves the fixed seat table clients lay cannons out with.
func (s *Server) ListPositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, room.Positions())
}

// broadcastRoom tells connected members about a room change initiated over
// HTTP.
func (s *Server) broadcastRoom(updated *models.Room) {
	if s.WS == nil || updated == nil {
		return
	}
	s.WS.Router.BroadcastRoom(updated.ID, game.RoomUpdated(updated))
}
