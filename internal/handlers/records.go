package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/harborfun/fisharena/internal/database"
	"github.com/harborfun/fisharena/internal/models"
)

const defaultRecordLimit = 20

// GetRecord serves one finished game's record.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "bad record id", http.StatusBadRequest)
		return
	}
	rec, err := database.GetGameRecord(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetUser serves a user's profile and lifetime aggregates.
func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "bad user id", http.StatusBadRequest)
		return
	}
	user, err := database.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetUserRecords aggregates a user's recent games: totals, best score, and
// the raw records.
func (s *Server) GetUserRecords(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "bad user id", http.StatusBadRequest)
		return
	}
	limit := defaultRecordLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	user, err := database.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	records, err := database.ListRecentRecords(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	games, wins, err := database.CountGamesAndWins(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	out := models.PlayerGameRecords{
		UserID:     id,
		Nickname:   user.Nickname,
		TotalGames: games,
		Wins:       wins,
		TotalScore: user.TotalScore,
	}
	for _, rec := range records {
		out.RecentGames = append(out.RecentGames, *rec)
		for _, p := range rec.Players {
			if p.UserID == id && p.Score > out.BestScore {
				out.BestScore = p.Score
			}
		}
	}
	if games > 0 {
		out.AvgScore = user.TotalScore / games
	}
	writeJSON(w, http.StatusOK, out)
}
