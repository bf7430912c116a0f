package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/harborfun/fisharena/internal/auth"
	"github.com/harborfun/fisharena/internal/cache"
	"github.com/harborfun/fisharena/internal/config"
	"github.com/harborfun/fisharena/internal/game"
	"github.com/harborfun/fisharena/internal/match"
	"github.com/harborfun/fisharena/internal/middleware"
	"github.com/harborfun/fisharena/internal/room"
	"github.com/harborfun/fisharena/internal/ws"
)

// Server carries the wired subsystems behind the HTTP API.
type Server struct {
	Reg      *room.Registry
	Session  *game.Session
	Matcher  *match.Matcher
	WS       *ws.Handler
	Cache    *cache.Cache
	Provider auth.IdentityProvider
	Cfg      config.Config
	Logger   *logrus.Logger
}

// NewMux builds the route table. Everything except login and the public
// room listing sits behind token auth.
func (s *Server) NewMux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", s.Login)
	mux.HandleFunc("GET /positions", s.ListPositions)
	mux.HandleFunc("GET /rooms", s.ListPublicRooms)

	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(h)
	}
	mux.Handle("GET /auth/me", authed(s.Me))

	mux.Handle("POST /rooms", authed(s.CreateRoom))
	mux.Handle("POST /rooms/join", authed(s.JoinRoom))
	mux.Handle("POST /rooms/quickjoin", authed(s.QuickJoin))
	mux.Handle("GET /rooms/code/{code}", authed(s.GetRoomByCode))
	mux.Handle("GET /rooms/{id}", authed(s.GetRoom))
	mux.Handle("POST /rooms/{id}/leave", authed(s.LeaveRoom))
	mux.Handle("POST /rooms/{id}/ready", authed(s.SetReady))
	mux.Handle("POST /rooms/{id}/start", authed(s.StartGame))
	mux.Handle("POST /rooms/{id}/end", authed(s.EndGame))
	mux.Handle("POST /rooms/{id}/next", authed(s.NextGame))

	mux.Handle("POST /match", authed(s.StartMatching))
	mux.Handle("DELETE /match", authed(s.CancelMatching))
	mux.Handle("POST /match/confirm", authed(s.ConfirmMatch))
	mux.Handle("GET /match", authed(s.MatchStatus))

	mux.Handle("GET /records/{id}", authed(s.GetRecord))
	mux.Handle("GET /users/{id}", authed(s.GetUser))
	mux.Handle("GET /users/{id}/records", authed(s.GetUserRecords))
	mux.Handle("GET /heartbeat/{id}", authed(s.GetHeartbeat))

	mux.Handle("/ws", s.WS)

	return middleware.LogMiddleware(s.Logger)(mux)
}
