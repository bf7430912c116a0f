// internal/ws/handler.go
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/harborfun/fisharena/internal/auth"
	"github.com/harborfun/fisharena/internal/cache"
	"github.com/harborfun/fisharena/internal/game"
	"github.com/harborfun/fisharena/internal/match"
	"github.com/harborfun/fisharena/internal/middleware"
	"github.com/harborfun/fisharena/internal/models"
	"github.com/harborfun/fisharena/internal/room"
)

const (
	subprotocol  = "fisharena"
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
	heartbeatTTL = 30 * time.Second
)

// inbound is the envelope clients send: a type tag plus a type-specific
// payload.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Handler upgrades authenticated clients to websocket and dispatches their
// messages into the room, match, and game subsystems.
type Handler struct {
	Router  *Router
	Reg     *room.Registry
	Session *game.Session
	Matcher *match.Matcher
	Cache   *cache.Cache
	Logger  *logrus.Logger
}

// ServeHTTP authenticates the token, upgrades, and runs the pumps until
// the client goes away. Disconnect cleans up queue membership and leaves
// the user's room.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := tokenClaims(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		http.Error(w, "bad subject", http.StatusUnauthorized)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{subprotocol},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != subprotocol {
		c.Close(websocket.StatusPolicyViolation, "client must speak the fisharena subprotocol")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn := &Conn{
		UserID:  userID,
		OutChan: make(chan game.Event, outChanSize),
		Cancel:  cancel,
	}
	h.Router.Register(conn)
	middleware.LogWebSocketConnect(h.Logger, userID, r.RemoteAddr)

	// reconnect: rebind to the active room and resend its state
	if existing, err := h.Reg.RoomForUser(ctx, userID); err == nil {
		h.Router.BindRoom(userID, existing.ID)
		conn.Send(game.RoomUpdated(existing))
	}

	go h.writePump(ctx, c, conn)
	h.readPump(ctx, c, conn, claims.Nickname)

	if h.Router.Unregister(conn) {
		h.disconnect(userID)
	}
	middleware.LogWebSocketDisconnect(h.Logger, userID, nil)
}

// tokenClaims pulls the session token from the query string or the
// Authorization header.
func tokenClaims(r *http.Request) (auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return auth.Claims{}, fmt.Errorf("missing token")
	}
	return auth.AuthenticateJWT(token)
}

// disconnect runs once the connection is gone for good: drop out of the
// matchmaking queue and vacate the room.
func (h *Handler) disconnect(userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := h.Matcher.Dequeue(ctx, userID); err != nil {
		h.Logger.Warnf("user %s: dequeue on disconnect: %v", userID, err)
	}
	roomID, bound := h.Router.RoomOf(userID)
	if !bound {
		return
	}
	h.Router.UnbindRoom(userID)
	left, err := h.Reg.Leave(ctx, roomID, userID)
	if err != nil {
		if !room.IsNotFound(err) {
			h.Logger.Warnf("user %s: leave on disconnect: %v", userID, err)
		}
		return
	}
	if left != nil {
		h.Router.BroadcastRoom(roomID, game.RoomUpdated(left))
	}
}

func (h *Handler) readPump(ctx context.Context, c *websocket.Conn, conn *Conn, nickname string) {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus != websocket.StatusNormalClosure &&
				closeStatus != websocket.StatusGoingAway &&
				!strings.Contains(err.Error(), "context canceled") {
				h.Logger.Warnf("user %s: read error: %v", conn.UserID, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var env inbound
		if err := json.Unmarshal(msg, &env); err != nil {
			conn.Send(game.Ack("", false, "invalid JSON"))
			continue
		}
		if err := h.dispatch(ctx, conn, nickname, env); err != nil {
			conn.Send(game.Ack(env.Type, false, err.Error()))
		}
	}
}

func (h *Handler) writePump(ctx context.Context, c *websocket.Conn, conn *Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-conn.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				h.Logger.Warnf("user %s: marshal outgoing %s: %v", conn.UserID, ev.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				h.Logger.Infof("user %s: ping failed, dropping connection", conn.UserID)
				conn.Cancel()
				return
			}
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, conn *Conn, nickname string, env inbound) error {
	userID := conn.UserID
	profile := models.Profile{Nickname: nickname}

	switch env.Type {
	case "room:join":
		var req struct {
			RoomID   string `json:"roomId"`
			RoomCode string `json:"roomCode"`
		}
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		var (
			r   *models.Room
			err error
		)
		switch {
		case req.RoomID != "":
			roomID, perr := uuid.Parse(req.RoomID)
			if perr != nil {
				return fmt.Errorf("bad roomId")
			}
			r, err = h.Reg.Join(ctx, roomID, userID, profile)
		case req.RoomCode != "":
			r, err = h.Reg.JoinByCode(ctx, req.RoomCode, userID, profile)
		default:
			return fmt.Errorf("roomId or roomCode required")
		}
		if err != nil {
			return err
		}
		h.Router.BindRoom(userID, r.ID)
		h.Router.BroadcastRoom(r.ID, game.RoomUpdated(r))
		return nil

	case "room:leave":
		roomID, err := h.boundRoom(ctx, userID)
		if err != nil {
			return err
		}
		left, err := h.Reg.Leave(ctx, roomID, userID)
		if err != nil {
			return err
		}
		h.Router.UnbindRoom(userID)
		if left != nil {
			h.Router.BroadcastRoom(roomID, game.RoomUpdated(left))
		}
		return nil

	case "room:ready":
		var req struct {
			Ready bool `json:"ready"`
		}
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		roomID, err := h.boundRoom(ctx, userID)
		if err != nil {
			return err
		}
		r, err := h.Reg.SetReady(ctx, roomID, userID, req.Ready)
		if err != nil {
			return err
		}
		h.Router.BroadcastRoom(roomID, game.RoomUpdated(r))
		return nil

	case "match:start":
		ok, err := h.Matcher.Enqueue(ctx, models.MatchingPlayer{
			UserID:   userID,
			Nickname: nickname,
			QueuedAt: time.Now(),
		})
		if err != nil {
			return err
		}
		conn.Send(game.Ack(env.Type, true, strconv.FormatBool(ok)))
		return nil

	case "match:cancel":
		if _, err := h.Matcher.Dequeue(ctx, userID); err != nil {
			return err
		}
		conn.Send(game.Ack(env.Type, true, ""))
		return nil

	case "match:confirm":
		r, err := h.Matcher.ConfirmReady(ctx, userID)
		if err != nil {
			return err
		}
		h.Router.BindRoom(userID, r.ID)
		h.Router.BroadcastRoom(r.ID, game.RoomUpdated(r))
		return nil

	case "game:start":
		roomID, err := h.boundRoom(ctx, userID)
		if err != nil {
			return err
		}
		_, err = h.Session.StartByHost(ctx, roomID, userID)
		return err

	case "game:event":
		var ev models.GameEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		roomID, err := h.boundRoom(ctx, userID)
		if err != nil {
			return err
		}
		return h.Session.HandleGameEvent(ctx, roomID, userID, ev)

	case "game:score":
		var req struct {
			UserID string `json:"userId"`
			Delta  int    `json:"delta"`
		}
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		r, err := h.hostRoom(ctx, userID)
		if err != nil {
			return err
		}
		target, err := uuid.Parse(req.UserID)
		if err != nil {
			return fmt.Errorf("bad userId")
		}
		return h.Session.UpdateScore(ctx, r.ID, target, req.Delta)

	case "game:end":
		roomID, err := h.boundRoom(ctx, userID)
		if err != nil {
			return err
		}
		_, err = h.Session.EndByHost(ctx, roomID, userID)
		return err

	case "game:next":
		roomID, err := h.boundRoom(ctx, userID)
		if err != nil {
			return err
		}
		r, err := h.Reg.ReadyForNextGame(ctx, roomID, userID)
		if err != nil {
			return err
		}
		h.Router.BroadcastRoom(roomID, game.RoomUpdated(r))
		return nil

	case "player:init":
		var init models.PlayerInit
		if err := json.Unmarshal(env.Data, &init); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		roomID, err := h.boundRoom(ctx, userID)
		if err != nil {
			return err
		}
		init.UserID = userID
		if _, err := h.Reg.SetWeapon(ctx, roomID, userID, init.WeaponType); err != nil {
			return err
		}
		h.Router.BroadcastRoom(roomID, game.PlayerInitBroadcast(init))
		return nil

	case "player:shoot":
		var shot models.Shot
		if err := json.Unmarshal(env.Data, &shot); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		roomID, err := h.boundRoom(ctx, userID)
		if err != nil {
			return err
		}
		shot.UserID = userID
		h.Router.BroadcastRoom(roomID, game.ShotBroadcast(shot))
		return nil

	case "fish:spawn":
		var spawn models.FishSpawn
		if err := json.Unmarshal(env.Data, &spawn); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		r, err := h.hostRoom(ctx, userID)
		if err != nil {
			return err
		}
		h.Router.BroadcastRoom(r.ID, game.FishSpawnBroadcast(spawn))
		return nil

	case "fish:update":
		var update models.FishUpdate
		if err := json.Unmarshal(env.Data, &update); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		r, err := h.hostRoom(ctx, userID)
		if err != nil {
			return err
		}
		h.Router.BroadcastRoom(r.ID, game.FishUpdateBroadcast(update))
		return nil

	case "bullet:collision":
		var col models.BulletCollision
		if err := json.Unmarshal(env.Data, &col); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		r, err := h.hostRoom(ctx, userID)
		if err != nil {
			return err
		}
		h.Router.BroadcastRoom(r.ID, game.BulletCollisionBroadcast(col))
		return nil

	case "fish:collision":
		var col models.FishCollision
		if err := json.Unmarshal(env.Data, &col); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
		r, err := h.hostRoom(ctx, userID)
		if err != nil {
			return err
		}
		h.Router.BroadcastRoom(r.ID, game.FishCollisionBroadcast(col))
		// host-confirmed kill credit, the only client-driven score path
		return h.Session.UpdateScore(ctx, r.ID, col.UserID, col.Score)

	case "heartbeat":
		h.recordHeartbeat(ctx, userID)
		conn.Send(game.Event{Type: game.EvtHeartbeat})
		return nil

	case "status":
		conn.Send(h.status(ctx, userID))
		return nil

	default:
		return fmt.Errorf("unknown message type %q", env.Type)
	}
}

// boundRoom resolves the caller's room, falling back to the store when the
// router has no binding (e.g. the join happened over HTTP).
func (h *Handler) boundRoom(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	if roomID, ok := h.Router.RoomOf(userID); ok {
		return roomID, nil
	}
	r, err := h.Reg.RoomForUser(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	h.Router.BindRoom(userID, r.ID)
	return r.ID, nil
}

// hostRoom resolves the caller's room and requires them to be its host.
func (h *Handler) hostRoom(ctx context.Context, userID uuid.UUID) (*models.Room, error) {
	roomID, err := h.boundRoom(ctx, userID)
	if err != nil {
		return nil, err
	}
	r, err := h.Reg.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if r.HostID != userID {
		return nil, room.ErrNotHost
	}
	return r, nil
}

func (h *Handler) recordHeartbeat(ctx context.Context, userID uuid.UUID) {
	if h.Cache == nil {
		return
	}
	key := "heartbeat:" + userID.String()
	fields := map[string]string{"lastSeen": strconv.FormatInt(time.Now().Unix(), 10)}
	if err := h.Cache.HSet(ctx, key, fields); err != nil {
		h.Logger.Warnf("user %s: heartbeat write: %v", userID, err)
		return
	}
	if err := h.Cache.Expire(ctx, key, heartbeatTTL); err != nil {
		h.Logger.Warnf("user %s: heartbeat expire: %v", userID, err)
	}
}

func (h *Handler) status(ctx context.Context, userID uuid.UUID) game.Event {
	data := StatusFor(ctx, h.Reg, h.Session, h.Matcher, userID)
	return game.Event{Type: game.EvtStatus, Data: data}
}

// StatusFor assembles the status snapshot also served over HTTP.
func StatusFor(ctx context.Context, reg *room.Registry, session *game.Session, matcher *match.Matcher, userID uuid.UUID) game.StatusData {
	var data game.StatusData
	if r, err := reg.RoomForUser(ctx, userID); err == nil {
		data.Room = r
		if kind, remaining, ok := session.RoundStatus(r.ID); ok {
			data.Timer = string(kind)
			data.Remaining = remaining
		}
	}
	if inQueue, err := matcher.InQueue(ctx, userID); err == nil {
		data.InQueue = inQueue
		if inQueue {
			if q, err := matcher.ListQueue(ctx); err == nil {
				data.Queue = q
			}
		}
	}
	return data
}
