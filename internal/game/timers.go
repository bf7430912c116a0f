// internal/game/timers.go
package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TimerKind names the three countdowns a room can carry. A room holds at
// most one timer per kind.
type TimerKind string

const (
	TimerReadyTimeout TimerKind = "ready_timeout"
	TimerCountdown    TimerKind = "countdown"
	TimerGame         TimerKind = "game"
)

type timerKey struct {
	Room uuid.UUID
	Kind TimerKind
}

type timerHandle struct {
	done     chan struct{}
	deadline time.Time
}

// Engine runs the per-room countdowns in-process. Starting a timer for a
// (room, kind) that already has one replaces it; the old goroutine observes
// its done channel and exits without firing. Expiry callbacks only fire if
// the handle is still the current one, so a cancel that races the last tick
// wins.
type Engine struct {
	mu     sync.Mutex
	timers map[timerKey]*timerHandle
}

func NewEngine() *Engine {
	return &Engine{timers: make(map[timerKey]*timerHandle)}
}

// Start schedules a countdown of the given number of seconds. onTick, if
// non-nil, fires once immediately with the full value and then once per
// second with the remaining seconds. onExpire fires when the countdown
// reaches zero without being canceled or replaced.
func (e *Engine) Start(roomID uuid.UUID, kind TimerKind, seconds int, onTick func(remaining int), onExpire func()) {
	key := timerKey{Room: roomID, Kind: kind}
	h := &timerHandle{
		done:     make(chan struct{}),
		deadline: time.Now().Add(time.Duration(seconds) * time.Second),
	}

	e.mu.Lock()
	if old, ok := e.timers[key]; ok {
		close(old.done)
		logrus.Debugf("room %s: replacing %s timer", roomID, kind)
	}
	e.timers[key] = h
	e.mu.Unlock()

	go e.run(key, h, seconds, onTick, onExpire)
}

func (e *Engine) run(key timerKey, h *timerHandle, seconds int, onTick func(int), onExpire func()) {
	if onTick != nil {
		onTick(seconds)
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	remaining := seconds
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			remaining--
			if remaining <= 0 {
				if e.removeIfCurrent(key, h) {
					onExpire()
				}
				return
			}
			if onTick != nil {
				onTick(remaining)
			}
		}
	}
}

// removeIfCurrent drops the handle from the table only when it is still the
// registered one for its key.
func (e *Engine) removeIfCurrent(key timerKey, h *timerHandle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timers[key] != h {
		return false
	}
	delete(e.timers, key)
	return true
}

// Cancel stops the timer for (room, kind). Canceling a timer that does not
// exist is a no-op.
func (e *Engine) Cancel(roomID uuid.UUID, kind TimerKind) {
	key := timerKey{Room: roomID, Kind: kind}
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.timers[key]; ok {
		close(h.done)
		delete(e.timers, key)
	}
}

// CancelAll stops every timer a room holds. Called when a room is dissolved
// or swept.
func (e *Engine) CancelAll(roomID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, kind := range []TimerKind{TimerReadyTimeout, TimerCountdown, TimerGame} {
		key := timerKey{Room: roomID, Kind: kind}
		if h, ok := e.timers[key]; ok {
			close(h.done)
			delete(e.timers, key)
		}
	}
}

// Remaining reports the whole seconds left on a timer, or false when none
// is running.
func (e *Engine) Remaining(roomID uuid.UUID, kind TimerKind) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.timers[timerKey{Room: roomID, Kind: kind}]
	if !ok {
		return 0, false
	}
	secs := int(time.Until(h.deadline).Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return secs, true
}
