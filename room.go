package workos

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/madhatter5501/WorkOS/kanban"
)

// RoomName is the fixed Jitsi room of the team.
const RoomName = "OracleNavigatorRoom"

// Room is the team video room. Outside live mode a random roster member is
// shown as the active speaker.
type Room struct {
	roster []kanban.User
	logger *slog.Logger

	mu      sync.RWMutex
	live    bool
	speaker string
}

// NewRoom creates a room for the roster.
func NewRoom(roster []kanban.User, logger *slog.Logger) *Room {
	if logger == nil {
		logger = slog.Default()
	}
	return &Room{roster: roster, logger: logger}
}

// URL returns the Jitsi meeting URL.
func (r *Room) URL() string {
	return "https://meet.jit.si/" + RoomName
}

// Live reports whether the room shows the real Jitsi call.
func (r *Room) Live() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

// SetLive switches between the live call and the demo view.
func (r *Room) SetLive(live bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live != live {
		r.logger.Info("Room mode changed", "live", live)
	}
	r.live = live
}

// ActiveSpeaker returns the highlighted participant, if any.
func (r *Room) ActiveSpeaker() (kanban.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.roster {
		if u.ID == r.speaker {
			return u.Public(), true
		}
	}
	return kanban.User{}, false
}

// Rotate picks a new random speaker. It does nothing in live mode.
func (r *Room) Rotate(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live || len(r.roster) == 0 {
		return nil
	}
	r.speaker = r.roster[rand.IntN(len(r.roster))].ID
	return nil
}
