package websocket

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultContent is what a freshly created room shows its first member.
const DefaultContent = "// Welcome! You are the admin.\n"

// SocketID identifies one live connection. It mirrors the transport's
// socket id but keeps the registry free of any socket.io types.
type SocketID string

type room struct {
	content string
	admin   SocketID
	members map[SocketID]struct{}
	// awaitingSync holds joiners that were announced to the room via
	// user-joined and have not yet received a peer content push. A member
	// may only sync-push to ids listed here.
	awaitingSync map[SocketID]struct{}
}

// Registry owns all room state for one server process. Every operation is
// atomic under the registry mutex, so the single-admin and orphan-cleanup
// invariants hold at every point an outside observer can see.
//
// Admin handoff is synchronous: when the admin disconnects, a successor is
// chosen from the remaining members inside the same critical section. There
// is no delayed promotion and therefore no window in which a fresh join and
// a stale promotion can race.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

type (
	// JoinResult tells the transport layer what to emit after a join.
	JoinResult struct {
		Content  string
		Editable bool
		Count    int
		// Others are the members that were already in the room; they are
		// notified of the arrival so one of them can push a fresh sync.
		Others []SocketID
	}

	// EditResult reports whether an edit was accepted and who should
	// receive the broadcast.
	EditResult struct {
		Accepted   bool
		Recipients []SocketID
	}

	// Departure describes the effect of a disconnect on one room.
	Departure struct {
		RoomID   string
		Count    int
		NewAdmin SocketID // "" when the admin did not change
		Deleted  bool     // the room had no remaining members
	}
)

// Join registers a connection as a member of a room, creating the room on
// first join. The joiner becomes admin when the room is new or has no live
// admin; otherwise it is read-only.
func (g *Registry) Join(id SocketID, roomID string) JoinResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rooms[roomID]
	if !ok {
		rm = &room{
			content:      DefaultContent,
			admin:        id,
			members:      make(map[SocketID]struct{}),
			awaitingSync: make(map[SocketID]struct{}),
		}
		g.rooms[roomID] = rm
	} else if _, live := rm.members[rm.admin]; rm.admin == "" || !live {
		// Stale or absent admin is treated the same as no admin at all.
		rm.admin = id
	}

	res := JoinResult{
		Content:  rm.content,
		Editable: rm.admin == id,
	}
	for member := range rm.members {
		if member != id {
			res.Others = append(res.Others, member)
		}
	}
	rm.members[id] = struct{}{}
	res.Count = len(rm.members)

	if len(res.Others) > 0 {
		rm.awaitingSync[id] = struct{}{}
	}

	logrus.WithFields(logrus.Fields{
		"socket_id": id,
		"room_id":   roomID,
		"editable":  res.Editable,
		"members":   res.Count,
	}).Info("Socket joined room")
	return res
}

// Edit applies a content update from a connection. Updates from anyone but
// the room admin are dropped without feedback, regardless of what editor
// mode the sender's UI currently shows.
func (g *Registry) Edit(id SocketID, roomID, content string) EditResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rooms[roomID]
	if !ok || content == "" {
		return EditResult{}
	}
	if rm.admin != id {
		logrus.WithFields(logrus.Fields{
			"socket_id": id,
			"room_id":   roomID,
		}).Debug("Dropping edit from non-admin socket")
		return EditResult{}
	}

	rm.content = content
	res := EditResult{Accepted: true}
	for member := range rm.members {
		if member != id {
			res.Recipients = append(res.Recipients, member)
		}
	}
	return res
}

// AllowSync reports whether from may push content directly to target, and
// consumes the grant on success. A push is only allowed when the registry
// itself announced target to a room from belongs to, so a client can never
// reach an arbitrary socket id it guessed.
func (g *Registry) AllowSync(from, target SocketID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if from == target {
		return false
	}
	for _, rm := range g.rooms {
		if _, ok := rm.members[from]; !ok {
			continue
		}
		if _, ok := rm.awaitingSync[target]; ok {
			delete(rm.awaitingSync, target)
			return true
		}
	}
	return false
}

// Disconnect removes a connection from every room it was a member of and
// returns what happened to each. When the departing connection was a room's
// admin a successor is promoted immediately from the remaining members; the
// choice is arbitrary and callers must not rely on any particular order.
// Rooms left with no members are deleted.
func (g *Registry) Disconnect(id SocketID) []Departure {
	g.mu.Lock()
	defer g.mu.Unlock()

	var departures []Departure
	for roomID, rm := range g.rooms {
		if _, ok := rm.members[id]; !ok {
			continue
		}
		delete(rm.members, id)
		delete(rm.awaitingSync, id)

		dep := Departure{RoomID: roomID, Count: len(rm.members)}
		if len(rm.members) == 0 {
			delete(g.rooms, roomID)
			dep.Deleted = true
			logrus.WithField("room_id", roomID).Info("Room is empty, cleaning up")
		} else if rm.admin == id {
			for member := range rm.members {
				rm.admin = member
				dep.NewAdmin = member
				break
			}
			logrus.WithFields(logrus.Fields{
				"room_id":   roomID,
				"new_admin": dep.NewAdmin,
			}).Info("Promoted new room admin")
		}
		departures = append(departures, dep)
	}
	return departures
}

// Content returns the current document text of a room.
func (g *Registry) Content(roomID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rooms[roomID]
	if !ok {
		return "", false
	}
	return rm.content, true
}

// Admin returns the socket currently holding write authority in a room.
func (g *Registry) Admin(roomID string) (SocketID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rooms[roomID]
	if !ok {
		return "", false
	}
	return rm.admin, true
}

// ActiveRooms returns a snapshot of room ids and their member counts.
func (g *Registry) ActiveRooms() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()

	rooms := make(map[string]int, len(g.rooms))
	for id, rm := range g.rooms {
		rooms[id] = len(rm.members)
	}
	return rooms
}
