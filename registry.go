// Room registry and event handlers.
//
// The registry owns the process-wide code -> room mapping. It is built
// at startup and injected wherever events are handled, so tests can run
// any number of independent registries side by side.
//
// Every inbound event lands in exactly one handler below. A handler
// looks the room up by code, takes the room lock, validates the
// sender's role, mutates state, and queues the resulting broadcasts
// before unlocking, so no other event can observe a half-applied
// change.

package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// numberBound caps generate-number bounds so the span in randomInt
	// cannot overflow.
	numberBound = 1_000_000_000
)

type registry struct {
	cfg   *Config
	clock clockwork.Clock

	mu    sync.Mutex
	rooms map[string]*room
}

func newRegistry(cfg *Config, clock clockwork.Clock) *registry {
	return &registry{
		cfg:   cfg,
		clock: clock,
		rooms: make(map[string]*room),
	}
}

// randomRoomCode draws codeLength characters from codeAlphabet using
// rejection sampling, the same way game ids are generated elsewhere.
func randomRoomCode() string {
	const max = byte(255 - (256 % len(codeAlphabet)))

	out := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength*2)

	for {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		for _, b := range buf {
			if b <= max {
				out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
				if len(out) == codeLength {
					return string(out)
				}
			}
		}
	}
}

// randomInt returns a number in [min, max], both included. Bounds must
// stay within ±numberBound so the span cannot wrap.
func randomInt(min, max int) int {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	span := uint64(max-min) + 1

	return min + int(binary.BigEndian.Uint64(buf[:])%span)
}

func (reg *registry) lookup(code string) *room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return reg.rooms[code]
}

func (reg *registry) roomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.rooms)
}

// deleteRoom broadcasts room-closed to everyone still connected, then
// forgets the room. Deleting an unknown code is a no-op, so concurrent
// teardown paths (owner disconnect, sweep, inactivity guard) may race
// without harm.
func (reg *registry) deleteRoom(code string) {
	reg.mu.Lock()
	r, ok := reg.rooms[code]
	if ok {
		delete(reg.rooms, code)
	}
	reg.mu.Unlock()

	if !ok {
		return
	}

	r.mu.Lock()
	r.deleted = true
	r.broadcastLocked(SimpleMessage{Type: "room-closed"})
	r.mu.Unlock()

	logf(reg.cfg, "GAMES: Deleted room %s", code)
}

// sweepLoop periodically deletes rooms whose gamemaster is gone or
// which have no connections left. It is a safety net for missed
// disconnect signals; the usual teardown happens in leave.
func (reg *registry) sweepLoop(ctx context.Context) {
	ticker := reg.clock.NewTicker(reg.cfg.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			reg.sweep()
		}
	}
}

func (reg *registry) sweep() {
	reg.mu.Lock()
	snapshot := make([]*room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		snapshot = append(snapshot, r)
	}
	reg.mu.Unlock()

	for _, r := range snapshot {
		r.mu.Lock()
		orphaned := len(r.clients) == 0 || !r.clients[r.owner]
		r.mu.Unlock()

		if orphaned {
			reg.deleteRoom(r.code)
		}
	}
}

func (reg *registry) sendError(c *client, err error) {
	c.enqueue(RoomErrorMessage{
		Type:    "room-error",
		Message: err.Error(),
	})
}

// createRoom handles create-room. The creating connection becomes the
// room's gamemaster for the room's whole lifetime.
func (reg *registry) createRoom(c *client, msg ClientMessage) {
	ownerName := strings.TrimSpace(msg.PlayerName)
	if ownerName == "" {
		reg.sendError(c, errInvalidName)
		return
	}

	r := newRoom("", c, reg.clock.Now())

	reg.mu.Lock()
	for {
		code := randomRoomCode()
		if _, taken := reg.rooms[code]; taken {
			continue
		}
		r.code = code
		reg.rooms[code] = r
		break
	}
	reg.mu.Unlock()

	c.room = r

	c.enqueue(RoomCreatedMessage{
		Type:     "room-created",
		RoomCode: r.code,
	})

	// Inactivity guard: if everyone is gone when this fires, the usual
	// disconnect teardown was missed and the room is reaped here.
	reg.clock.AfterFunc(reg.cfg.roomTimeout, func() {
		reg.reapIfEmpty(r)
	})

	logf(reg.cfg, "GAMES: Room %s created by %q", r.code, ownerName)
}

// reapIfEmpty holds the exact room the guard was armed for, so a later
// room reusing a freed code is never reaped by the wrong timer.
func (reg *registry) reapIfEmpty(r *room) {
	if reg.lookup(r.code) != r {
		return
	}

	r.mu.Lock()
	empty := len(r.clients) == 0
	r.mu.Unlock()

	if empty {
		reg.deleteRoom(r.code)
	}
}

// joinRoom handles join-room. A blank name is not an error here: the
// server assigns one from the name pool instead.
func (reg *registry) joinRoom(c *client, msg ClientMessage) {
	r := reg.lookup(msg.RoomCode)
	if r == nil {
		reg.sendError(c, errRoomNotFound)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		reg.sendError(c, errRoomNotFound)
		return
	}

	if c == r.owner || r.players[c.id] != nil {
		reg.sendError(c, errAlreadyJoined)
		return
	}

	if len(r.players) >= maxPlayers {
		reg.sendError(c, errRoomFull)
		return
	}

	name := strings.TrimSpace(msg.PlayerName)
	if name == "" {
		name = r.pickNameLocked(reg.cfg.namePool)
	}

	p := r.addPlayerLocked(c, name, msg.AvatarID)
	c.room = r

	r.sendLocked(c, JoinSuccessMessage{
		Type:       "join-success",
		RoomCode:   r.code,
		PlayerID:   p.id,
		PlayerName: p.name,
		AvatarID:   p.avatarID,
	})
	r.broadcastPlayersLocked()
	r.sendLocked(c, GamemasterNoteMessage{
		Type: "gamemaster-note-update",
		Text: r.ownerNote,
	})
	r.broadcastNotesLocked()

	logf(reg.cfg, "GAMES: Player %q joined room %s", p.name, r.code)
}

// leave runs when a connection drops. A departing player is removed
// and announced; a departing gamemaster takes the room down with them.
// Both checks run: a gamemaster is never simultaneously a player, so
// exactly one branch applies.
func (reg *registry) leave(c *client) {
	r := c.room
	if r == nil || reg.lookup(r.code) != r {
		return
	}

	r.mu.Lock()
	delete(r.clients, c)

	if r.players[c.id] != nil {
		r.removePlayerLocked(c.id)
		r.broadcastPlayersLocked()
		r.broadcastNotesLocked()
	}

	isOwner := c == r.owner
	empty := len(r.clients) == 0
	r.mu.Unlock()

	if isOwner || empty {
		reg.deleteRoom(r.code)
	}
}

// pressBuzzer handles press-buzzer. Only the first press after a
// release wins; anything else is silently ignored.
func (reg *registry) pressBuzzer(c *client, msg ClientMessage) {
	r := reg.lookup(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.players[c.id]
	if r.deleted || p == nil || c == r.owner {
		return
	}

	if !r.pressLocked(c.id) {
		return
	}

	r.broadcastLocked(BuzzerPressedMessage{
		Type:       "buzzer-pressed",
		PlayerID:   p.id,
		PlayerName: p.name,
	})

	logf(reg.cfg, "GAMES: %q buzzed in room %s", p.name, r.code)
}

func (reg *registry) releaseBuzzers(c *client, msg ClientMessage) {
	r := reg.lookup(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || c != r.owner {
		return
	}

	r.releaseLocked()
	r.broadcastLocked(SimpleMessage{Type: "buzzers-released"})
}

func (reg *registry) lockBuzzers(c *client, msg ClientMessage) {
	r := reg.lookup(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || c != r.owner {
		return
	}

	r.lockLocked()
	r.broadcastLocked(SimpleMessage{Type: "buzzers-locked"})
}

// updateNote handles update-note from a player. Text still replaces on
// a locked note, but the locked flag survives the edit.
func (reg *registry) updateNote(c *client, msg ClientMessage) {
	r := reg.lookup(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || r.players[c.id] == nil {
		return
	}

	if r.setNoteTextLocked(c.id, msg.Text) {
		r.broadcastNotesLocked()
	}
}

// updateGamemasterNote replaces the shared note and pushes it to every
// player. The gamemaster already has it and is skipped.
func (reg *registry) updateGamemasterNote(c *client, msg ClientMessage) {
	r := reg.lookup(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || c != r.owner {
		return
	}

	r.ownerNote = msg.Text

	note := GamemasterNoteMessage{
		Type: "gamemaster-note-update",
		Text: r.ownerNote,
	}
	for cl := range r.clients {
		if cl != r.owner {
			r.sendLocked(cl, note)
		}
	}
}

// updatePoints handles update-points. A stale player id from an
// outdated gamemaster view is dropped without a reply.
func (reg *registry) updatePoints(c *client, msg ClientMessage) {
	r := reg.lookup(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || c != r.owner {
		return
	}

	if r.adjustPointsLocked(msg.PlayerID, msg.Points) {
		r.broadcastPlayersLocked()
	}
}

func (reg *registry) lockPlayerAnswer(c *client, msg ClientMessage) {
	r := reg.lookup(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || !r.lockAnswerLocked(c.id) {
		return
	}

	r.broadcastLocked(AnswerLockedMessage{
		Type:     "player-answer-locked",
		PlayerID: c.id,
	})
	r.broadcastNotesLocked()
}

func (reg *registry) lockAllAnswers(c *client, msg ClientMessage) {
	r := reg.lookup(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || c != r.owner {
		return
	}

	r.lockAllAnswersLocked()
	r.broadcastLocked(SimpleMessage{Type: "all-answers-locked"})
	r.broadcastNotesLocked()
}

func (reg *registry) unlockAllAnswers(c *client, msg ClientMessage) {
	r := reg.lookup(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || c != r.owner {
		return
	}

	r.unlockAllAnswersLocked()
	r.broadcastLocked(SimpleMessage{Type: "all-answers-unlocked"})
	r.broadcastNotesLocked()
}

// startTimer fans a countdown length out to the room. The server never
// tracks elapsed time; each receiver counts down locally.
func (reg *registry) startTimer(c *client, msg ClientMessage) {
	r := reg.lookup(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || c != r.owner {
		return
	}

	r.broadcastLocked(TimerStartedMessage{
		Type:     "timer-started",
		Duration: msg.Duration,
	})
}

func (reg *registry) resetTimer(c *client, msg ClientMessage) {
	r := reg.lookup(msg.RoomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || c != r.owner {
		return
	}

	r.broadcastLocked(SimpleMessage{Type: "timer-reset"})
}

// generateNumber handles generate-number, announcing a random draw in
// [min, max] to the whole room.
func (reg *registry) generateNumber(c *client, msg ClientMessage) {
	r := reg.lookup(msg.RoomCode)
	if r == nil {
		reg.sendError(c, errRoomNotFound)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		reg.sendError(c, errRoomNotFound)
		return
	}

	if c != r.owner {
		reg.sendError(c, errNotGamemaster)
		return
	}

	if msg.Min > msg.Max || msg.Min < -numberBound || msg.Max > numberBound {
		reg.sendError(c, errBadRange)
		return
	}

	r.broadcastLocked(NumberGeneratedMessage{
		Type:   "number-generated",
		Number: randomInt(msg.Min, msg.Max),
	})
}
