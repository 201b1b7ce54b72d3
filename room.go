// Room state for the buzzer game.
//
// A room is created by one connection (the gamemaster) and joined by up
// to maxPlayers players. The gamemaster is never listed among the
// players; control events are only honored when they arrive on the
// gamemaster's connection.
//
// Every mutation of a room happens under its mutex, held for the whole
// handler including the resulting broadcasts, so each event is atomic
// as observed by every other connection.

package main

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

const (
	maxPlayers = 12
	codeLength = 6
)

type buzzerState int

const (
	buzzerUnlocked buzzerState = iota
	buzzerLocked
	buzzerPressed
)

func (s buzzerState) String() string {
	switch s {
	case buzzerLocked:
		return "locked"
	case buzzerPressed:
		return "pressed"
	default:
		return "unlocked"
	}
}

// player holds the data we store server-side for one joined connection.
type player struct {
	id       string
	name     string
	points   int
	avatarID string
}

// note is one player's private free-text field, visible only to that
// player and the gamemaster.
type note struct {
	text       string
	playerName string
	locked     bool
}

type room struct {
	code  string
	owner *client

	mu            sync.Mutex
	clients       map[*client]bool // every connection in the room, owner included
	players       map[string]*player
	order         []string // player ids in join order, for stable ranking
	buzzer        buzzerState
	pressedBy     string
	lockedAnswers map[string]bool
	notes         map[string]*note
	ownerNote     string
	createdAt     time.Time
	deleted       bool
}

func newRoom(code string, owner *client, now time.Time) *room {
	r := &room{
		code:          code,
		owner:         owner,
		clients:       make(map[*client]bool),
		players:       make(map[string]*player),
		lockedAnswers: make(map[string]bool),
		notes:         make(map[string]*note),
		createdAt:     now,
	}
	r.clients[owner] = true

	return r
}

// sendLocked queues msg for one client, dropping the client entirely if
// it cannot keep up.
func (r *room) sendLocked(c *client, msg any) {
	if !c.enqueue(msg) {
		delete(r.clients, c)
		c.drop()
	}
}

func (r *room) broadcastLocked(msg any) {
	for c := range r.clients {
		r.sendLocked(c, msg)
	}
}

func (r *room) sendOwnerLocked(msg any) {
	if r.clients[r.owner] {
		r.sendLocked(r.owner, msg)
	}
}

// broadcastPlayersLocked sends the current standings to the whole room.
func (r *room) broadcastPlayersLocked() {
	r.broadcastLocked(PlayerListMessage{
		Type:    "player-list-update",
		Players: r.standingsLocked(),
	})
}

// broadcastNotesLocked sends the full notes map to the gamemaster only.
// Notes stay private between each player and the gamemaster.
func (r *room) broadcastNotesLocked() {
	r.sendOwnerLocked(NotesMessage{
		Type:  "notes-update",
		Notes: r.notesViewLocked(),
	})
}

// standingsLocked ranks players by points descending; ties keep join
// order (stable sort).
func (r *room) standingsLocked() []PlayerView {
	views := make([]PlayerView, 0, len(r.players))
	for _, id := range r.order {
		p, ok := r.players[id]
		if !ok {
			continue
		}
		views = append(views, PlayerView{
			ID:       p.id,
			Name:     p.name,
			Points:   p.points,
			AvatarID: p.avatarID,
		})
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Points > views[j].Points
	})

	return views
}

func (r *room) notesViewLocked() map[string]NoteView {
	views := make(map[string]NoteView, len(r.notes))
	for id, n := range r.notes {
		views[id] = NoteView{
			Text:       n.text,
			PlayerName: n.playerName,
			Locked:     n.locked,
		}
	}

	return views
}

// addPlayerLocked inserts a player together with its empty unlocked
// note, in one step, so the notes map never lags the player map.
func (r *room) addPlayerLocked(c *client, name, avatarID string) *player {
	p := &player{
		id:       c.id,
		name:     name,
		avatarID: avatarID,
	}
	r.players[c.id] = p
	r.order = append(r.order, c.id)
	r.notes[c.id] = &note{playerName: name}
	r.clients[c] = true

	return p
}

// removePlayerLocked drops a player and everything keyed by its id.
func (r *room) removePlayerLocked(id string) {
	delete(r.players, id)
	delete(r.notes, id)
	delete(r.lockedAnswers, id)

	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// pickNameLocked returns the first pool name not already in use, so
// blank joins still get a distinct label. When the pool is exhausted a
// numbered fallback is used instead.
func (r *room) pickNameLocked(pool []string) string {
	inUse := make(map[string]bool, len(r.players))
	for _, p := range r.players {
		inUse[p.name] = true
	}

	for _, name := range pool {
		if !inUse[name] {
			return name
		}
	}

	for i := len(r.players) + 1; ; i++ {
		name := "Player " + strconv.Itoa(i)
		if !inUse[name] {
			return name
		}
	}
}

// pressLocked attempts the unlocked -> pressed transition. Presses in
// any other state are no-ops: first press wins, late presses vanish.
func (r *room) pressLocked(id string) bool {
	if r.buzzer != buzzerUnlocked {
		return false
	}

	r.buzzer = buzzerPressed
	r.pressedBy = id

	return true
}

// releaseLocked re-arms the buzzer from any state.
func (r *room) releaseLocked() {
	r.buzzer = buzzerUnlocked
	r.pressedBy = ""
}

// lockLocked freezes the buzzer from any state.
func (r *room) lockLocked() {
	r.buzzer = buzzerLocked
	r.pressedBy = ""
}

// lockAnswerLocked freezes one player's answer. The note keeps its text
// and name; only the flag changes.
func (r *room) lockAnswerLocked(id string) bool {
	if _, ok := r.players[id]; !ok {
		return false
	}

	r.lockedAnswers[id] = true
	if n, ok := r.notes[id]; ok {
		n.locked = true
	}

	return true
}

func (r *room) lockAllAnswersLocked() {
	for id := range r.players {
		r.lockedAnswers[id] = true
	}
	for _, n := range r.notes {
		n.locked = true
	}
}

func (r *room) unlockAllAnswersLocked() {
	r.lockedAnswers = make(map[string]bool)
	for _, n := range r.notes {
		n.locked = false
	}
}

// setNoteTextLocked replaces a note's text. The locked flag survives
// edits: locking is only ever cleared by an explicit unlock.
func (r *room) setNoteTextLocked(id, text string) bool {
	n, ok := r.notes[id]
	if !ok {
		return false
	}

	n.text = text

	return true
}

func (r *room) adjustPointsLocked(id string, delta int) bool {
	p, ok := r.players[id]
	if !ok {
		return false
	}

	p.points += delta

	return true
}

