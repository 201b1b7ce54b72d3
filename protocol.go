// Buzzerbox wire protocol.
//
// Every frame in either direction is a single flat JSON object with a
// "type" discriminator. Clients send one message shape with optional
// fields; the server replies with one typed struct per event so each
// payload documents itself.
//
// Request/response events (create-room, join-room, generate-number)
// answer failures with room-error on the sending connection. Everything
// else is fire-and-forget: invalid senders or states are dropped.

package main

// ClientMessage covers every inbound event. Unused fields stay empty.
type ClientMessage struct {
	Type       string `json:"type"`
	RoomCode   string `json:"roomCode,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	AvatarID   string `json:"avatarId,omitempty"`
	Text       string `json:"text,omitempty"`
	PlayerID   string `json:"playerId,omitempty"`
	Points     int    `json:"points,omitempty"`
	Duration   int    `json:"duration,omitempty"`
	Min        int    `json:"min,omitempty"`
	Max        int    `json:"max,omitempty"`
}

// RoomCreatedMessage answers a successful create-room.
type RoomCreatedMessage struct {
	Type     string `json:"type"` // "room-created"
	RoomCode string `json:"roomCode"`
}

// JoinSuccessMessage answers a successful join-room, echoing the
// identity the server assigned (the name may come from the name pool).
type JoinSuccessMessage struct {
	Type       string `json:"type"` // "join-success"
	RoomCode   string `json:"roomCode"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	AvatarID   string `json:"avatarId,omitempty"`
}

// RoomErrorMessage carries a human-readable failure back to the
// connection that caused it.
type RoomErrorMessage struct {
	Type    string `json:"type"` // "room-error"
	Message string `json:"message"`
}

// PlayerView is one entry of a player-list-update, ranked for display.
type PlayerView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
	AvatarID string `json:"avatarId,omitempty"`
}

// PlayerListMessage broadcasts the ranked standings: points descending,
// ties in arrival order.
type PlayerListMessage struct {
	Type    string       `json:"type"` // "player-list-update"
	Players []PlayerView `json:"players"`
}

// NoteView is one player's note as shown to the gamemaster.
type NoteView struct {
	Text       string `json:"text"`
	PlayerName string `json:"playerName"`
	Locked     bool   `json:"locked"`
}

// NotesMessage carries the full notes map; sent to the gamemaster only.
type NotesMessage struct {
	Type  string              `json:"type"` // "notes-update"
	Notes map[string]NoteView `json:"notes"`
}

// GamemasterNoteMessage carries the shared gamemaster note text.
type GamemasterNoteMessage struct {
	Type string `json:"type"` // "gamemaster-note-update"
	Text string `json:"text"`
}

// BuzzerPressedMessage announces the first (and only) press since the
// last release.
type BuzzerPressedMessage struct {
	Type       string `json:"type"` // "buzzer-pressed"
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// AnswerLockedMessage announces a single player freezing their answer.
type AnswerLockedMessage struct {
	Type     string `json:"type"` // "player-answer-locked"
	PlayerID string `json:"playerId"`
}

// TimerStartedMessage carries the countdown length in seconds. The
// server keeps no countdown of its own; receivers run it locally.
type TimerStartedMessage struct {
	Type     string `json:"type"` // "timer-started"
	Duration int    `json:"duration"`
}

// NumberGeneratedMessage announces the result of a generate-number roll.
type NumberGeneratedMessage struct {
	Type   string `json:"type"` // "number-generated"
	Number int    `json:"number"`
}

// SimpleMessage is for events with no payload: buzzers-released,
// buzzers-locked, all-answers-locked, all-answers-unlocked, timer-reset,
// room-closed.
type SimpleMessage struct {
	Type string `json:"type"`
}
