package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(id string) *client {
	return &client{
		send: make(chan any, 64),
		done: make(chan struct{}),
		id:   id,
	}
}

func addTestPlayer(r *room, id, name string) *client {
	c := newTestClient(id)
	r.addPlayerLocked(c, name, "")
	return c
}

func TestBuzzerTransitions(t *testing.T) {
	r := newRoom("AAAAAA", newTestClient("owner"), time.Now())
	addTestPlayer(r, "p1", "Ada")
	addTestPlayer(r, "p2", "Ben")

	require.Equal(t, buzzerUnlocked, r.buzzer)

	// First press wins.
	assert.True(t, r.pressLocked("p1"))
	assert.Equal(t, buzzerPressed, r.buzzer)
	assert.Equal(t, "p1", r.pressedBy)

	// Late presses are no-ops and do not steal the win.
	assert.False(t, r.pressLocked("p2"))
	assert.Equal(t, "p1", r.pressedBy)

	// Release re-arms from pressed.
	r.releaseLocked()
	assert.Equal(t, buzzerUnlocked, r.buzzer)
	assert.Empty(t, r.pressedBy)

	// Lock freezes; presses against a locked buzzer vanish.
	r.lockLocked()
	assert.Equal(t, buzzerLocked, r.buzzer)
	assert.False(t, r.pressLocked("p2"))
	assert.Empty(t, r.pressedBy)

	// Release works from locked too.
	r.releaseLocked()
	assert.True(t, r.pressLocked("p2"))
}

func TestStandingsStableRanking(t *testing.T) {
	r := newRoom("AAAAAA", newTestClient("owner"), time.Now())
	addTestPlayer(r, "p1", "Ada")
	addTestPlayer(r, "p2", "Ben")
	addTestPlayer(r, "p3", "Cyd")
	addTestPlayer(r, "p4", "Dee")

	r.players["p1"].points = 10
	r.players["p2"].points = 30
	r.players["p3"].points = 30
	r.players["p4"].points = 5

	views := r.standingsLocked()
	require.Len(t, views, 4)

	// Ties keep join order: p2 joined before p3.
	assert.Equal(t, "p2", views[0].ID)
	assert.Equal(t, "p3", views[1].ID)
	assert.Equal(t, "p1", views[2].ID)
	assert.Equal(t, "p4", views[3].ID)
}

func TestStandingsSurviveChurn(t *testing.T) {
	r := newRoom("AAAAAA", newTestClient("owner"), time.Now())
	addTestPlayer(r, "p1", "Ada")
	addTestPlayer(r, "p2", "Ben")
	addTestPlayer(r, "p3", "Cyd")

	r.removePlayerLocked("p2")

	views := r.standingsLocked()
	require.Len(t, views, 2)
	assert.Equal(t, "p1", views[0].ID)
	assert.Equal(t, "p3", views[1].ID)

	// A rejoining connection lands at the end of the arrival order.
	addTestPlayer(r, "p2", "Ben")
	views = r.standingsLocked()
	require.Len(t, views, 3)
	assert.Equal(t, "p2", views[2].ID)
}

func TestAnswerLocks(t *testing.T) {
	r := newRoom("AAAAAA", newTestClient("owner"), time.Now())
	addTestPlayer(r, "p1", "Ada")
	addTestPlayer(r, "p2", "Ben")

	require.True(t, r.lockAnswerLocked("p1"))
	assert.True(t, r.lockedAnswers["p1"])
	assert.True(t, r.notes["p1"].locked)
	assert.False(t, r.notes["p2"].locked)

	// Unknown ids are rejected without side effects.
	assert.False(t, r.lockAnswerLocked("ghost"))
	assert.Len(t, r.lockedAnswers, 1)

	r.lockAllAnswersLocked()
	assert.Len(t, r.lockedAnswers, 2)
	assert.True(t, r.notes["p2"].locked)

	r.unlockAllAnswersLocked()
	assert.Empty(t, r.lockedAnswers)
	assert.False(t, r.notes["p1"].locked)
	assert.False(t, r.notes["p2"].locked)
}

func TestNoteEditsNeverUnlock(t *testing.T) {
	r := newRoom("AAAAAA", newTestClient("owner"), time.Now())
	addTestPlayer(r, "p1", "Ada")

	require.True(t, r.lockAnswerLocked("p1"))
	require.True(t, r.setNoteTextLocked("p1", "final answer"))

	assert.Equal(t, "final answer", r.notes["p1"].text)
	assert.True(t, r.notes["p1"].locked)
	assert.Equal(t, "Ada", r.notes["p1"].playerName)
}

func TestNotesTrackPlayers(t *testing.T) {
	r := newRoom("AAAAAA", newTestClient("owner"), time.Now())
	addTestPlayer(r, "p1", "Ada")
	addTestPlayer(r, "p2", "Ben")

	for id := range r.notes {
		_, ok := r.players[id]
		assert.True(t, ok, "note %s has no matching player", id)
	}

	r.removePlayerLocked("p1")
	assert.NotContains(t, r.notes, "p1")
	assert.NotContains(t, r.lockedAnswers, "p1")
	assert.Contains(t, r.notes, "p2")
}

func TestPickName(t *testing.T) {
	pool := []string{"Blitz", "Echo"}

	r := newRoom("AAAAAA", newTestClient("owner"), time.Now())
	assert.Equal(t, "Blitz", r.pickNameLocked(pool))

	addTestPlayer(r, "p1", "Blitz")
	assert.Equal(t, "Echo", r.pickNameLocked(pool))

	addTestPlayer(r, "p2", "Echo")
	assert.Equal(t, "Player 3", r.pickNameLocked(pool))
}

func TestAdjustPoints(t *testing.T) {
	r := newRoom("AAAAAA", newTestClient("owner"), time.Now())
	addTestPlayer(r, "p1", "Ada")

	require.True(t, r.adjustPointsLocked("p1", 10))
	require.True(t, r.adjustPointsLocked("p1", -25))
	assert.Equal(t, -15, r.players["p1"].points)

	// Stale ids from outdated gamemaster views are rejected.
	assert.False(t, r.adjustPointsLocked("ghost", 5))
}
