// Buzzerbox quiz buzzer game.
//
// One connection creates a room and becomes its gamemaster; up to
// twelve players join by room code. The gamemaster controls a shared
// buzzer (release / lock), a display-only countdown timer, per-player
// scores, answer locking, and a shared note; each player keeps a
// private note only the gamemaster can read.
//
// Features:
// - WebSocket at $path/:code/ws, rooms multiplexed by code in-band
// - 6-char uppercase room codes via crypto/rand, collision-checked
// - First buzzer press wins; later presses are no-ops until released
// - Per-player and bulk answer locking, reflected in the notes view
// - Advisory countdown: the server broadcasts the duration only
// - Rooms end when their gamemaster disconnects or nobody is left
// - Orphaned rooms swept periodically as a safety net
// - In-browser QR button to share the current room, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one WebSocket connection. Its id is ephemeral: a fresh one
// is drawn per connection and identifies the sender for the lifetime
// of the socket, nothing longer.
type client struct {
	conn *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once
	id   string
	room *room
}

func newClient(conn *websocket.Conn, id string) *client {
	return &client{
		conn: conn,
		send: make(chan any, 16),
		done: make(chan struct{}),
		id:   id,
	}
}

// enqueue queues a message without ever blocking. It reports false for
// a client that is gone or cannot keep up; the caller decides whether
// that warrants dropping the client.
func (c *client) enqueue(msg any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// drop ends the connection exactly once, from whichever side notices
// first.
func (c *client) drop() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *client) readPump(reg *registry) {
	defer func() {
		reg.leave(c)
		c.drop()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "create-room":
			reg.createRoom(c, msg)
		case "join-room":
			reg.joinRoom(c, msg)
		case "update-note":
			reg.updateNote(c, msg)
		case "update-gamemaster-note":
			reg.updateGamemasterNote(c, msg)
		case "update-points":
			reg.updatePoints(c, msg)
		case "press-buzzer":
			reg.pressBuzzer(c, msg)
		case "release-buzzers":
			reg.releaseBuzzers(c, msg)
		case "lock-buzzers":
			reg.lockBuzzers(c, msg)
		case "lock-player-answer":
			reg.lockPlayerAnswer(c, msg)
		case "lock-all-answers":
			reg.lockAllAnswers(c, msg)
		case "unlock-all-answers":
			reg.unlockAllAnswers(c, msg)
		case "start-timer":
			reg.startTimer(c, msg)
		case "reset-timer":
			reg.resetTimer(c, msg)
		case "generate-number":
			reg.generateNumber(c, msg)
		default:
			// ignore unknown types
		}
	}
}

func (c *client) writePump() {
	defer c.drop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func randomConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}

	return hex.EncodeToString(buf)
}

// serveWS upgrades the connection and runs its pumps. Room routing
// happens over the socket itself via the roomCode field; the :code
// path segment only keeps the URL shareable.
func serveWS(cfg *Config, reg *registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		connID := randomConnID()
		if connID == "" {
			http.Error(w, "unable to assign connection id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		c := newClient(conn, connID)

		logf(cfg, "GAMES: Connection %s opened from %s", connID[:8], realIP(r))

		go c.writePump()
		c.readPump(reg)

		logf(cfg, "GAMES: Connection %s closed", connID[:8])
	}
}

// qrHandler generates a PNG QR code for the current room URL using
// go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomCode := ps.ByName("code")
	if roomCode == "" {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:code/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte(buzzerHTML))
	}
}

// redirectNewRoom hands out a fresh room path. The room itself is only
// created once the gamemaster's socket sends create-room, matching the
// protocol, so unvisited codes cost nothing.
func redirectNewRoom(cfg *Config, path string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		http.Redirect(w, r, path+"/"+randomRoomCode(), http.StatusTemporaryRedirect)
	}
}

// registerBuzzerGame sets up routes so that:
//   - $path             → redirects to a fresh room path
//   - $path/:code       → HTML client shell
//   - $path/:code/ws    → WebSocket carrying all room events
//   - $path/:code/qr    → PNG QR code for that room URL
//
// The socket lives under the code segment: httprouter rejects a static
// child next to a wildcard in the same segment.
func registerBuzzerGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router) {
	reg := newRegistry(cfg, clockwork.NewRealClock())

	go reg.sweepLoop(ctx)

	mux.GET(cfg.prefix+path, redirectNewRoom(cfg, cfg.prefix+path))

	mux.GET(cfg.prefix+path+"/:code", getIndexHandler(cfg))

	mux.GET(cfg.prefix+path+"/:code/ws", serveWS(cfg, reg))

	mux.GET(cfg.prefix+path+"/:code/qr", qrHandler)
}

// Simple HTML client for quick testing
const buzzerHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Buzzerbox</title>
<style>
  body { font-family: system-ui, sans-serif; margin: 2rem; }
  h1 { margin-bottom: 0.5rem; }
  #status { margin-bottom: 1rem; font-size: 0.9rem; }
  #buzz { font-size: 2rem; padding: 1rem 3rem; }
  #players li { padding: 0.25rem 0; border-bottom: 1px solid #ddd; }
  textarea { width: 100%; min-height: 4rem; }
  .hidden { display: none; }
</style>
</head>
<body>
<h1>Buzzerbox</h1>
<div id="status">Connecting…</div>
<div id="lobby">
  <input id="name" placeholder="Your name (optional)">
  <button id="join">Join</button>
  <button id="host">Host</button>
</div>
<div id="game" class="hidden">
  <button id="buzz">BUZZ</button>
  <div id="timer"></div>
  <ul id="players"></ul>
  <div id="gm-note"></div>
  <textarea id="note" placeholder="Your answer"></textarea>
  <img id="qr" alt="">
</div>

<script>
(function() {
  const statusEl = document.getElementById('status');
  const playersEl = document.getElementById('players');
  const roomPath = location.pathname.replace(/\/$/, '');
  const roomCode = roomPath.split('/').pop();
  const base = roomPath.replace(/\/[^/]*$/, '');

  const proto = (location.protocol === 'https:') ? 'wss://' : 'ws://';
  const ws = new WebSocket(proto + location.host + roomPath + '/ws');

  let myId = '';
  let countdown = null;

  function send(msg) { ws.send(JSON.stringify(msg)); }

  ws.onopen = function() {
    statusEl.textContent = 'Connected to room ' + roomCode + '.';
    document.getElementById('qr').src = roomPath + '/qr';
  };

  document.getElementById('join').onclick = function() {
    send({ type: 'join-room', roomCode: roomCode,
           playerName: document.getElementById('name').value });
  };
  document.getElementById('host').onclick = function() {
    send({ type: 'create-room',
           playerName: document.getElementById('name').value || 'Showmaster' });
  };
  document.getElementById('buzz').onclick = function() {
    send({ type: 'press-buzzer', roomCode: roomCode });
  };
  document.getElementById('note').oninput = function(e) {
    send({ type: 'update-note', roomCode: roomCode, text: e.target.value });
  };

  function startCountdown(seconds) {
    clearInterval(countdown);
    let left = seconds;
    const timerEl = document.getElementById('timer');
    timerEl.textContent = left + 's';
    countdown = setInterval(function() {
      left--;
      timerEl.textContent = left > 0 ? left + 's' : '';
      if (left <= 0) clearInterval(countdown);
    }, 1000);
  }

  ws.onmessage = function(event) {
    const msg = JSON.parse(event.data);

    switch (msg.type) {
      case 'room-created':
        statusEl.textContent = 'Hosting room ' + msg.roomCode + '.';
        history.replaceState(null, '', base + '/' + msg.roomCode);
        document.getElementById('qr').src = base + '/' + msg.roomCode + '/qr';
        break;
      case 'join-success':
        myId = msg.playerId;
        document.getElementById('lobby').classList.add('hidden');
        document.getElementById('game').classList.remove('hidden');
        break;
      case 'room-error':
        statusEl.textContent = msg.message;
        break;
      case 'player-list-update':
        playersEl.innerHTML = '';
        msg.players.forEach(function(p) {
          const li = document.createElement('li');
          li.textContent = p.name + ' — ' + p.points;
          playersEl.appendChild(li);
        });
        break;
      case 'buzzer-pressed':
        statusEl.textContent = msg.playerName + ' buzzed!';
        break;
      case 'buzzers-released':
        statusEl.textContent = 'Buzzer open.';
        break;
      case 'buzzers-locked':
        statusEl.textContent = 'Buzzer locked.';
        break;
      case 'gamemaster-note-update':
        document.getElementById('gm-note').textContent = msg.text;
        break;
      case 'player-answer-locked':
        if (msg.playerId === myId) document.getElementById('note').disabled = true;
        break;
      case 'all-answers-locked':
        document.getElementById('note').disabled = true;
        break;
      case 'all-answers-unlocked':
        document.getElementById('note').disabled = false;
        break;
      case 'timer-started':
        startCountdown(msg.duration);
        break;
      case 'timer-reset':
        clearInterval(countdown);
        document.getElementById('timer').textContent = '';
        break;
      case 'number-generated':
        statusEl.textContent = 'Number: ' + msg.number;
        break;
      case 'room-closed':
        statusEl.textContent = 'The room has been closed.';
        break;
    }
  };

  ws.onclose = function() {
    statusEl.textContent = 'Disconnected.';
  };
})();
</script>
</body>
</html>
`
