// path: fairy_chess/internal/httpx/hub.go
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fairy_chess/internal/game"
	"fairy_chess/internal/metrics"
	"fairy_chess/internal/shared"
)

const (
	eventMove        = "move"
	eventResign      = "resign"
	eventDraw        = "draw"
	eventBoardUpdate = "board_update"
	eventAgreement   = "agreement"
	eventInvalidMove = "invalid_move"
	eventFail        = "fail"

	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
	sendBuffer      = 16
	maxMessageBytes = 4096
)

type inbound struct {
	EventType string `json:"event_type"`
	From      [2]int `json:"from_loc"`
	To        [2]int `json:"to_loc"`
}

type outbound struct {
	EventType string         `json:"event_type"`
	GameData  *game.Snapshot `json:"game_data,omitempty"`
	Message   string         `json:"message,omitempty"`
	Class     string         `json:"class,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

type socket struct {
	ws     *websocket.Conn
	send   chan []byte
	game   string
	player string
}

// hub fans game updates out to every socket watching a game. Errors are only
// ever sent back to the socket that caused them.
type hub struct {
	engine   *game.Engine
	metrics  *metrics.Recorder
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]map[*socket]struct{}
}

func newHub(engine *game.Engine, m *metrics.Recorder, log *zap.Logger) *hub {
	return &hub{
		engine:   engine,
		metrics:  m,
		log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		rooms:    make(map[string]map[*socket]struct{}),
	}
}

func (h *hub) serve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	who := player(r)
	if who == "" {
		writeError(w, http.StatusUnauthorized, "missing player")
		return
	}
	if _, err := h.engine.State(id); err != nil {
		writeFailure(w, err)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("game", id), zap.Error(err))
		return
	}
	s := &socket{ws: ws, send: make(chan []byte, sendBuffer), game: id, player: who}
	h.join(s)
	go h.writeLoop(s)
	h.readLoop(s)
}

func (h *hub) join(s *socket) {
	h.mu.Lock()
	room, ok := h.rooms[s.game]
	if !ok {
		room = make(map[*socket]struct{})
		h.rooms[s.game] = room
	}
	room[s] = struct{}{}
	h.mu.Unlock()
	h.metrics.SocketOpened()
	h.log.Debug("socket joined", zap.String("game", s.game), zap.String("player", s.player))
}

// drop removes s and closes its send channel. Safe to call more than once.
func (h *hub) drop(s *socket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(s)
}

func (h *hub) dropLocked(s *socket) {
	room := h.rooms[s.game]
	if _, ok := room[s]; !ok {
		return
	}
	delete(room, s)
	if len(room) == 0 {
		delete(h.rooms, s.game)
	}
	close(s.send)
	h.metrics.SocketClosed()
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		for s := range room {
			h.dropLocked(s)
		}
	}
}

func (h *hub) broadcast(id, event string, snap game.Snapshot) {
	msg, err := json.Marshal(outbound{EventType: event, GameData: &snap})
	if err != nil {
		h.log.Error("encode game update", zap.String("game", id), zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.rooms[id] {
		select {
		case s.send <- msg:
		default:
			h.log.Warn("dropping slow socket", zap.String("game", id), zap.String("player", s.player))
			h.dropLocked(s)
		}
	}
}

// reply sends to one socket only.
func (h *hub) reply(s *socket, out outbound) {
	msg, err := json.Marshal(out)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[s.game][s]; !ok {
		return
	}
	select {
	case s.send <- msg:
	default:
	}
}

func (h *hub) fail(s *socket, event string, err error) {
	h.reply(s, outbound{
		EventType: event,
		Message:   err.Error(),
		Class:     shared.Classify(err),
		Retryable: shared.Retryable(err),
	})
}

func (h *hub) readLoop(s *socket) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.drop(s)
		_ = s.ws.Close()
	}()

	s.ws.SetReadLimit(maxMessageBytes)
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			// A deliberate close by a seated player ends the session and its game.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				h.endGame(s)
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			h.reply(s, outbound{EventType: eventFail, Message: "invalid json", Class: shared.ClassProtocol})
			continue
		}
		h.handle(ctx, s, in)
	}
}

func (h *hub) endGame(s *socket) {
	if err := h.engine.RemoveAs(s.game, s.player); err != nil {
		h.log.Info("game kept after socket close",
			zap.String("game", s.game),
			zap.String("player", s.player),
			zap.Error(err))
		return
	}
	h.metrics.SetGames(h.engine.Len())
}

func (h *hub) handle(ctx context.Context, s *socket, in inbound) {
	switch in.EventType {
	case eventMove:
		from, to := shared.Loc(in.From[0], in.From[1]), shared.Loc(in.To[0], in.To[1])
		snap, err := h.engine.MakeMove(ctx, s.game, from, to, s.player)
		if err != nil {
			event := eventFail
			switch shared.Classify(err) {
			case shared.ClassIllegalMove, shared.ClassTimeout, shared.ClassCompile:
				event = eventInvalidMove
			}
			h.fail(s, event, err)
			return
		}
		h.broadcast(s.game, eventBoardUpdate, snap)

	case eventResign, eventDraw:
		var snap game.Snapshot
		var err error
		if in.EventType == eventResign {
			snap, err = h.engine.Resign(s.game, s.player)
		} else {
			snap, err = h.engine.Draw(s.game, s.player)
		}
		if err != nil {
			h.fail(s, eventFail, err)
			return
		}
		h.broadcast(s.game, eventAgreement, snap)

	default:
		h.reply(s, outbound{EventType: eventFail, Message: "unknown event " + in.EventType, Class: shared.ClassProtocol})
	}
}

func (h *hub) writeLoop(s *socket) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
