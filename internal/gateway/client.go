package gateway

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/junghee-19/SignLink/internal/session"
)

// outboundBuffer bounds the per-client send queue. A client that cannot keep
// up loses intermediate snapshots; the next one it reads is complete, so
// nothing is permanently stale.
const outboundBuffer = 64

// clientEvent is an inbound WebSocket message from the browser.
type clientEvent struct {
	// Type is one of "chat", "webcam", "frame", "playback_ended",
	// "webcam_error".
	Type string `json:"type"`

	// Text is the chat input for "chat" events.
	Text string `json:"text,omitempty"`

	// Frame is a base64-encoded JPEG for "frame" events. A data-URL prefix
	// is tolerated.
	Frame string `json:"frame,omitempty"`

	// Reason describes the camera failure for "webcam_error" events.
	Reason string `json:"reason,omitempty"`
}

// serverEvent is an outbound WebSocket message to the browser.
type serverEvent struct {
	// Type is "state" or "overlay".
	Type    string            `json:"type"`
	State   *session.Snapshot `json:"state,omitempty"`
	Overlay *session.Overlay  `json:"overlay,omitempty"`
}

// client is one live WebSocket session.
type client struct {
	id   string
	conn *websocket.Conn
	ctrl *session.Controller
	log  *slog.Logger

	outbound chan serverEvent

	// persisted counts transcript messages already written, guarded by mu.
	mu        sync.Mutex
	persisted int

	srv *Server
}

// handleWS upgrades the connection and runs the session until the client
// disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns,
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "err", err)
		return
	}

	c := &client{
		id:       newSessionID(),
		conn:     conn,
		outbound: make(chan serverEvent, outboundBuffer),
		srv:      s,
	}
	c.log = s.log.With("session", c.id)

	sessCfg := s.sessionConfig()
	sessCfg.Logger = c.log
	sessCfg.Metrics = s.cfg.Metrics
	sessCfg.Notify = c.pushState
	sessCfg.NotifyOverlay = c.pushOverlay
	c.ctrl = session.New(sessCfg)

	s.cfg.Metrics.SessionStarted(r.Context())
	c.log.Info("session started")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go c.writeLoop(ctx)

	// Initial snapshot so the client renders immediately.
	c.pushState(c.ctrl.Snapshot())

	c.readLoop(ctx)

	cancel()
	c.ctrl.Close()
	s.cfg.Metrics.SessionEnded(context.Background())
	conn.Close(websocket.StatusNormalClosure, "")
	c.log.Info("session ended")
}

// readLoop decodes client events and dispatches them to the controller.
// Blocking controller calls run in their own goroutines so a slow translator
// never stalls the read side.
func (c *client) readLoop(ctx context.Context) {
	for {
		var ev clientEvent
		if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				c.log.Debug("websocket read ended", "err", err)
			}
			return
		}

		switch ev.Type {
		case "chat":
			go c.ctrl.SendMessage(ctx, ev.Text)
		case "webcam":
			c.ctrl.ToggleWebcam()
		case "frame":
			frame, err := decodeFrame(ev.Frame)
			if err != nil {
				c.log.Warn("bad frame payload", "err", err)
				continue
			}
			go c.ctrl.CaptureAndTranslate(ctx, frame)
		case "playback_ended":
			c.ctrl.PlaybackEnded()
		case "webcam_error":
			c.ctrl.WebcamError(ev.Reason)
		default:
			c.log.Warn("unknown client event", "type", ev.Type)
		}
	}
}

// writeLoop drains the outbound queue onto the socket.
func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.outbound:
			if err := wsjson.Write(ctx, c.conn, ev); err != nil {
				return
			}
		}
	}
}

// pushState queues a snapshot for the client and persists new messages.
func (c *client) pushState(snap session.Snapshot) {
	c.persist(snap)
	c.enqueue(serverEvent{Type: "state", State: &snap})
}

// pushOverlay queues a landmark overlay for the client.
func (c *client) pushOverlay(o session.Overlay) {
	c.enqueue(serverEvent{Type: "overlay", Overlay: &o})
}

// enqueue adds ev to the outbound queue, dropping it when the client is too
// far behind.
func (c *client) enqueue(ev serverEvent) {
	select {
	case c.outbound <- ev:
	default:
		c.log.Warn("outbound queue full, dropping event", "type", ev.Type)
	}
}

// persist appends messages not yet written to the transcript store.
func (c *client) persist(snap session.Snapshot) {
	store := c.srv.cfg.Transcripts
	if store == nil {
		return
	}

	c.mu.Lock()
	fresh := snap.Messages[min(c.persisted, len(snap.Messages)):]
	c.persisted = len(snap.Messages)
	c.mu.Unlock()

	for _, msg := range fresh {
		if err := store.Append(context.Background(), c.id, msg); err != nil {
			c.log.Warn("transcript append failed", "err", err)
		}
	}
}

// decodeFrame decodes a base64 JPEG payload, tolerating a data-URL prefix.
func decodeFrame(payload string) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("gateway: empty frame")
	}
	if i := strings.IndexByte(payload, ','); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+1:]
	}
	return base64.StdEncoding.DecodeString(payload)
}

// newSessionID returns a random 16-hex-character session identifier.
func newSessionID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "session-unknown"
	}
	return hex.EncodeToString(b[:])
}
