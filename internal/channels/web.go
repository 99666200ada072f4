package channels

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yuin/goldmark"

	"github.com/tindale/reeve/internal/events"
)

//go:embed static/index.html
var webStatic embed.FS

// WebSessionPrefix namespaces browser sessions in the conversation log.
const WebSessionPrefix = "web:"

// wsInbound is one message from the browser.
type wsInbound struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// wsOutbound is one message to the browser. HTML is the markdown
// rendering of Text, present on whole-message deliveries.
type wsOutbound struct {
	Type string `json:"type"` // "chunk" or "response"
	Text string `json:"text"`
	HTML string `json:"html,omitempty"`
}

// WebServer is the browser chat channel: a WebSocket endpoint for the
// conversation, a second one streaming the internal event bus for
// debugging, and an embedded single-page UI.
type WebServer struct {
	logger  *slog.Logger
	inbound InboundFunc
	bus     *events.Bus
	addr    string
	md      goldmark.Markdown
	up      websocket.Upgrader

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

// wsConn serializes writes to one socket; gorilla/websocket allows a
// single concurrent writer. The same lock guards sessionID, which the
// read loop rebinds while broadcast reads it.
type wsConn struct {
	mu        sync.Mutex
	c         *websocket.Conn
	sessionID string
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteJSON(v)
}

func (w *wsConn) session() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

func (w *wsConn) setSession(id string) {
	w.mu.Lock()
	w.sessionID = id
	w.mu.Unlock()
}

// NewWebServer creates the web channel bound to addr ("host:port").
// bus may be nil, which disables the /events socket.
func NewWebServer(addr string, inbound InboundFunc, bus *events.Bus, logger *slog.Logger) *WebServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebServer{
		logger:  logger.With("channel", "web"),
		inbound: inbound,
		bus:     bus,
		addr:    addr,
		md:      goldmark.New(),
		up: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		conns: make(map[*wsConn]struct{}),
	}
}

func (s *WebServer) Name() string { return "web" }

func (s *WebServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleChat)
	mux.HandleFunc("/events", s.handleEvents)
	return mux
}

// Run serves until ctx is cancelled.
func (s *WebServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("web channel listening", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *WebServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data, err := webStatic.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "missing UI", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func (s *WebServer) handleChat(w http.ResponseWriter, r *http.Request) {
	c, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn := &wsConn{c: c, sessionID: WebSessionPrefix + "default"}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		c.Close()
	}()

	for {
		var in wsInbound
		if err := c.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		if in.Text == "" {
			continue
		}
		if in.SessionID != "" {
			conn.setSession(WebSessionPrefix + in.SessionID)
		}
		// The loop serializes per session; run inbound off the read
		// loop so the socket stays responsive.
		go s.inbound(r.Context(), conn.session(), in.Text)
	}
}

// handleEvents streams the internal event bus as JSON lines over a
// WebSocket, one object per event.
func (s *WebServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		http.Error(w, "event bus disabled", http.StatusNotFound)
		return
	}
	c, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()

	sub := s.bus.Subscribe(64)
	defer s.bus.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// SendResponse delivers a whole message, with a markdown-rendered HTML
// body, to every socket on the session.
func (s *WebServer) SendResponse(sessionID, text string) error {
	return s.broadcast(sessionID, wsOutbound{
		Type: "response",
		Text: text,
		HTML: s.renderMarkdown(text),
	})
}

// SendStreamChunk delivers an incremental fragment.
func (s *WebServer) SendStreamChunk(sessionID, chunk string) error {
	return s.broadcast(sessionID, wsOutbound{Type: "chunk", Text: chunk})
}

func (s *WebServer) broadcast(sessionID string, msg wsOutbound) error {
	s.mu.Lock()
	targets := make([]*wsConn, 0, len(s.conns))
	for conn := range s.conns {
		if conn.session() == sessionID {
			targets = append(targets, conn)
		}
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		s.logger.Debug("no websocket for session", "session_id", sessionID)
		return nil
	}
	for _, conn := range targets {
		if err := conn.writeJSON(msg); err != nil {
			s.logger.Warn("websocket write failed", "session_id", sessionID, "error", err)
		}
	}
	return nil
}

func (s *WebServer) renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(text), &buf); err != nil {
		return ""
	}
	return buf.String()
}
