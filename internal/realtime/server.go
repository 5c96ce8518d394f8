package realtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"vidresearch/internal/metrics"
	"vidresearch/internal/protocol"
)

const (
	pingInterval   = 30 * time.Second
	readDeadline   = 60 * time.Second
	writeDeadline  = 10 * time.Second
	sendBufferSize = 256
	jobBufferSize  = 16
	maxFrameSize   = 768 << 20
)

// ReportReady is logged right before a report is sent.
const ReportReady = "Report ready!"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow localhost origins for dev.
	},
}

// Config configures the development server.
type Config struct {
	UploadDir string
	StaticDir string
	Pipeline  Pipeline
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Logger    zerolog.Logger
}

// Server speaks the server side of the research protocol: it accepts start
// and chat commands over /ws, streams progress as log frames and answers
// with the full transcript as a report frame.
type Server struct {
	cfg       Config
	logger    zerolog.Logger
	clients   map[*client]bool
	clientsMu sync.RWMutex

	uploads   []UploadInfo
	uploadsMu sync.RWMutex
}

type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	jobs   chan protocol.Command
	ctx    context.Context
	cancel context.CancelFunc
	server *Server
	logger zerolog.Logger

	// transcript is only touched by the worker goroutine.
	transcript []protocol.ReportEntry
}

// New creates a new development server.
func New(cfg Config) *Server {
	if cfg.Pipeline == nil {
		cfg.Pipeline = ScriptedPipeline{}
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	return &Server{
		cfg:     cfg,
		logger:  cfg.Logger.With().Str("component", "realtime").Logger(),
		clients: make(map[*client]bool),
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint.
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST endpoints.
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /uploads", s.handleListUploads)
	if s.cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Static file serving.
	if s.cfg.StaticDir != "" {
		fileServer := http.FileServer(http.Dir(s.cfg.StaticDir))
		mux.Handle("/", fileServer)
	}

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleWebSocket upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	c := &client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		jobs:   make(chan protocol.Command, jobBufferSize),
		ctx:    ctx,
		cancel: cancel,
		server: s,
		logger: s.logger.With().Str("client", id).Logger(),
	}

	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()
	s.cfg.Metrics.SessionOpened()
	c.logger.Info().Str("remote", r.RemoteAddr).Msg("client connected")

	go c.writePump()
	go c.work()
	go c.readPump()
}

// readPump reads commands from the WebSocket connection and queues them for
// the worker, so a long analysis never stalls ping handling.
func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))

		cmd, err := protocol.DecodeCommand(message)
		if err != nil {
			c.server.cfg.Metrics.DecodeFailed()
			c.logger.Warn().Err(err).Msg("dropping client frame")
			continue
		}

		select {
		case c.jobs <- cmd:
		default:
			c.logger.Warn().Msg("job queue full, dropping command")
		}
	}
}

// writePump writes queued frames and keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// work runs commands one at a time, in arrival order.
func (c *client) work() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case cmd := <-c.jobs:
			var err error
			switch cmd := cmd.(type) {
			case protocol.StartCommand:
				c.server.cfg.Metrics.Received(protocol.CommandStart)
				err = c.handleStart(cmd)
			case protocol.ChatCommand:
				c.server.cfg.Metrics.Received(protocol.CommandChat)
				err = c.handleChat(cmd)
			}
			if err != nil {
				if c.ctx.Err() == nil {
					c.logger.Error().Err(err).Msg("research failed, closing connection")
				}
				// The protocol has no error frame; closing is how a failure
				// reaches the client.
				c.conn.Close()
				return
			}
		}
	}
}

func (c *client) handleStart(cmd protocol.StartCommand) error {
	video, err := c.server.storeUpload(cmd)
	if err != nil {
		return err
	}
	c.logger.Info().Str("video", video.Name).Int64("bytes", video.Size).Msg("analysis started")

	summary, err := c.server.cfg.Pipeline.Analyze(c.ctx, video, func(line string) {
		c.emit(protocol.LogEntry{Text: line})
	})
	if err != nil {
		return fmt.Errorf("analyze %s: %w", video.Name, err)
	}

	c.transcript = append(c.transcript, protocol.ReportEntry{Role: protocol.RoleAI, Content: summary})
	c.emit(protocol.LogEntry{Text: ReportReady})
	c.emitReport()
	return nil
}

func (c *client) handleChat(cmd protocol.ChatCommand) error {
	c.transcript = append(c.transcript, protocol.ReportEntry{Role: protocol.RoleUser, Content: cmd.Message})
	reply, err := c.server.cfg.Pipeline.Reply(c.ctx, c.transcript)
	if err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	c.transcript = append(c.transcript, protocol.ReportEntry{Role: protocol.RoleAI, Content: reply})
	c.emitReport()
	return nil
}

func (c *client) emitReport() {
	entries := make([]protocol.ReportEntry, len(c.transcript))
	copy(entries, c.transcript)
	c.emit(protocol.ReportEntries{Entries: entries})
}

func (c *client) emit(ev protocol.Event) {
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		c.logger.Error().Err(err).Msg("encode event")
		return
	}
	select {
	case c.send <- data:
		c.server.cfg.Metrics.Sent(eventKind(ev))
	case <-c.ctx.Done():
	}
}

func eventKind(ev protocol.Event) string {
	switch ev.(type) {
	case protocol.LogEntry:
		return protocol.TypeLogs
	case protocol.ReportEntries:
		return protocol.TypeReport
	default:
		return "unknown"
	}
}

// storeUpload decodes the video and writes it under its own upload directory.
func (s *Server) storeUpload(cmd protocol.StartCommand) (Video, error) {
	data, err := base64.StdEncoding.DecodeString(cmd.Input)
	if err != nil {
		return Video{}, fmt.Errorf("decode upload %s: %w", cmd.Name, err)
	}

	name := filepath.Base(filepath.Clean("/" + cmd.Name))
	if name == "/" || name == "." {
		return Video{}, fmt.Errorf("invalid upload name: %q", cmd.Name)
	}

	id := uuid.New().String()
	dir := filepath.Join(s.cfg.UploadDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Video{}, fmt.Errorf("create upload directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return Video{}, fmt.Errorf("write upload: %w", err)
	}

	video := Video{ID: id, Name: name, Path: path, Size: int64(len(data))}
	s.uploadsMu.Lock()
	s.uploads = append(s.uploads, UploadInfo{
		ID:        id,
		Name:      name,
		Size:      video.Size,
		CreatedAt: time.Now().UTC(),
	})
	s.uploadsMu.Unlock()
	return video, nil
}

// removeClient cleans up a disconnected client.
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.clientsMu.Unlock()

	if !ok {
		return
	}
	c.cancel()
	s.cfg.Metrics.SessionClosed()
	c.logger.Info().Msg("client disconnected")
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Shutdown disconnects every client.
func (s *Server) Shutdown() {
	s.clientsMu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range clients {
		c.cancel()
		c.conn.Close()
	}
}
