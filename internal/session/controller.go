package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"vidresearch/internal/metrics"
	"vidresearch/internal/protocol"
	"vidresearch/internal/render"
	"vidresearch/internal/ui"
	"vidresearch/internal/upload"
)

const (
	writeDeadline    = 10 * time.Second
	handshakeTimeout = 30 * time.Second
	closeGracePeriod = time.Second
	defaultReadLimit = 64 << 20
)

// Options carries the controller's collaborators. Zero values get defaults.
type Options struct {
	Dialer  *websocket.Dialer
	Reader  upload.Reader
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// Controller owns the single WebSocket connection of a session, sends the
// user's commands and dispatches server events to the sink and the UI state
// machine.
//
// Every callback (user actions, socket open, frames, close, upload
// completion) runs under mu, so they never interleave.
type Controller struct {
	mu sync.Mutex

	endpoint string
	dialer   *websocket.Dialer
	reader   upload.Reader
	ui       *ui.Machine
	sink     *render.Sink
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	conn      *websocket.Conn
	connState ConnState
	cause     error
	done      chan struct{}
}

// New creates a controller for the given WebSocket endpoint (see Endpoint).
func New(endpoint string, machine *ui.Machine, sink *render.Sink, opts Options) *Controller {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		}
	}
	reader := opts.Reader
	if reader == nil {
		reader = upload.FileReader{}
	}

	c := &Controller{
		endpoint:  endpoint,
		dialer:    dialer,
		reader:    reader,
		ui:        machine,
		sink:      sink,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With().Str("component", "session").Str("endpoint", endpoint).Logger(),
		connState: ConnDisconnected,
		done:      make(chan struct{}),
	}
	machine.OnTransition(func(from, to ui.State) {
		c.metrics.Transition(string(to))
	})
	return c
}

// StartSession opens the connection and, once it is open and the upload at
// path has been read, sends the start command. The UI moves to InProgress
// right away. It may only be called once.
func (c *Controller) StartSession(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connState != ConnDisconnected {
		return fmt.Errorf("%w: session already started", ErrInvalidInput)
	}

	c.connState = ConnConnecting
	c.ui.Begin()
	c.sink.AppendLog(ThinkingMessage)
	c.logger.Info().Str("upload", path).Msg("starting session")

	go c.dial(ctx, path)
	return nil
}

// SendChatMessage sends a follow-up question. Blank messages and messages
// sent without an open connection are refused with ErrInvalidInput.
func (c *Controller) SendChatMessage(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	message := strings.TrimSpace(text)
	if message == "" {
		return fmt.Errorf("%w: empty message", ErrInvalidInput)
	}
	if c.connState != ConnOpen {
		return fmt.Errorf("%w: not connected (%s)", ErrInvalidInput, c.connState)
	}

	if err := c.send(protocol.ChatCommand{Message: message}); err != nil {
		c.teardown(err)
		return err
	}

	c.sink.EchoUser(message)
	c.ui.ClearInput()
	c.ui.Begin()
	return nil
}

// Close ends the session. Unless the report already arrived this is a
// failure from the UI's point of view.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.connState {
	case ConnClosed:
		return
	case ConnDisconnected:
		c.connState = ConnClosed
		close(c.done)
		return
	case ConnOpen:
		c.conn.SetWriteDeadline(time.Now().Add(closeGracePeriod))
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
			c.logger.Debug().Err(err).Msg("write close frame")
		}
	}
	c.teardown(nil)
}

// Done is closed once the connection has been closed.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the session, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

// ConnState returns the connection lifecycle state.
func (c *Controller) ConnState() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// UIState returns the session state shown to the user.
func (c *Controller) UIState() ui.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ui.State()
}

func (c *Controller) dial(ctx context.Context, path string) {
	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		c.fail(nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, c.endpoint, err))
		return
	}
	c.onOpen(conn, path)
}

func (c *Controller) onOpen(conn *websocket.Conn, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connState != ConnConnecting {
		// Closed while the handshake was in flight.
		conn.Close()
		return
	}

	conn.SetReadLimit(defaultReadLimit)
	c.conn = conn
	c.connState = ConnOpen
	c.metrics.SessionOpened()
	c.logger.Info().Msg("connection open")

	go c.readPump(conn)
	c.reader.Read(path, c.onUploadRead)
}

func (c *Controller) onUploadRead(file upload.File, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connState != ConnOpen {
		return
	}
	if err != nil {
		c.teardown(fmt.Errorf("read upload: %w", err))
		return
	}
	if err := c.send(protocol.StartCommand{Name: file.Name, Input: file.Payload}); err != nil {
		c.teardown(err)
	}
}

// readPump reads frames until the connection fails.
func (c *Controller) readPump(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.fail(conn, fmt.Errorf("%w: read: %v", ErrTransport, err))
			return
		}
		c.onFrame(conn, message)
	}
}

func (c *Controller) onFrame(conn *websocket.Conn, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != conn || c.connState != ConnOpen {
		return
	}

	ev, err := protocol.Decode(raw)
	if err != nil {
		c.metrics.DecodeFailed()
		c.logger.Warn().Err(err).Int("bytes", len(raw)).Msg("dropping frame")
		return
	}

	switch e := ev.(type) {
	case protocol.LogEntry:
		c.metrics.Received(protocol.TypeLogs)
		c.sink.AppendLog(e.Text)
	case protocol.ReportEntries:
		c.metrics.Received(protocol.TypeReport)
		c.sink.RenderReport(e.Entries)
		c.ui.Finish()
		c.logger.Info().Int("entries", len(e.Entries)).Msg("report received")
	default:
		c.logger.Warn().Str("event", fmt.Sprintf("%T", ev)).Msg("unhandled event")
	}
}

// fail is the transport error callback. conn is nil for dial failures.
func (c *Controller) fail(conn *websocket.Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connState == ConnClosed || c.conn != conn {
		return
	}
	c.teardown(err)
}

// send encodes and writes a command. Callers hold mu.
func (c *Controller) send(cmd protocol.Command) error {
	frame, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		return fmt.Errorf("%w: write: %v", ErrTransport, err)
	}

	kind, _, _ := strings.Cut(frame, " ")
	c.metrics.Sent(kind)
	c.logger.Debug().Str("command", kind).Int("bytes", len(frame)).Msg("frame sent")
	return nil
}

// teardown closes the connection and settles the UI. Callers hold mu.
func (c *Controller) teardown(cause error) {
	if c.connState == ConnClosed {
		return
	}
	wasOpen := c.connState == ConnOpen
	c.connState = ConnClosed
	c.cause = cause

	if c.conn != nil {
		c.conn.Close()
	}
	if wasOpen {
		c.metrics.SessionClosed()
	}

	if c.ui.State() != ui.StateFinished {
		c.ui.Fail()
		if cause != nil {
			c.logger.Error().Err(cause).Msg("session failed")
		} else {
			c.logger.Warn().Msg("session closed before the report arrived")
		}
	} else {
		c.logger.Info().Err(cause).Msg("connection closed")
	}
	close(c.done)
}
