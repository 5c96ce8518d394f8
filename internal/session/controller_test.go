package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidresearch/internal/metrics"
	"vidresearch/internal/render"
	"vidresearch/internal/ui"
	"vidresearch/internal/upload"
)

const waitFor = 2 * time.Second
const tick = 10 * time.Millisecond

// fakeServer accepts one WebSocket connection on /ws, records what the
// client sends and writes whatever the test queues.
type fakeServer struct {
	*httptest.Server
	received chan string
	send     chan string
	drop     chan struct{}
	dropOnce sync.Once
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		received: make(chan string, 16),
		send:     make(chan string, 16),
		drop:     make(chan struct{}),
	}
	upgrader := websocket.Upgrader{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				fs.received <- string(data)
			}
		}()

		for {
			select {
			case frame := <-fs.send:
				if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
					return
				}
			case <-fs.drop:
				return
			}
		}
	}))
	t.Cleanup(func() {
		fs.Drop()
		fs.Close()
	})
	return fs
}

// Drop closes the server side of the connection without a close frame.
func (fs *fakeServer) Drop() {
	fs.dropOnce.Do(func() { close(fs.drop) })
}

func (fs *fakeServer) expectFrame(t *testing.T) string {
	t.Helper()
	select {
	case f := <-fs.received:
		return f
	case <-time.After(waitFor):
		t.Fatal("no frame received")
		return ""
	}
}

func (fs *fakeServer) expectNoFrame(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case f := <-fs.received:
		t.Fatalf("unexpected frame %q", f)
	case <-time.After(d):
	}
}

// stubReader completes reads with a fixed result, optionally after gate is
// closed.
type stubReader struct {
	file upload.File
	err  error
	gate chan struct{}
}

func (r *stubReader) Read(path string, done func(upload.File, error)) {
	go func() {
		if r.gate != nil {
			<-r.gate
		}
		done(r.file, r.err)
	}()
}

type harness struct {
	input, send *ui.Element
	log, report *render.Buffer
	metrics     *metrics.Metrics
	ctrl        *Controller
	server      *fakeServer
}

func newHarness(t *testing.T, reader upload.Reader) *harness {
	t.Helper()
	h := &harness{
		input:   &ui.Element{},
		send:    &ui.Element{},
		log:     &render.Buffer{},
		report:  &render.Buffer{},
		metrics: metrics.New(prometheus.NewRegistry()),
		server:  newFakeServer(t),
	}
	if reader == nil {
		reader = &stubReader{file: upload.File{Name: "clip.mp4", Payload: "AAEC"}}
	}

	machine := ui.New(ui.Controls{ChatInput: h.input, Send: h.send}, zerolog.Nop())
	sink := render.NewSink(h.log, h.report, &render.ScrollCounter{}, render.NewGoldmark(), zerolog.Nop())

	endpoint, err := Endpoint(h.server.URL + "/")
	require.NoError(t, err)
	h.ctrl = New(endpoint, machine, sink, Options{
		Reader:  reader,
		Metrics: h.metrics,
		Logger:  zerolog.Nop(),
	})
	t.Cleanup(h.ctrl.Close)
	return h
}

// started runs StartSession and waits for the start frame.
func (h *harness) started(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.StartSession(context.Background(), "/videos/clip.mp4"))
	assert.Equal(t, `start {"name":"clip.mp4","input":"AAEC"}`, h.server.expectFrame(t))
}

func (h *harness) logTexts() []string {
	var out []string
	for _, b := range h.log.Blocks() {
		out = append(out, b.Text)
	}
	return out
}

func (h *harness) waitState(t *testing.T, want ui.State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.ctrl.UIState() == want }, waitFor, tick,
		"expected state %s, got %s", want, h.ctrl.UIState())
}

func TestController_StartSession(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.ctrl.StartSession(context.Background(), "/videos/clip.mp4"))

	// The UI flips before the server answers.
	assert.Equal(t, ui.StateInProgress, h.ctrl.UIState())
	assert.Equal(t, ui.PlaceholderInProgress, h.input.Placeholder())
	assert.True(t, h.input.Disabled())
	assert.True(t, h.send.Disabled())
	assert.Equal(t, []string{ThinkingMessage}, h.logTexts())
	assert.True(t, h.log.Visible())

	assert.Equal(t, `start {"name":"clip.mp4","input":"AAEC"}`, h.server.expectFrame(t))
	assert.Equal(t, ConnOpen, h.ctrl.ConnState())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.FramesSent.WithLabelValues("start")))
}

func TestController_StartWaitsForUpload(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, &stubReader{file: upload.File{Name: "clip.mp4", Payload: "AAEC"}, gate: gate})

	require.NoError(t, h.ctrl.StartSession(context.Background(), "clip.mp4"))
	require.Eventually(t, func() bool { return h.ctrl.ConnState() == ConnOpen }, waitFor, tick)

	h.server.expectNoFrame(t, 100*time.Millisecond)
	close(gate)
	assert.Equal(t, `start {"name":"clip.mp4","input":"AAEC"}`, h.server.expectFrame(t))
}

func TestController_StartTwiceRefused(t *testing.T) {
	h := newHarness(t, nil)
	h.started(t)

	err := h.ctrl.StartSession(context.Background(), "again.mp4")
	assert.ErrorIs(t, err, ErrInvalidInput)
	h.server.expectNoFrame(t, 50*time.Millisecond)
}

func TestController_LogsInArrivalOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.started(t)

	h.server.send <- `{"type":"logs","output":"step 1"}`
	h.server.send <- `{"type":"logs","output":"step 2"}`

	require.Eventually(t, func() bool { return len(h.log.Blocks()) == 3 }, waitFor, tick)
	assert.Equal(t, []string{ThinkingMessage, "step 1", "step 2"}, h.logTexts())
	assert.Equal(t, ui.StateInProgress, h.ctrl.UIState())
}

func TestController_ReportFinishes(t *testing.T) {
	h := newHarness(t, nil)
	h.started(t)

	h.server.send <- `{"type":"report","output":[{"role":"AI","content":"# Done"}]}`
	h.waitState(t, ui.StateFinished)

	blocks := h.report.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, render.ClassAgent, blocks[0].Class)
	assert.Equal(t, "<h1>Done</h1>\n", blocks[0].HTML)
	assert.False(t, h.input.Disabled())
	assert.False(t, h.send.Disabled())
	assert.Equal(t, ui.PlaceholderFinished, h.input.Placeholder())
}

func TestController_ChatMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.started(t)
	h.server.send <- `{"type":"report","output":[{"role":"AI","content":"summary"}]}`
	h.waitState(t, ui.StateFinished)

	h.input.SetValue("  hello ")
	require.NoError(t, h.ctrl.SendChatMessage(h.input.Value()))

	assert.Equal(t, `chat {"message":"hello"}`, h.server.expectFrame(t))
	assert.Empty(t, h.input.Value())
	assert.Equal(t, ui.StateInProgress, h.ctrl.UIState())

	blocks := h.report.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, render.ClassUser, blocks[1].Class)
	assert.Equal(t, "hello", blocks[1].Text)
}

func TestController_EchoIsReplacedByReport(t *testing.T) {
	h := newHarness(t, nil)
	h.started(t)
	h.server.send <- `{"type":"report","output":[{"role":"AI","content":"summary"}]}`
	h.waitState(t, ui.StateFinished)

	require.NoError(t, h.ctrl.SendChatMessage("hello"))
	h.server.expectFrame(t)
	h.server.send <- `{"type":"report","output":[{"role":"AI","content":"summary"},{"role":"user","content":"hello"},{"role":"AI","content":"hi"}]}`
	h.waitState(t, ui.StateFinished)

	blocks := h.report.Blocks()
	require.Len(t, blocks, 3)
	assert.Equal(t, []string{render.ClassAgent, render.ClassUser, render.ClassAgent},
		[]string{blocks[0].Class, blocks[1].Class, blocks[2].Class})
}

func TestController_ChatRefusedLocally(t *testing.T) {
	h := newHarness(t, nil)

	// Not connected yet.
	err := h.ctrl.SendChatMessage("hello")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, ui.StateInitial, h.ctrl.UIState())

	h.started(t)
	for _, blank := range []string{"", "   ", "\n\t"} {
		err := h.ctrl.SendChatMessage(blank)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	h.server.expectNoFrame(t, 50*time.Millisecond)
	assert.Empty(t, h.report.Blocks())
}

func TestController_DecodeErrorDropsFrame(t *testing.T) {
	h := newHarness(t, nil)
	h.started(t)

	h.server.send <- `not json`
	h.server.send <- `{"type":"path","output":{}}`
	h.server.send <- `{"type":"report","output":[{"content":"no role"}]}`
	h.server.send <- `{"type":"logs","output":"still alive"}`

	require.Eventually(t, func() bool { return len(h.log.Blocks()) == 2 }, waitFor, tick)
	assert.Equal(t, []string{ThinkingMessage, "still alive"}, h.logTexts())
	assert.Equal(t, ui.StateInProgress, h.ctrl.UIState())
	assert.Equal(t, ConnOpen, h.ctrl.ConnState())
	assert.Empty(t, h.report.Blocks())
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.DecodeErrors))
}

func TestController_UnexpectedCloseFails(t *testing.T) {
	h := newHarness(t, nil)
	h.started(t)
	h.server.send <- `{"type":"logs","output":"step 1"}`
	require.Eventually(t, func() bool { return len(h.log.Blocks()) == 2 }, waitFor, tick)

	h.server.Drop()

	select {
	case <-h.ctrl.Done():
	case <-time.After(waitFor):
		t.Fatal("controller did not notice the close")
	}
	assert.Equal(t, ui.StateError, h.ctrl.UIState())
	assert.Equal(t, ConnClosed, h.ctrl.ConnState())
	assert.True(t, h.input.Disabled())
	assert.Equal(t, ui.PlaceholderError, h.input.Placeholder())
	assert.ErrorIs(t, h.ctrl.Err(), ErrTransport)

	// No reconnect, no more traffic.
	assert.ErrorIs(t, h.ctrl.SendChatMessage("hello"), ErrInvalidInput)
}

func TestController_CloseAfterFinishKeepsFinished(t *testing.T) {
	h := newHarness(t, nil)
	h.started(t)
	h.server.send <- `{"type":"report","output":[{"role":"AI","content":"done"}]}`
	h.waitState(t, ui.StateFinished)

	h.server.Drop()
	<-h.ctrl.Done()
	assert.Equal(t, ui.StateFinished, h.ctrl.UIState())
}

func TestController_LocalCloseBeforeReportFails(t *testing.T) {
	h := newHarness(t, nil)
	h.started(t)

	h.ctrl.Close()
	assert.Equal(t, ui.StateError, h.ctrl.UIState())
	assert.Equal(t, ConnClosed, h.ctrl.ConnState())
	assert.NoError(t, h.ctrl.Err())
	h.ctrl.Close()
}

func TestController_CloseBeforeStart(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Close()
	<-h.ctrl.Done()
	assert.Equal(t, ui.StateInitial, h.ctrl.UIState())
	assert.ErrorIs(t, h.ctrl.StartSession(context.Background(), "clip.mp4"), ErrInvalidInput)
}

func TestController_DialFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.server.Drop()
	h.server.Close()

	require.NoError(t, h.ctrl.StartSession(context.Background(), "clip.mp4"))
	select {
	case <-h.ctrl.Done():
	case <-time.After(waitFor):
		t.Fatal("dial failure not reported")
	}
	assert.Equal(t, ui.StateError, h.ctrl.UIState())
	assert.ErrorIs(t, h.ctrl.Err(), ErrTransport)
}

func TestController_UploadFailure(t *testing.T) {
	h := newHarness(t, &stubReader{err: errors.New("disk on fire")})
	require.NoError(t, h.ctrl.StartSession(context.Background(), "clip.mp4"))

	<-h.ctrl.Done()
	assert.Equal(t, ui.StateError, h.ctrl.UIState())
	h.server.expectNoFrame(t, 50*time.Millisecond)
}

// No timeouts exist: a server that never answers leaves the session in
// progress indefinitely.
func TestController_HungServerStaysInProgress(t *testing.T) {
	h := newHarness(t, nil)
	h.started(t)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, ui.StateInProgress, h.ctrl.UIState())
	assert.Equal(t, ConnOpen, h.ctrl.ConnState())
	select {
	case <-h.ctrl.Done():
		t.Fatal("session ended without a server event")
	default:
	}
}
