package live

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-livevoice/pkg/protocol"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	readTimeout      = 120 * time.Second
	pingInterval     = 30 * time.Second
	closeTimeout     = 2 * time.Second
	queueSize        = 1024
)

// Transport is one Live websocket. A single writer goroutine owns all
// data writes; Send only enqueues.
type Transport struct {
	conn   *websocket.Conn
	logger *slog.Logger

	queue    chan []byte
	buffered atomic.Int64
	closed   atomic.Bool

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	onError atomic.Pointer[func(error)]
}

// Dial opens the socket. The URL carries the credential and is never logged.
func Dial(ctx context.Context, dialer *websocket.Dialer, rawURL string, header http.Header, logger *slog.Logger) (*Transport, error) {
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	return newTransport(conn, logger), nil
}

func newTransport(conn *websocket.Conn, logger *slog.Logger) *Transport {
	t := &Transport{
		conn:   conn,
		logger: logger,
		queue:  make(chan []byte, queueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go t.writeLoop()
	return t
}

// OnError registers fn for write failures.
func (t *Transport) OnError(fn func(error)) {
	t.onError.Store(&fn)
}

// Send encodes frame and queues it for writing.
func (t *Transport) Send(frame any) error {
	data, err := protocol.Encode(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return t.enqueue(data)
}

// SendAudio queues one realtime audio frame.
func (t *Transport) SendAudio(data, mimeType string) error {
	return t.Send(protocol.NewAudioIn(data, mimeType))
}

func (t *Transport) enqueue(data []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.buffered.Add(int64(len(data)))
	select {
	case t.queue <- data:
		return nil
	default:
		t.buffered.Add(-int64(len(data)))
		return ErrQueueFull
	}
}

// Buffered returns the number of queued bytes not yet written to the socket.
func (t *Transport) Buffered() int {
	return int(t.buffered.Load())
}

// Read blocks for the next text or binary frame.
func (t *Transport) Read() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	t.conn.SetReadDeadline(time.Now().Add(readTimeout))
	return data, nil
}

// Close flushes queued frames, sends a close frame and closes the socket.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.quit)
		select {
		case <-t.done:
		case <-time.After(closeTimeout):
			t.logger.Warn("live socket flush timed out", "buffered", t.Buffered())
		}
		err = t.conn.Close()
	})
	return err
}

// Abort closes the socket without flushing.
func (t *Transport) Abort() {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.conn.Close()
		close(t.quit)
	})
}

func (t *Transport) writeLoop() {
	defer close(t.done)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-t.queue:
			if err := t.write(data); err != nil {
				t.fail(err)
				return
			}
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				t.fail(err)
				return
			}
		case <-t.quit:
			t.drain()
			return
		}
	}
}

// drain writes what is still queued, then the close frame.
func (t *Transport) drain() {
	for {
		select {
		case data := <-t.queue:
			if err := t.write(data); err != nil {
				return
			}
		default:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
			return
		}
	}
}

func (t *Transport) write(data []byte) error {
	defer t.buffered.Add(-int64(len(data)))
	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *Transport) fail(err error) {
	t.closed.Store(true)
	if isQuitting(t.quit) {
		return
	}
	t.logger.Debug("live socket write failed", "error", err)
	if fn := t.onError.Load(); fn != nil {
		(*fn)(fmt.Errorf("write: %w", err))
	}
}

func isQuitting(quit chan struct{}) bool {
	select {
	case <-quit:
		return true
	default:
		return false
	}
}
