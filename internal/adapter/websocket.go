package adapter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig holds tunable parameters for a WSClient.
type WSConfig struct {
	URL string

	// Buffer sizes for the underlying TCP connection.
	ReadBufferSize  int
	WriteBufferSize int

	// HandshakeTimeout bounds the WebSocket upgrade.
	HandshakeTimeout time.Duration

	// ReadTimeout is the maximum duration of silence before a read fails and
	// the connection is considered dead. Zero disables the deadline.
	ReadTimeout time.Duration

	// WriteTimeout bounds each outbound frame.
	WriteTimeout time.Duration

	// Headers sent during the WebSocket handshake.
	Headers http.Header
}

// DefaultWSConfig returns defaults tuned for public market-data streams.
func DefaultWSConfig(url string) WSConfig {
	return WSConfig{
		URL:              url,
		ReadBufferSize:   16384,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// WSClient is a single WebSocket connection to one venue. It never
// reconnects on its own: a dropped connection surfaces as a read error and
// the owner decides what happens next.
//
// ReadMessage must be called from one goroutine only. Send is safe for
// concurrent use.
type WSClient struct {
	cfg  WSConfig
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial opens the WebSocket connection with TCP_NODELAY enabled. Transport
// pings are answered with pongs and extend the read deadline.
func Dial(ctx context.Context, cfg WSConfig) (*WSClient, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
		HandshakeTimeout: cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			d := net.Dialer{}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if tc, ok := conn.(*net.TCPConn); ok {
				tc.SetNoDelay(true)
			}
			return conn, nil
		},
	}

	conn, _, err := dialer.DialContext(ctx, cfg.URL, cfg.Headers)
	if err != nil {
		return nil, err
	}

	ws := &WSClient{cfg: cfg, conn: conn}
	conn.SetPingHandler(ws.handlePing)
	return ws, nil
}

// Send writes msg as a single text frame.
func (ws *WSClient) Send(msg Message) error {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	if ws.cfg.WriteTimeout > 0 {
		ws.conn.SetWriteDeadline(time.Now().Add(ws.cfg.WriteTimeout))
	}
	return ws.conn.WriteMessage(websocket.TextMessage, msg)
}

// ReadMessage blocks until the next data frame arrives, the read deadline
// expires, or the connection is closed.
func (ws *WSClient) ReadMessage() ([]byte, error) {
	if ws.cfg.ReadTimeout > 0 {
		ws.conn.SetReadDeadline(time.Now().Add(ws.cfg.ReadTimeout))
	}
	_, msg, err := ws.conn.ReadMessage()
	return msg, err
}

// Close sends a best-effort close frame and releases the connection. Any
// blocked ReadMessage returns with an error. Safe to call more than once.
func (ws *WSClient) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		ws.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = ws.conn.Close()
	})
	return err
}

func (ws *WSClient) handlePing(appData string) error {
	if ws.cfg.ReadTimeout > 0 {
		ws.conn.SetReadDeadline(time.Now().Add(ws.cfg.ReadTimeout))
	}
	err := ws.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return nil
	}
	return err
}
