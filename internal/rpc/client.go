// Package rpc provides the bidirectional channel to the local
// synchronization daemon: a websocket JSON-RPC client plus the
// session-scoped proxy handle the trackers share.
//
// Message routing: outgoing calls carry int64 ids and are confirmed
// asynchronously; the readLoop matches daemon responses to the pending id
// table and logs protocol errors without retrying. Incoming cursor/edit
// notifications are dispatched, in arrival order, to a two-method Handler.
// Dispatching happens on the readLoop goroutine, which is what gives
// per-document edit application its ordering guarantee.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/weftlabs/weft/internal/protocol"
)

// tracer records rpc-level spans. A no-op unless the process installed a
// tracer provider.
var tracer = otel.Tracer("github.com/weftlabs/weft/internal/rpc")

// Handler receives incoming daemon notifications. Implemented by the
// session adapter that forwards to the presence tracker and the edit
// synchronizer.
type Handler interface {
	// HandleCursorEvent delivers a remote cursor/selection update.
	HandleCursorEvent(ev protocol.CursorEvent)

	// HandleEditEvent delivers a remote edit.
	HandleEditEvent(ev protocol.EditEvent)
}

// Client is the websocket JSON-RPC connection to the daemon.
type Client struct {
	// handler receives incoming notifications.
	handler Handler

	// mu protects the connection, the pending table, and the done channel.
	mu sync.Mutex

	// conn is the underlying websocket connection.
	conn *websocket.Conn

	// done signals the readLoop and pingLoop of this connection to stop.
	done chan struct{}

	// pending maps in-flight request ids to their method names, so the
	// readLoop can attribute error responses when they arrive.
	pending map[int64]string

	// errors receives terminal connection errors.
	errors chan error

	// nextID is the id counter for outgoing requests.
	nextID atomic.Int64

	// connected indicates the connection is active.
	connected bool

	pingInterval time.Duration
	dialTimeout  time.Duration
	userID       string
	displayName  string
	logger       *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Defaults to log.Default() tagged with the
// rpc component.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithDialTimeout bounds the total time spent retrying the initial dial.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithPingInterval sets the keepalive ping interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) { c.pingInterval = d }
}

// WithIdentity announces who we are in the connection handshake. The
// daemon stamps this identity on the cursor and edit events it fans out to
// our peers.
func WithIdentity(userID, displayName string) Option {
	return func(c *Client) {
		c.userID = userID
		c.displayName = displayName
	}
}

// New creates a client that will dispatch incoming notifications to
// handler.
//
// Parameters:
//   - handler: Receiver for incoming cursor/edit notifications
//   - opts: Configuration options
//
// Returns:
//   - *Client: A new, not yet connected client
func New(handler Handler, opts ...Option) *Client {
	c := &Client{
		handler:      handler,
		done:         make(chan struct{}),
		pending:      make(map[int64]string),
		errors:       make(chan error, 10),
		pingInterval: 25 * time.Second,
		dialTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Default().With("component", "rpc")
	}
	return c
}

// Connect dials the daemon endpoint and starts the read and ping loops.
//
// The endpoint is either a ws:// (or wss://) URL or a unix socket path
// (optionally prefixed with unix://). Dialing retries with capped
// exponential backoff until the dial timeout elapses, so an attach that
// races the daemon's own startup still connects.
//
// Parameters:
//   - ctx: Context for cancellation
//   - endpoint: Daemon websocket URL or unix socket path
//
// Returns:
//   - error: Any error that occurred during connection
func (c *Client) Connect(ctx context.Context, endpoint string) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	c.mu.Unlock()

	dialer, wsURL, err := dialerFor(endpoint)
	if err != nil {
		return err
	}
	wsURL, err = withIdentityParams(wsURL, c.userID, c.displayName)
	if err != nil {
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = c.dialTimeout

	var conn *websocket.Conn
	dial := func() error {
		var derr error
		conn, _, derr = dialer.DialContext(ctx, wsURL, nil)
		return derr
	}
	if err := backoff.Retry(dial, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("failed to connect to daemon at %s: %w", endpoint, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop()
	go c.pingLoop()

	return nil
}

// dialerFor builds the dialer and URL for an endpoint. Unix socket paths
// get a NetDialContext that ignores the placeholder host in the URL.
func dialerFor(endpoint string) (*websocket.Dialer, string, error) {
	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		if _, err := url.Parse(endpoint); err != nil {
			return nil, "", fmt.Errorf("invalid daemon URL: %w", err)
		}
		return &websocket.Dialer{HandshakeTimeout: 10 * time.Second}, endpoint, nil
	}

	path := strings.TrimPrefix(endpoint, "unix://")
	if path == "" {
		return nil, "", fmt.Errorf("empty daemon endpoint")
	}
	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		},
	}
	return dialer, "ws://weftd/", nil
}

// withIdentityParams appends the handshake identity to the dial URL.
func withIdentityParams(wsURL, userID, displayName string) (string, error) {
	if userID == "" && displayName == "" {
		return wsURL, nil
	}
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid daemon URL: %w", err)
	}
	q := u.Query()
	if userID != "" {
		q.Set("user", userID)
	}
	if displayName != "" {
		q.Set("name", displayName)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Send issues a request and returns once it is written. The daemon's
// response is matched up later by the readLoop; protocol errors are logged
// there and never retried.
//
// Parameters:
//   - method: Wire method name
//   - params: Payload, marshaled to JSON
//
// Returns:
//   - error: Write or marshal failure; nil once the request is on the wire
func (c *Client) Send(method string, params any) error {
	_, span := tracer.Start(context.Background(), "rpc.send",
		oteltrace.WithAttributes(attribute.String("weft.method", method)))
	defer span.End()

	id := c.nextID.Add(1)
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		span.SetStatus(codes.Error, "not connected")
		return fmt.Errorf("not connected")
	}
	c.pending[id] = method
	if err := c.conn.WriteJSON(req); err != nil {
		delete(c.pending, id)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to send %s: %w", method, err)
	}
	return nil
}

// readLoop reads frames until the connection dies, routing responses to
// the pending table and notifications to the handler.
func (c *Client) readLoop() {
	// Capture this generation's done so a concurrent Close doesn't leave
	// us selecting on a nil channel. A Close that won the race already
	// cleared the connection.
	c.mu.Lock()
	done := c.done
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	defer func() {
		c.mu.Lock()
		c.connected = false
		c.pending = make(map[int64]string)
		c.mu.Unlock()
	}()

	for {
		select {
		case <-done:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return
			case c.errors <- fmt.Errorf("connection lost: %w", err):
			default:
			}
			return
		}

		if gjson.GetBytes(data, "method").Exists() {
			c.dispatch(data)
			continue
		}
		c.settle(data)
	}
}

// dispatch decodes one incoming notification and forwards it to the
// handler. Malformed or unknown notifications are logged and dropped.
func (c *Client) dispatch(data []byte) {
	method := gjson.GetBytes(data, "method").String()
	var req protocol.Request
	if err := json.Unmarshal(data, &req); err != nil {
		c.logger.Warn("dropping malformed notification", "method", method, "err", err)
		return
	}

	switch req.Method {
	case protocol.MethodCursor:
		var ev protocol.CursorEvent
		if err := json.Unmarshal(req.Params, &ev); err != nil {
			c.logger.Warn("dropping malformed cursor event", "err", err)
			return
		}
		c.handler.HandleCursorEvent(ev)
	case protocol.MethodEdit:
		var ev protocol.EditEvent
		if err := json.Unmarshal(req.Params, &ev); err != nil {
			c.logger.Warn("dropping malformed edit event", "err", err)
			return
		}
		c.handler.HandleEditEvent(ev)
	default:
		c.logger.Debug("ignoring unknown notification", "method", req.Method)
	}
}

// settle matches a daemon response to its pending request and logs
// protocol errors.
func (c *Client) settle(data []byte) {
	var resp protocol.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("dropping malformed response", "err", err)
		return
	}

	c.mu.Lock()
	method, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("response for unknown request", "id", resp.ID)
		return
	}
	if resp.Error != nil {
		c.logger.Warn("daemon rejected call", "method", method, "code", resp.Error.Code, "err", resp.Error.Message)
	}
}

// pingLoop sends websocket pings to keep the connection alive and to
// detect a dead daemon.
func (c *Client) pingLoop() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if !c.connected || c.conn == nil {
				c.mu.Unlock()
				return
			}
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
			if err != nil {
				select {
				case c.errors <- fmt.Errorf("ping failed: %w", err):
				default:
				}
				return
			}
		}
	}
}

// Errors returns the channel carrying terminal connection errors.
func (c *Client) Errors() <-chan error {
	return c.errors
}

// IsConnected reports whether the connection is active.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close shuts the connection down and stops both loops. Safe to call
// multiple times; only the first call closes the done channel.
func (c *Client) Close() error {
	c.mu.Lock()
	done := c.done
	if done != nil {
		c.done = nil
	}
	c.connected = false
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	var closeErr error
	if conn != nil {
		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"),
		)
		closeErr = conn.Close()
	}
	return closeErr
}
