// client.go — WebSocket 传输层: 连接、重连、请求/响应通信。
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	apperrors "github.com/multi-agent/go-chat-client/pkg/errors"
	"github.com/multi-agent/go-chat-client/pkg/logger"
	"github.com/multi-agent/go-chat-client/pkg/util"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultReadIdleTimeout  = 95 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultCallTimeout      = 15 * time.Second

	reconnectBaseDelay = 500 * time.Millisecond
	reconnectMaxDelay  = 15 * time.Second
)

// Envelope 网关线格式: 事件推送与请求/响应共用一种帧。
// 带 id 且命中 pending call 的帧是响应, 其余按 event 名路由。
type Envelope struct {
	Event   string          `json:"event,omitempty"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *WireError      `json:"error,omitempty"`
}

// WireError 网关返回的结构化错误。
type WireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// EventHandler receives every pushed (non-response) envelope.
type EventHandler func(event string, payload json.RawMessage)

// Config 连接参数; 零值字段取默认。
type Config struct {
	URL   string
	Token string

	HandshakeTimeout time.Duration
	ReadIdleTimeout  time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	CallTimeout      time.Duration

	// MaxReconnects 连续重连尝试上限; 0 表示不重连。
	MaxReconnects int
}

func (c *Config) fillDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = defaultReadIdleTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
}

// pendingCall 等待响应的请求。
type pendingCall struct {
	done   chan struct{}
	once   sync.Once
	result json.RawMessage
	err    error
}

func (pc *pendingCall) resolve(result json.RawMessage, err error) {
	pc.once.Do(func() {
		pc.result = result
		pc.err = err
		close(pc.done)
	})
}

// Client 维护到 session gateway 的单条 WebSocket 连接。
type Client struct {
	cfg     Config
	handler EventHandler

	ctx    context.Context
	cancel context.CancelFunc

	wsMu   sync.Mutex
	ws     *websocket.Conn
	wsDone chan struct{}

	writeMu sync.Mutex

	stopped atomic.Bool
	pending sync.Map // request id → *pendingCall
}

// NewClient builds an unconnected client; Connect must be called before use.
func NewClient(cfg Config, handler EventHandler) *Client {
	cfg.fillDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:     cfg,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		wsDone:  make(chan struct{}),
	}
}

// Connect dials the gateway and starts the read and ping loops.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return apperrors.Wrap(err, "gateway.Connect", "ws connect")
	}
	c.replaceConn(conn)
	util.SafeGo(func() { c.readLoop() })
	util.SafeGo(func() { c.pingLoop(conn) })
	logger.Info("gateway: connected", logger.FieldURL, c.cfg.URL)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, apperrors.New("gateway.dial", "dial returned nil websocket connection")
	}
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadIdleTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadIdleTimeout))
		return nil
	})
	return conn, nil
}

// Close tears the connection down and fails every pending request.
func (c *Client) Close() {
	if c.stopped.Swap(true) {
		return
	}
	c.cancel()
	c.wsMu.Lock()
	if c.ws != nil {
		_ = c.ws.Close()
	}
	c.wsMu.Unlock()
	c.failPendingCalls(apperrors.ErrConnClosed)
}

func (c *Client) currentConn() *websocket.Conn {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	return c.ws
}

func (c *Client) replaceConn(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	c.wsMu.Lock()
	prev := c.ws
	c.ws = conn
	c.wsMu.Unlock()
	if prev != nil && prev != conn {
		_ = prev.Close()
	}
}

// ========================================
// 读取循环与重连
// ========================================

func (c *Client) readLoop() {
	defer func() {
		c.wsMu.Lock()
		if c.ws != nil {
			_ = c.ws.Close()
		}
		c.wsMu.Unlock()
		c.failPendingCalls(apperrors.New("gateway.readLoop", "connection closed"))

		select {
		case <-c.wsDone:
		default:
			close(c.wsDone)
		}
	}()

	for !c.stopped.Load() {
		conn := c.currentConn()
		if conn == nil {
			if !c.reconnect("ws_missing", apperrors.ErrNotConnected) {
				return
			}
			continue
		}

		_, message, err := conn.ReadMessage()
		if err == nil {
			// 收到有效消息 = 连接活跃, 重置 idle deadline。
			_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadIdleTimeout))
		}
		if err != nil {
			readErr := apperrors.Wrap(err, "gateway.readLoop", "read message")
			c.failPendingCalls(readErr)
			if c.stopped.Load() {
				return
			}
			logger.Warn("gateway: read failed", logger.FieldError, readErr)
			if c.reconnect("read_error", readErr) {
				continue
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logger.Warn("gateway: unparseable frame",
				logger.FieldError, err,
				logger.FieldDataLen, len(message),
				logger.FieldRaw, util.CompactOneLine(string(message), 200),
			)
			continue
		}

		if c.handleResponse(env) {
			continue
		}
		if strings.TrimSpace(env.Event) == "" {
			logger.Debug("gateway: frame without event name dropped",
				logger.FieldDataLen, len(message))
			continue
		}
		if c.handler != nil {
			c.handler(env.Event, env.Payload)
		}
	}
}

// handleResponse resolves the pending call matching the frame's id.
func (c *Client) handleResponse(env Envelope) bool {
	if env.ID == "" {
		return false
	}
	value, ok := c.pending.Load(env.ID)
	if !ok {
		// id 也可能只是事件的关联 id — 交回事件路径。
		return false
	}
	pc := value.(*pendingCall)
	if env.Error != nil {
		pc.resolve(nil, apperrors.Newf("gateway.call", "rpc error: %s (code %d)", env.Error.Message, env.Error.Code))
	} else {
		pc.resolve(env.Payload, nil)
	}
	return true
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wsDone:
			return
		case <-ticker.C:
			c.wsMu.Lock()
			if c.ws != conn {
				c.wsMu.Unlock()
				return
			}
			err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.cfg.WriteTimeout))
			if err != nil {
				_ = c.ws.Close()
				c.ws = nil
				c.wsMu.Unlock()
				return
			}
			c.wsMu.Unlock()
		}
	}
}

func reconnectDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delay := reconnectBaseDelay
	for i := 2; i < attempt; i++ {
		delay *= 2
		if delay >= reconnectMaxDelay {
			return reconnectMaxDelay
		}
	}
	if delay > reconnectMaxDelay {
		return reconnectMaxDelay
	}
	return delay
}

func (c *Client) sleepWithContext(delay time.Duration) bool {
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Client) reconnect(trigger string, lastErr error) bool {
	for attempt := 1; attempt <= c.cfg.MaxReconnects; attempt++ {
		if c.stopped.Load() {
			return false
		}
		if !c.sleepWithContext(reconnectDelay(attempt)) {
			return false
		}
		conn, err := c.dial(c.ctx)
		if err != nil {
			lastErr = err
			logger.Warn("gateway: reconnect attempt failed",
				"trigger", trigger,
				"attempt", attempt,
				"max_retries", c.cfg.MaxReconnects,
				logger.FieldError, err,
			)
			continue
		}
		c.replaceConn(conn)
		util.SafeGo(func() { c.pingLoop(conn) })
		logger.Info("gateway: reconnected", "trigger", trigger, "attempt", attempt)
		return true
	}
	logger.Warn("gateway: reconnect exhausted",
		"trigger", trigger,
		"max_retries", c.cfg.MaxReconnects,
		logger.FieldError, lastErr,
	)
	return false
}

// ========================================
// 请求/响应
// ========================================

// Call sends one request envelope and waits for the matching response.
func (c *Client) Call(event string, payload any) (json.RawMessage, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, apperrors.Wrap(err, "gateway.Call", "marshal payload")
		}
		raw = data
	}

	id := uuid.NewString()
	pc := &pendingCall{done: make(chan struct{})}
	c.pending.Store(id, pc)
	defer c.pending.Delete(id)

	if err := c.writeJSON(Envelope{Event: event, ID: id, Payload: raw}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.cfg.CallTimeout)
	defer timer.Stop()
	select {
	case <-pc.done:
		return pc.result, pc.err
	case <-timer.C:
		return nil, apperrors.Wrapf(apperrors.ErrTimeout, "gateway.Call", "%s timeout", event)
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

func (c *Client) writeJSON(v any) error {
	conn := c.currentConn()
	if conn == nil {
		return apperrors.Wrap(apperrors.ErrNotConnected, "gateway.writeJSON", "no connection")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteJSON(v); err != nil {
		return apperrors.Wrap(err, "gateway.writeJSON", "write frame")
	}
	return nil
}

// failPendingCalls 连接断开时让所有等待方立即出错返回。
func (c *Client) failPendingCalls(err error) {
	c.pending.Range(func(key, value any) bool {
		value.(*pendingCall).resolve(nil, err)
		c.pending.Delete(key)
		return true
	})
}
