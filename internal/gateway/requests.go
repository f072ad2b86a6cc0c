// requests.go — 网关 RPC 的类型化封装。
package gateway

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	apperrors "github.com/multi-agent/go-chat-client/pkg/errors"
	"github.com/multi-agent/go-chat-client/pkg/logger"
	"github.com/multi-agent/go-chat-client/pkg/util"
)

// SessionInfo 网关侧的会话摘要。
type SessionInfo struct {
	SessionKey string `json:"sessionKey"`
	Title      string `json:"title,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// SendChat submits one user message under a caller-issued run id.
// The caller arms its reconciler with the id before calling, so even
// events racing the response find the run already active.
func (c *Client) SendChat(sessionKey, runID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "gateway.SendChat", "empty message")
	}
	if strings.TrimSpace(runID) == "" {
		runID = uuid.NewString()
	}
	_, err := c.Call("chat.send", map[string]any{
		"sessionKey": sessionKey,
		"runId":      runID,
		"message":    text,
	})
	if err != nil {
		return apperrors.Wrap(err, "gateway.SendChat", "send")
	}
	return nil
}

// FetchHistory pulls the newest messages of one session.
func (c *Client) FetchHistory(sessionKey string, limit int) ([]map[string]any, error) {
	result, err := c.Call("chat.history", map[string]any{
		"sessionKey": sessionKey,
		"limit":      limit,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "gateway.FetchHistory", "chat.history")
	}
	var resp struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, apperrors.Wrap(err, "gateway.FetchHistory", "decode response")
	}
	return resp.Messages, nil
}

// ListSessions fetches the gateway's session directory.
func (c *Client) ListSessions() ([]SessionInfo, error) {
	result, err := c.Call("sessions.list", nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "gateway.ListSessions", "sessions.list")
	}
	var resp struct {
		Sessions []SessionInfo `json:"sessions"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, apperrors.Wrap(err, "gateway.ListSessions", "decode response")
	}
	return resp.Sessions, nil
}

// Requester adapts the client's blocking RPCs into the fire-and-forget
// corrective requests the reconciler issues. Results come back through
// the callbacks, wired by the caller after construction.
type Requester struct {
	client *Client

	// OnHistory 历史拉取结果回调 (如 Reconciler.HydrateHistory)。
	OnHistory func(sessionKey string, messages []map[string]any)
	// OnSessions 会话目录刷新回调。
	OnSessions func(sessions []SessionInfo)
}

func NewRequester(client *Client) *Requester {
	return &Requester{client: client}
}

// RequestHistory implements the reconciler's corrective-reload hook.
func (r *Requester) RequestHistory(sessionKey string, limit int) {
	util.SafeGo(func() {
		messages, err := r.client.FetchHistory(sessionKey, limit)
		if err != nil {
			logger.Warn("gateway: history reload failed",
				logger.FieldSessionKey, sessionKey, logger.FieldError, err)
			return
		}
		if r.OnHistory != nil {
			r.OnHistory(sessionKey, messages)
		}
	})
}

// RequestSessionRefresh re-pulls the session directory in the background.
func (r *Requester) RequestSessionRefresh() {
	util.SafeGo(func() {
		sessions, err := r.client.ListSessions()
		if err != nil {
			logger.Warn("gateway: session refresh failed", logger.FieldError, err)
			return
		}
		if r.OnSessions != nil {
			r.OnSessions(sessions)
		}
	})
}
