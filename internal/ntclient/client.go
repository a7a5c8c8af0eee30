// Package ntclient talks to the desktop chat automation sidecar: a small
// HTTP API for outbound sends plus a websocket stream of inbound events.
package ntclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const defaultBaseURL = "http://127.0.0.1:8000"

// Message type codes the sidecar emits, matching the automation
// library's wire protocol.
const (
	EventRecvText = 11046
)

type Client struct {
	http    *http.Client
	baseURL string
}

func New(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{http: httpClient, baseURL: baseURL}
}

type LoginInfo struct {
	WxID     string `json:"wxid"`
	Nickname string `json:"nickname"`
}

// Event is one inbound message pushed over the event socket.
type Event struct {
	Type int       `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	FromWxID   string   `json:"from_wxid"`
	ToWxID     string   `json:"to_wxid"`
	RoomWxID   string   `json:"room_wxid,omitempty"`
	Msg        string   `json:"msg,omitempty"`
	AtUserList []string `json:"at_user_list,omitempty"`
}

type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (c *Client) GetLoginInfo(ctx context.Context) (*LoginInfo, error) {
	raw, err := c.call(ctx, http.MethodGet, "/api/login_info", nil)
	if err != nil {
		return nil, err
	}
	var out LoginInfo
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode login info: %w", err)
	}
	if strings.TrimSpace(out.WxID) == "" {
		return nil, fmt.Errorf("sidecar returned empty wxid")
	}
	return &out, nil
}

func (c *Client) SendText(ctx context.Context, toWxID, content string) error {
	if strings.TrimSpace(toWxID) == "" {
		return fmt.Errorf("to_wxid is required")
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content is required")
	}
	_, err := c.call(ctx, http.MethodPost, "/api/send_text", map[string]any{
		"to_wxid": toWxID,
		"content": content,
	})
	return err
}

// SendImage asks the sidecar to fetch and deliver an image by URL; the
// sidecar owns download and compression.
func (c *Client) SendImage(ctx context.Context, toWxID, imgURL string) error {
	if strings.TrimSpace(toWxID) == "" {
		return fmt.Errorf("to_wxid is required")
	}
	if strings.TrimSpace(imgURL) == "" {
		return fmt.Errorf("url is required")
	}
	_, err := c.call(ctx, http.MethodPost, "/api/send_image", map[string]any{
		"to_wxid": toWxID,
		"url":     imgURL,
	})
	return err
}

// DialEvents opens the sidecar's websocket event stream.
func (c *Client) DialEvents(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	dialer := *websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) call(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sidecar http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode sidecar response: %w", err)
	}
	if out.Code != 200 {
		msg := strings.TrimSpace(out.Msg)
		if msg == "" {
			msg = "unknown_error"
		}
		return nil, fmt.Errorf("sidecar %s failed: %s", path, msg)
	}
	return out.Data, nil
}
