package paint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	submitDialTimeout = 5 * time.Second
	submitReadTimeout = 40 * time.Second
	queryTimeout      = 8 * time.Second

	httpStatusInvalidRequest = 410
)

// remoteStatusFinished is the terminal status string the remote task API
// reports; anything else counts as still pending.
const remoteStatusFinished = "FINISHED"

// Client issues submit/query calls against the remote image-generation
// API. It is stateless and holds no retry policy; the poller owns all
// retry decisions.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewClient builds a client for the API rooted at baseURL. When
// httpClient is nil a default one with the bounded connect/read
// timeouts is used; tests inject an httptest client instead.
func NewClient(httpClient *http.Client, baseURL, apiKey string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: submitReadTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: submitDialTimeout}).DialContext,
			},
		}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
	}
}

type SubmitRequest struct {
	Kind          TaskKind
	Prompt        string
	Mode          TaskMode
	AutoTranslate bool
	ImgProxy      bool

	// Operation fields (upscale/variation/reset).
	ImgID string
	Index int
}

type Submission struct {
	TaskID     string
	RealPrompt string
}

// TaskState is one remote status observation.
type TaskState struct {
	Status string
	ImgID  string
	ImgURL string
}

func (s TaskState) Finished() bool { return s.Status == remoteStatusFinished }

type remoteEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    struct {
		TaskID     string `json:"task_id,omitempty"`
		RealPrompt string `json:"real_prompt,omitempty"`
		Status     string `json:"status,omitempty"`
		ImgID      string `json:"img_id,omitempty"`
		ImgURL     string `json:"img_url,omitempty"`
	} `json:"data"`
}

// Submit performs one outbound submit call. HTTP 410 maps to
// ErrInvalidRequest (malformed input, not worth resubmitting); any other
// non-success maps to *SubmissionError with the remote code and message.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (Submission, error) {
	var path string
	var payload any
	switch req.Kind {
	case KindGenerate:
		path = "/generate"
		payload = map[string]any{
			"prompt":         req.Prompt,
			"mode":           string(req.Mode),
			"auto_translate": req.AutoTranslate,
			"img_proxy":      req.ImgProxy,
		}
	case KindUpscale, KindVariation, KindReset:
		path = "/operate"
		payload = map[string]any{
			"type":      strings.ToUpper(string(req.Kind)),
			"img_id":    req.ImgID,
			"index":     req.Index,
			"img_proxy": req.ImgProxy,
		}
	default:
		return Submission{}, fmt.Errorf("unsupported task kind: %s", req.Kind)
	}

	raw, status, err := c.postJSON(ctx, path, payload)
	if err != nil {
		return Submission{}, &SubmissionError{Message: err.Error()}
	}
	var out remoteEnvelope
	if jsonErr := json.Unmarshal(raw, &out); jsonErr != nil {
		if status < 200 || status >= 300 {
			return Submission{}, &SubmissionError{StatusCode: status}
		}
		return Submission{}, &SubmissionError{StatusCode: status, Message: jsonErr.Error()}
	}
	if status == httpStatusInvalidRequest {
		if out.Message != "" {
			return Submission{}, fmt.Errorf("%w: %s", ErrInvalidRequest, out.Message)
		}
		return Submission{}, ErrInvalidRequest
	}
	if status < 200 || status >= 300 || out.Code != 200 {
		return Submission{}, &SubmissionError{StatusCode: status, Message: out.Message}
	}
	if strings.TrimSpace(out.Data.TaskID) == "" {
		return Submission{}, &SubmissionError{StatusCode: status, Message: "missing task_id"}
	}
	return Submission{TaskID: out.Data.TaskID, RealPrompt: out.Data.RealPrompt}, nil
}

// QueryStatus performs one status call for taskID. Every failure mode
// (transport, non-success, bad body) comes back as *QueryError so the
// poller can charge it against the retry budget.
func (c *Client) QueryStatus(ctx context.Context, taskID string) (TaskState, error) {
	reqCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	url := fmt.Sprintf("%s/tasks/%s", c.baseURL, taskID)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return TaskState{}, &QueryError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return TaskState{}, &QueryError{Err: err}
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return TaskState{}, &QueryError{StatusCode: resp.StatusCode, Err: readErr}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TaskState{}, &QueryError{StatusCode: resp.StatusCode, Err: fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}
	var out remoteEnvelope
	if err := json.Unmarshal(raw, &out); err != nil {
		return TaskState{}, &QueryError{StatusCode: resp.StatusCode, Err: err}
	}
	return TaskState{
		Status: out.Data.Status,
		ImgID:  out.Data.ImgID,
		ImgURL: out.Data.ImgURL,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp.StatusCode, readErr
	}
	return body, resp.StatusCode, nil
}
