package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/digkill/aitrends-backend/internal/config"
)

// endpoints per dispatch target. The generic jobs API and the specialized
// families share the {code, msg, data} envelope but differ in paths.
var createPaths = map[DispatchTarget]string{
	TargetJobs:  "/api/v1/jobs/createTask",
	TargetGPT4o: "/api/v1/gpt4o-image/generate",
	TargetVeo:   "/api/v1/veo/generate",
}

var pollPaths = map[DispatchTarget]string{
	TargetJobs:  "/api/v1/jobs/recordInfo",
	TargetGPT4o: "/api/v1/gpt4o-image/details",
	TargetVeo:   "/api/v1/veo/record-info",
}

type Client struct {
	apiKey      string
	baseURL     string
	uploadBase  string
	callbackURL string
	httpClient  *http.Client
	log         *slog.Logger
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Client{
		apiKey:      cfg.KIEAPIKey,
		baseURL:     strings.TrimRight(cfg.KIEBaseURL, "/"),
		uploadBase:  strings.TrimRight(cfg.KIEFileUploadBase, "/"),
		callbackURL: cfg.KIECallbackURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// CreateTask submits an adapted payload to the endpoint its target selects
// and returns the provider task id. No retries: the caller owns balance state
// and must not double-submit.
func (c *Client) CreateTask(ctx context.Context, p Payload) (string, error) {
	path, ok := createPaths[p.Target]
	if !ok {
		return "", &AdapterError{Reason: fmt.Sprintf("target %q has no provider endpoint", p.Target)}
	}

	body := p.Body
	if c.callbackURL != "" && p.Target == TargetJobs {
		body = make(map[string]any, len(p.Body)+1)
		for k, v := range p.Body {
			body[k] = v
		}
		body["callBackUrl"] = c.callbackURL
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	fullURL := c.baseURL + path
	c.log.Info("creating kie task", "url", fullURL, "model", p.Model, "target", p.Target)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UnavailableError{Err: err}
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UnavailableError{Err: err}
	}

	var createResp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			TaskID string `json:"taskId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &createResp); err != nil {
		c.log.Error("kie create task returned non-json", "status", resp.StatusCode, "body", truncateBody(rawBody))
		return "", &ProtocolError{StatusCode: resp.StatusCode, Body: truncateBody(rawBody)}
	}

	if resp.StatusCode >= 300 {
		c.log.Error("kie create task failed", "status", resp.StatusCode, "url", fullURL, "body", truncateBody(rawBody))
		return "", &ProtocolError{StatusCode: resp.StatusCode, Body: truncateBody(rawBody)}
	}

	if createResp.Code != 200 {
		return "", &RejectedError{Code: createResp.Code, Message: createResp.Msg}
	}

	if createResp.Data.TaskID == "" {
		return "", &ProtocolError{StatusCode: resp.StatusCode, Body: "missing taskId: " + truncateBody(rawBody)}
	}

	c.log.Info("kie task created", "task_id", createResp.Data.TaskID)
	return createResp.Data.TaskID, nil
}

// PollTask fetches the raw poll response for a task. The body is returned as
// an untyped tree for the extractor; callers read state via State().
func (c *Client) PollTask(ctx context.Context, taskID string, target DispatchTarget) (map[string]any, error) {
	path, ok := pollPaths[target]
	if !ok {
		return nil, &AdapterError{Reason: fmt.Sprintf("target %q has no poll endpoint", target)}
	}

	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("parse poll url: %w", err)
	}
	params := url.Values{}
	params.Set("taskId", taskID)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}

	var record map[string]any
	if err := json.Unmarshal(rawBody, &record); err != nil {
		c.log.Error("kie poll returned non-json", "status", resp.StatusCode, "task_id", taskID, "body", truncateBody(rawBody))
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Body: truncateBody(rawBody)}
	}

	if resp.StatusCode >= 300 {
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Body: truncateBody(rawBody)}
	}

	return record, nil
}

// State reads the provider's own status field out of a poll response.
// Providers disagree on where it lives and how it is spelled; the result is
// lowercased. Empty when absent.
func State(record map[string]any) string {
	data := asMap(record["data"])
	for _, v := range []any{data["state"], data["status"], record["status"]} {
		if s, ok := v.(string); ok && s != "" {
			return strings.ToLower(s)
		}
	}
	// The gpt4o family reports completion as a numeric flag.
	if flag, ok := data["successFlag"].(float64); ok {
		switch int(flag) {
		case 1:
			return "success"
		case 2, 3:
			return "fail"
		default:
			return "generating"
		}
	}
	return ""
}

// FailMessage pulls the provider failure description, if any.
func FailMessage(record map[string]any) string {
	data := asMap(record["data"])
	for _, key := range []string{"failMsg", "errorMessage", "msg"} {
		if s, ok := data[key].(string); ok && s != "" {
			return s
		}
	}
	if s, ok := record["msg"].(string); ok {
		return s
	}
	return ""
}

// IsFailedState reports whether a provider state string is terminal-failed.
func IsFailedState(state string) bool {
	switch state {
	case "fail", "failed", "error", "cancelled", "canceled":
		return true
	}
	return false
}
