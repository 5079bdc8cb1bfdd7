package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// UploadFileStream pushes a reference image to the kie upload host and
// returns a URL the generation payloads can embed.
func (c *Client) UploadFileStream(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	fullURL := c.uploadBase + "/api/file-stream-upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, &buf)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UnavailableError{Err: err}
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UnavailableError{Err: err}
	}

	var uploadResp struct {
		Code int             `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &uploadResp); err != nil {
		return "", &ProtocolError{StatusCode: resp.StatusCode, Body: truncateBody(rawBody)}
	}
	if uploadResp.Code != 200 {
		return "", &RejectedError{Code: uploadResp.Code, Message: uploadResp.Msg}
	}

	// data is either {"path": "..."} or a bare string.
	var path string
	var obj struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(uploadResp.Data, &obj); err == nil && obj.Path != "" {
		path = obj.Path
	} else if err := json.Unmarshal(uploadResp.Data, &path); err != nil || path == "" {
		return "", &ProtocolError{StatusCode: resp.StatusCode, Body: "upload missing path: " + truncateBody(rawBody)}
	}

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	return c.uploadBase + "/" + strings.TrimLeft(path, "/"), nil
}
