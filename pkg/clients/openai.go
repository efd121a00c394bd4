// Package clients builds the outbound chat-completion client.
package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const DefaultTimeout = 2 * time.Minute

// NewChatClient returns an OpenAI-compatible client for baseURL. userAgent,
// when set, replaces the default User-Agent on every request.
func NewChatClient(baseURL, apiKey, userAgent string, timeout time.Duration) (*openai.Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("LLM base URL is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{
			base:      &assistantContentTransport{base: http.DefaultTransport},
			userAgent: userAgent,
		},
	}

	return openai.NewClientWithConfig(cfg), nil
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// assistantContentTransport adds "content":"" to assistant messages that
// only carry tool calls. The client drops empty content from the payload
// and some compatible servers reject assistant messages without it.
type assistantContentTransport struct {
	base http.RoundTripper
}

func (t *assistantContentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || req.Body == nil || !strings.HasSuffix(req.URL.Path, "/chat/completions") {
		return t.base.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat request body: %w", err)
	}
	if patched, ok := fillAssistantContent(body); ok {
		body = patched
	}

	req = req.Clone(req.Context())
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return t.base.RoundTrip(req)
}

// fillAssistantContent reports false when body is left unchanged.
func fillAssistantContent(body []byte) ([]byte, bool) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false
	}
	var messages []map[string]json.RawMessage
	if err := json.Unmarshal(payload["messages"], &messages); err != nil {
		return nil, false
	}

	changed := false
	for _, m := range messages {
		if _, ok := m["content"]; ok {
			continue
		}
		if string(m["role"]) == `"`+openai.ChatMessageRoleAssistant+`"` {
			m["content"] = json.RawMessage(`""`)
			changed = true
		}
	}
	if !changed {
		return nil, false
	}

	raw, err := json.Marshal(messages)
	if err != nil {
		return nil, false
	}
	payload["messages"] = raw
	out, err := json.Marshal(payload)
	if err != nil {
		return nil, false
	}
	return out, true
}
