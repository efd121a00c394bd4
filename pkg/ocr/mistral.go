// Package ocr extracts page text from PDF documents with the Mistral OCR API.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mikeboe/paper-search/pkg/domain"
	"github.com/mikeboe/paper-search/pkg/papers"
)

const (
	DefaultBaseURL = "https://api.mistral.ai/v1/ocr"
	DefaultModel   = "mistral-ocr-latest"
)

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

type Client struct {
	apiKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		BaseURL:    DefaultBaseURL,
		Model:      DefaultModel,
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// ExtractPages returns the markdown of every page of the PDF at documentURL,
// numbered from 1. Blank pages are dropped.
func (c *Client) ExtractPages(ctx context.Context, documentURL string) ([]papers.PageText, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: MISTRAL_API_KEY is not set", domain.ErrInvalidInput)
	}
	documentURL = strings.Replace(documentURL, "http://", "https://", 1)

	reqBody, err := json.Marshal(map[string]any{
		"model": c.Model,
		"document": map[string]string{
			"type":         "document_url",
			"document_url": documentURL,
		},
		"include_image_base64": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.UpstreamError{Service: "Mistral OCR", Status: resp.StatusCode, Body: string(body)}
	}

	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OCR response: %w", err)
	}

	pages := make([]papers.PageText, 0, len(parsed.Pages))
	for _, p := range parsed.Pages {
		if strings.TrimSpace(p.Markdown) == "" {
			continue
		}
		pages = append(pages, papers.PageText{PageNumber: p.Index + 1, Text: p.Markdown})
	}
	return pages, nil
}
