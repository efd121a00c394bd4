package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/paper-search/pkg/tools"
)

type searchInput struct {
	Query string `json:"query" jsonschema:"natural language description of the papers to find"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of papers to return, at most 15"`
	After string `json:"after,omitempty" jsonschema:"only papers published on or after this date, YYYY-MM-DD"`
}

type textSearchInput struct {
	Query  string `json:"query" jsonschema:"keyword or phrase matched against the full text of every page"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of papers to return, at most 50"`
	After  string `json:"after,omitempty" jsonschema:"only papers published on or after this date, YYYY-MM-DD"`
	Before string `json:"before,omitempty" jsonschema:"only papers published on or before this date, YYYY-MM-DD"`
}

type readInput struct {
	ID         string `json:"id" jsonschema:"universal id of the paper, e.g. an arXiv id"`
	PageNumber int    `json:"pageNumber,omitempty" jsonschema:"page to read, starting at 1"`
}

// NewMCPServer exposes the retrieval tools of the catalogue over MCP.
func NewMCPServer(s *Service, version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "paper-search", Version: version}, nil)

	addTool[searchInput](srv, s, tools.NameSearch,
		"Semantic search over paper abstracts. Returns papers ranked by similarity to the query.")
	addTool[textSearchInput](srv, s, tools.NameTextSearch,
		"Full-text keyword search over paper pages. Returns matching snippets grouped by paper.")
	addTool[readInput](srv, s, tools.NameRead,
		"Read one page of a paper by universal id.")

	return srv
}

// NewMCPHandler serves srv over the streamable HTTP transport.
func NewMCPHandler(srv *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
}

// addTool registers name so that its input goes through the same argument
// decoding as a model tool call. Tool failures are reported in the result.
func addTool[In any](srv *mcp.Server, s *Service, name, description string) {
	mcp.AddTool(srv, &mcp.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
			raw, err := json.Marshal(in)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to encode %s arguments: %w", name, err)
			}

			content, err := s.CallTool(ctx, name, string(raw))
			res := tools.Result{Name: name, Content: content, Err: err}
			return &mcp.CallToolResult{
				IsError: err != nil,
				Content: []mcp.Content{&mcp.TextContent{Text: res.Message()}},
			}, nil, nil
		})
}
