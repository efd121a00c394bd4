package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikeboe/paper-search/pkg/agent"
	"github.com/mikeboe/paper-search/pkg/domain"
	"github.com/mikeboe/paper-search/pkg/papers"
	"github.com/mikeboe/paper-search/pkg/search"
	"github.com/mikeboe/paper-search/pkg/tools"
)

// PaperReader is the lookup side of *papers.Store.
type PaperReader interface {
	GetPaperByUniversalID(ctx context.Context, universalID string) (*papers.Paper, error)
	GetFullPaper(ctx context.Context, universalID string) (*papers.FullPaper, error)
}

// AgentRunner runs one agent session. *agent.Orchestrator implements it.
type AgentRunner interface {
	Run(ctx context.Context, query string) (*agent.Session, error)
}

// ToolCaller runs one decoded tool call. *tools.Dispatcher implements it.
type ToolCaller interface {
	Call(ctx context.Context, args tools.Args) (string, error)
}

// Service bundles what the HTTP and MCP surfaces serve. Papers and Agent
// may be nil, in which case their routes answer 503.
type Service struct {
	Search search.Gateway
	Papers PaperReader
	Agent  AgentRunner
	Tools  ToolCaller
}

func NewService(gateway search.Gateway, reader PaperReader, runner AgentRunner, caller ToolCaller) *Service {
	return &Service{
		Search: gateway,
		Papers: reader,
		Agent:  runner,
		Tools:  caller,
	}
}

// CallTool decodes raw arguments for the named tool and runs it.
// report_helpful_ids is agent-only and rejected here.
func (s *Service) CallTool(ctx context.Context, name, raw string) (string, error) {
	if name == tools.NameReport {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownTool, name)
	}
	args, err := tools.Parse(name, raw)
	if err != nil {
		return "", err
	}
	return s.Tools.Call(ctx, args)
}

// RunAgent validates query before handing it to the agent.
func (s *Service) RunAgent(ctx context.Context, query string) (*agent.Session, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	return s.Agent.Run(ctx, query)
}
