// Package agent runs the tool-calling loop between a chat model and the
// paper search tools until the model reports its ranked paper ids or the
// turn budget runs out.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/mikeboe/paper-search/pkg/domain"
	"github.com/mikeboe/paper-search/pkg/telemetry"
	"github.com/mikeboe/paper-search/pkg/tools"
)

const (
	DefaultMaxTurns = 10
	DefaultModel    = "sid-1"
)

// ChatModel is the part of *openai.Client the orchestrator uses.
type ChatModel interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ToolExecutor runs the tool calls of one turn. *tools.Dispatcher implements it.
type ToolExecutor interface {
	Execute(ctx context.Context, calls []openai.ToolCall) []tools.Result
}

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeReported    Outcome = telemetry.OutcomeReported
	OutcomeNoToolCalls Outcome = telemetry.OutcomeNoToolCalls
	OutcomeExhausted   Outcome = telemetry.OutcomeExhausted
)

// Session is the full record of one run. ReportedIDs is nil unless the
// model called report_helpful_ids.
type Session struct {
	Query       string                         `json:"query"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	Turns       int                            `json:"turns"`
	Outcome     Outcome                        `json:"outcome"`
	ReportedIDs []string                       `json:"reportedIds"`
}

// Terminated reports whether the model ended the session with a report call.
func (s *Session) Terminated() bool { return s.Outcome == OutcomeReported }

// Exhausted reports whether the turn budget ran out without a report.
func (s *Session) Exhausted() bool { return s.Outcome == OutcomeExhausted }

// Turn is passed to Orchestrator.OnTurn after each model response.
// Results is empty when the turn ended the session.
type Turn struct {
	Number  int
	Message openai.ChatCompletionMessage
	Results []tools.Result
}

type Orchestrator struct {
	model ChatModel
	tools ToolExecutor

	ModelName string
	MaxTurns  int
	Logger    *slog.Logger
	Metrics   *telemetry.Metrics
	// OnTurn, when set, is called synchronously after every turn.
	OnTurn func(Turn)
	Now    func() time.Time
}

func New(model ChatModel, executor ToolExecutor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		model:     model,
		tools:     executor,
		ModelName: DefaultModel,
		MaxTurns:  DefaultMaxTurns,
		Logger:    logger,
		Now:       time.Now,
	}
}

// Run drives one session for query. On error the partial session is
// returned alongside it.
func (o *Orchestrator) Run(ctx context.Context, query string) (*Session, error) {
	sess := &Session{
		Query: query,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(o.now())},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	}

	maxTurns := o.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	catalogue := tools.Catalogue()

	for sess.Outcome == "" && sess.Turns < maxTurns {
		sess.Turns++
		log := o.Logger.With("turn", sess.Turns)

		resp, err := o.model.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    o.ModelName,
			Messages: sess.Messages,
			Tools:    catalogue,
		})
		if err != nil {
			o.Metrics.ObserveSession(telemetry.OutcomeError, sess.Turns)
			return sess, modelError(err)
		}
		if len(resp.Choices) == 0 {
			o.Metrics.ObserveSession(telemetry.OutcomeError, sess.Turns)
			return sess, domain.ErrEmptyResponse
		}

		msg := resp.Choices[0].Message
		if msg.Role == "" {
			msg.Role = openai.ChatMessageRoleAssistant
		}
		sess.Messages = append(sess.Messages, msg)
		log.Debug("Model responded", "tool_calls", len(msg.ToolCalls), "content_length", len(msg.Content))

		if len(msg.ToolCalls) == 0 {
			sess.Outcome = OutcomeNoToolCalls
			o.notify(Turn{Number: sess.Turns, Message: msg})
			break
		}

		if ids, ok := reportedIDs(msg.ToolCalls); ok {
			sess.ReportedIDs = ids
			sess.Outcome = OutcomeReported
			log.Info("Model reported papers", "count", len(ids))
			o.notify(Turn{Number: sess.Turns, Message: msg})
			break
		}

		results := o.tools.Execute(ctx, msg.ToolCalls)
		for _, r := range results {
			sess.Messages = append(sess.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    r.Message(),
				ToolCallID: r.CallID,
			})
		}
		o.notify(Turn{Number: sess.Turns, Message: msg, Results: results})

		if err := ctx.Err(); err != nil {
			o.Metrics.ObserveSession(telemetry.OutcomeError, sess.Turns)
			return sess, err
		}
	}

	if sess.Outcome == "" {
		sess.Outcome = OutcomeExhausted
		o.Logger.Info("Turn budget exhausted without a report", "turns", sess.Turns)
	}
	o.Metrics.ObserveSession(string(sess.Outcome), sess.Turns)
	return sess, nil
}

// reportedIDs returns the ids of the first well-formed report call.
// A report call with undecodable arguments does not end the session; the
// dispatcher answers it with the parse error instead.
func reportedIDs(calls []openai.ToolCall) ([]string, bool) {
	for _, call := range calls {
		if !tools.IsReport(call) {
			continue
		}
		args, err := tools.Parse(call.Function.Name, call.Function.Arguments)
		if err != nil {
			continue
		}
		return args.(*tools.ReportArgs).IDs, true
	}
	return nil, false
}

func modelError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &domain.UpstreamError{Service: "chat completion", Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &domain.UpstreamError{Service: "chat completion", Status: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return fmt.Errorf("failed to create chat completion: %w", err)
}

func (o *Orchestrator) notify(t Turn) {
	if o.OnTurn != nil {
		o.OnTurn(t)
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
