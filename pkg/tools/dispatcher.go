package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/mikeboe/paper-search/pkg/search"
	"github.com/mikeboe/paper-search/pkg/telemetry"
)

const (
	DefaultMaxParallel = 8
	DefaultTimeout     = 30 * time.Second
)

// Result is the outcome of one tool call. Exactly one of Content and Err is meaningful.
type Result struct {
	CallID  string
	Name    string
	Content string
	Err     error
}

// Message is the text returned to the model for r.
func (r Result) Message() string {
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	if r.Content == "" {
		return "No content"
	}
	return r.Content
}

// Dispatcher executes tool calls against a search gateway.
type Dispatcher struct {
	gateway search.Gateway

	// MaxParallel caps concurrent calls within one Execute; 0 means unbounded.
	MaxParallel int
	// Timeout bounds each call; 0 disables it.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

func NewDispatcher(gateway search.Gateway, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		gateway:     gateway,
		MaxParallel: DefaultMaxParallel,
		Timeout:     DefaultTimeout,
		Logger:      logger,
	}
}

// Execute runs every call concurrently and returns one Result per call in
// call order. A failing call never affects its siblings.
func (d *Dispatcher) Execute(ctx context.Context, calls []openai.ToolCall) []Result {
	results := make([]Result, len(calls))

	var sem chan struct{}
	if d.MaxParallel > 0 {
		sem = make(chan struct{}, d.MaxParallel)
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call openai.ToolCall) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = d.executeOne(ctx, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) executeOne(ctx context.Context, call openai.ToolCall) (res Result) {
	res = Result{CallID: call.ID, Name: call.Function.Name}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Content = ""
			res.Err = fmt.Errorf("tool %s panicked: %v", call.Function.Name, r)
		}
		d.Metrics.ObserveToolCall(call.Function.Name, res.Err, time.Since(start))
		if res.Err != nil {
			d.Logger.Warn("Tool call failed", "tool", call.Function.Name, "call_id", call.ID, "error", res.Err)
		} else {
			d.Logger.Debug("Tool call finished", "tool", call.Function.Name, "call_id", call.ID, "duration", time.Since(start))
		}
	}()

	args, err := Parse(call.Function.Name, call.Function.Arguments)
	if err != nil {
		res.Err = err
		return res
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	res.Content, res.Err = d.Call(ctx, args)
	return res
}

// Call runs one decoded tool call and formats its output. A report call
// yields an empty result.
func (d *Dispatcher) Call(ctx context.Context, args Args) (string, error) {
	switch a := args.(type) {
	case *SearchArgs:
		results, err := d.gateway.Semantic(ctx, a.Query, search.SemanticOptions{
			Limit: int(a.Limit),
			After: a.After,
		})
		if err != nil {
			return "", fmt.Errorf("semantic search failed: %w", err)
		}
		return FormatEmbeddingResults(results), nil

	case *TextSearchArgs:
		results, err := d.gateway.Keyword(ctx, a.Query, search.KeywordOptions{
			MaxPapers: int(a.Limit),
			After:     a.After,
			Before:    a.Before,
		})
		if err != nil {
			return "", fmt.Errorf("keyword search failed: %w", err)
		}
		return FormatKeywordResults(results), nil

	case *ReadArgs:
		page, err := d.gateway.ReadPage(ctx, a.ID, int(a.PageNumber))
		if err != nil {
			return "", fmt.Errorf("read failed: %w", err)
		}
		return FormatPage(page), nil

	case *ReportArgs:
		return "", nil
	}

	return "", fmt.Errorf("unsupported tool arguments %T", args)
}
