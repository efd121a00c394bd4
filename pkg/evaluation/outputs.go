package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mikeboe/paper-search/pkg/agent"
)

const DefaultOutputConcurrency = 5

// Output is the file written for one query by GenerateOutputs.
type Output struct {
	Query     string         `json:"query"`
	Response  *agent.Session `json:"response"`
	Timestamp string         `json:"timestamp"`
}

// GenerateOutputs runs every query and writes each session to
// dir/research-<timestamp>.json. Failures are logged and skipped; the
// written paths are returned in completion order.
func GenerateOutputs(ctx context.Context, runner Runner, queries []string, dir string, concurrency int, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = DefaultOutputConcurrency
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	total := len(queries)
	logger.Info("Generating outputs", "queries", total, "concurrency", concurrency, "dir", dir)

	paths := make(chan string, total)
	var completed atomic.Int32

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, q := range queries {
		if strings.TrimSpace(q) == "" {
			continue
		}
		g.Go(func() error {
			log := logger.With("index", i+1, "total", total)
			log.Info("Starting query", "query", q)

			path, err := writeOutput(ctx, runner, q, dir)
			n := completed.Add(1)
			if err != nil {
				log.Error("Failed to process query", "query", q, "error", err, "completed", n)
				return nil
			}
			paths <- path
			log.Info("Completed query", "query", q, "file", path, "completed", n)
			return nil
		})
	}
	g.Wait()
	close(paths)

	var out []string
	for p := range paths {
		out = append(out, p)
	}
	logger.Info("Finished generating outputs", "written", len(out), "total", total)
	return out, nil
}

func writeOutput(ctx context.Context, runner Runner, query, dir string) (string, error) {
	sess, err := runner.Run(ctx, query)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	data, err := json.MarshalIndent(Output{
		Query:     query,
		Response:  sess,
		Timestamp: now.Format(time.RFC3339Nano),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal output: %w", err)
	}

	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(now.Format("2006-01-02T15:04:05.000000000Z"))
	for attempt := 0; ; attempt++ {
		name := "research-" + stamp + ".json"
		if attempt > 0 {
			name = fmt.Sprintf("research-%s-%d.json", stamp, attempt)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create output file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write output file: %w", err)
		}
		return path, f.Close()
	}
}
