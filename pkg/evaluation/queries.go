// Package evaluation runs the agent over labeled queries, scores the reported
// ids against ground truth and renders the results.
package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/mikeboe/paper-search/pkg/domain"
)

// Query is one labeled research question.
type Query struct {
	Query  string   `json:"query" yaml:"query"`
	Papers []string `json:"papers" yaml:"papers"`
}

// LoadQueries reads a JSON or YAML list of queries, chosen by file extension.
// A plain-text file is read as one unlabeled query per line.
func LoadQueries(path string) ([]Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read queries file: %w", err)
	}

	var queries []Query
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &queries)
	case ".txt":
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
				queries = append(queries, Query{Query: line})
			}
		}
	default:
		err = json.Unmarshal(data, &queries)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse queries file %s: %w", path, err)
	}

	for i, q := range queries {
		if strings.TrimSpace(q.Query) == "" {
			return nil, fmt.Errorf("%w: query %d in %s is empty", domain.ErrInvalidInput, i+1, path)
		}
	}
	return queries, nil
}
