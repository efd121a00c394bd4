// Package tools defines the closed tool catalogue offered to the model,
// decodes tool-call arguments into typed variants, runs the calls of one
// agent turn and renders their results as <doc> blocks.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mikeboe/paper-search/pkg/domain"
	"github.com/mikeboe/paper-search/pkg/search"
)

const (
	NameSearch     = "search"
	NameTextSearch = "text_search"
	NameRead       = "read"
	NameReport     = "report_helpful_ids"
)

const (
	DefaultSearchLimit     = 10
	MaxSearchLimit         = 15
	DefaultTextSearchLimit = 10
	MaxTextSearchLimit     = 50
	DefaultPageNumber      = 1
)

// Args is one decoded tool call. The concrete type is one of *SearchArgs,
// *TextSearchArgs, *ReadArgs or *ReportArgs.
type Args interface {
	ToolName() string
}

type SearchArgs struct {
	Query string     `json:"query"`
	Limit flexInt    `json:"limit"`
	After *time.Time `json:"-"`
}

type TextSearchArgs struct {
	Query  string     `json:"query"`
	Limit  flexInt    `json:"limit"`
	After  *time.Time `json:"-"`
	Before *time.Time `json:"-"`
}

type ReadArgs struct {
	ID         string  `json:"id"`
	PageNumber flexInt `json:"pageNumber"`
}

type ReportArgs struct {
	IDs []string `json:"ids"`
}

func (*SearchArgs) ToolName() string     { return NameSearch }
func (*TextSearchArgs) ToolName() string { return NameTextSearch }
func (*ReadArgs) ToolName() string       { return NameRead }
func (*ReportArgs) ToolName() string     { return NameReport }

// flexInt decodes a JSON number or a numeric string.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "" {
			return nil
		}
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("not an integer: %q", s)
		}
		*n = flexInt(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	// Out-of-range values saturate so clamp sees their sign.
	switch {
	case f >= math.MaxInt32:
		*n = math.MaxInt32
	case f <= math.MinInt32:
		*n = math.MinInt32
	default:
		*n = flexInt(f)
	}
	return nil
}

type dateBounds struct {
	After  string `json:"after"`
	Before string `json:"before"`
}

// Parse decodes raw into the argument variant for name. Undecodable
// arguments yield a *domain.ArgumentParseError and names outside the
// catalogue yield domain.ErrUnknownTool.
func Parse(name, raw string) (Args, error) {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}

	switch name {
	case NameSearch:
		var a SearchArgs
		var d dateBounds
		if err := decode(name, raw, &a, &d); err != nil {
			return nil, err
		}
		after, err := parseDate(name, d.After)
		if err != nil {
			return nil, err
		}
		a.After = after
		a.Limit = clamp(a.Limit, DefaultSearchLimit, MaxSearchLimit)
		return &a, nil

	case NameTextSearch:
		var a TextSearchArgs
		var d dateBounds
		if err := decode(name, raw, &a, &d); err != nil {
			return nil, err
		}
		after, err := parseDate(name, d.After)
		if err != nil {
			return nil, err
		}
		before, err := parseDate(name, d.Before)
		if err != nil {
			return nil, err
		}
		a.After, a.Before = after, before
		a.Limit = clamp(a.Limit, DefaultTextSearchLimit, MaxTextSearchLimit)
		return &a, nil

	case NameRead:
		var a ReadArgs
		if err := decode(name, raw, &a); err != nil {
			return nil, err
		}
		if a.PageNumber <= 0 {
			a.PageNumber = DefaultPageNumber
		}
		return &a, nil

	case NameReport:
		var a ReportArgs
		if err := decode(name, raw, &a); err != nil {
			return nil, err
		}
		if a.IDs == nil {
			a.IDs = []string{}
		}
		return &a, nil
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTool, name)
}

func decode(name, raw string, targets ...any) error {
	for _, target := range targets {
		if err := json.Unmarshal([]byte(raw), target); err != nil {
			return &domain.ArgumentParseError{Tool: name, Err: err}
		}
	}
	return nil
}

func parseDate(name, s string) (*time.Time, error) {
	t, err := search.ParseDate(s)
	if err != nil {
		return nil, &domain.ArgumentParseError{Tool: name, Err: err}
	}
	return t, nil
}

func clamp(v flexInt, def, upper int) flexInt {
	if v <= 0 {
		return flexInt(def)
	}
	if int(v) > upper {
		return flexInt(upper)
	}
	return v
}
