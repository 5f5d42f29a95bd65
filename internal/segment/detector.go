package segment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/labguard/internal/anthropic"
)

// ErrMalformedBoundaries is returned when the model reply holds no usable
// boundary list.
var ErrMalformedBoundaries = errors.New("malformed boundary response")

// Completer is the subset of the Anthropic client the detector needs.
type Completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (string, error)
}

// LLMDetector asks a language model for experiment start indices.
type LLMDetector struct {
	llm       Completer
	maxTokens int
	logger    *slog.Logger
}

func NewLLMDetector(llm Completer, logger *slog.Logger) *LLMDetector {
	return &LLMDetector{llm: llm, maxTokens: 1024, logger: logger}
}

type boundaryResponse struct {
	Boundaries []float64 `json:"boundaries"`
}

func (d *LLMDetector) DetectBoundaries(ctx context.Context, sample Sample) ([]int, error) {
	if len(sample.Indices) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(boundaryUserPrompt, sample.ManualID, sample.Total, len(sample.Indices), sample.Text)
	messages := []anthropic.Message{
		{Role: "user", Content: prompt},
	}

	raw, err := d.llm.Complete(ctx, boundarySystemPrompt, messages, d.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("llm boundary detection: %w", err)
	}

	bounds, err := parseBoundaries(raw)
	if err != nil {
		d.logger.Error("failed to parse boundary response",
			"error", err,
			"raw", raw,
		)
		return nil, err
	}

	d.logger.Debug("boundaries detected", "boundaries", bounds, "chunks_sampled", len(sample.Indices))
	return bounds, nil
}

// parseBoundaries accepts {"boundaries":[...]} or a bare array, optionally
// wrapped in prose or a code fence. Non-integral numbers are dropped.
func parseBoundaries(raw string) ([]int, error) {
	var nums []float64

	if obj := extractJSON(raw, '{', '}'); obj != "" {
		var resp boundaryResponse
		if err := json.Unmarshal([]byte(obj), &resp); err == nil && resp.Boundaries != nil {
			nums = resp.Boundaries
		}
	}
	if nums == nil {
		arr := extractJSON(raw, '[', ']')
		if arr == "" {
			return nil, ErrMalformedBoundaries
		}
		if err := json.Unmarshal([]byte(arr), &nums); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBoundaries, err)
		}
	}

	out := make([]int, 0, len(nums))
	for _, n := range nums {
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			continue
		}
		out = append(out, int(n))
	}
	return out, nil
}

func extractJSON(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
