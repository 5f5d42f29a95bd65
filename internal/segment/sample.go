package segment

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	DefaultSampleTokens = 6000
	DefaultPreviewChars = 300
)

// TokenCounter counts model tokens in a string.
type TokenCounter interface {
	Count(text string) int
}

type SampleOptions struct {
	MaxTokens    int
	PreviewChars int
	Counter      TokenCounter
}

// Sample is the size-bounded text handed to a Detector. Indices lists the
// chunk indices that made it into Text, in order.
type Sample struct {
	ManualID string
	Text     string
	Indices  []int
	Total    int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

type approxCounter struct{}

// Count assumes roughly four characters per token.
func (approxCounter) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// NewTokenCounter returns a cl100k_base counter, or a character based
// estimate when the encoding cannot be loaded.
func NewTokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return approxCounter{}
	}
	return tiktokenCounter{enc: enc}
}

// BuildSample renders one preview line per chunk until the token budget is
// spent. The first chunk is always included.
func BuildSample(chunks []Chunk, opts SampleOptions) Sample {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultSampleTokens
	}
	if opts.PreviewChars <= 0 {
		opts.PreviewChars = DefaultPreviewChars
	}
	if opts.Counter == nil {
		opts.Counter = approxCounter{}
	}

	s := Sample{Total: len(chunks)}
	var sb strings.Builder
	used := 0
	for i, c := range chunks {
		line := previewLine(i, c, opts.PreviewChars)
		cost := opts.Counter.Count(line)
		if len(s.Indices) > 0 && used+cost > opts.MaxTokens {
			break
		}
		sb.WriteString(line)
		used += cost
		s.Indices = append(s.Indices, i)
	}
	s.Text = sb.String()
	return s
}

func previewLine(i int, c Chunk, limit int) string {
	text := strings.Join(strings.Fields(c.Content), " ")
	if utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit]) + "..."
	}
	if page, ok := c.Metadata[MetaPageNum]; ok {
		return fmt.Sprintf("[%d] (p.%v) %s\n", i, page, text)
	}
	return fmt.Sprintf("[%d] %s\n", i, text)
}
