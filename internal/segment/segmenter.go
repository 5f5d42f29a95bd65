// Package segment splits an ordered sequence of manual chunks into
// contiguous experiments and labels every chunk with its experiment id.
package segment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Metadata keys written or read by the segmenter.
const (
	MetaManualID     = "manual_id"
	MetaPageNum      = "page_num"
	MetaChunkIdx     = "chunk_idx"
	MetaSource       = "source"
	MetaExperimentID = "experiment_id"
)

// Chunk is one text chunk of an uploaded manual. Order within a slice is
// the only contiguity signal.
type Chunk struct {
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata"`
	ExperimentID string         `json:"experiment_id,omitempty"`
}

// Detector returns the chunk indices it believes start a new experiment.
// Output is treated as untrusted.
type Detector interface {
	DetectBoundaries(ctx context.Context, sample Sample) ([]int, error)
}

type Segmenter struct {
	detector Detector
	opts     SampleOptions
	logger   *slog.Logger
}

// New creates a Segmenter. A nil detector labels every manual as a single
// experiment.
func New(detector Detector, opts SampleOptions, logger *slog.Logger) *Segmenter {
	return &Segmenter{detector: detector, opts: opts, logger: logger}
}

// ExperimentID formats the id of the i-th (zero based) experiment of a manual.
func ExperimentID(manualID string, i int) string {
	return fmt.Sprintf("%s_exp%02d", manualID, i+1)
}

// AssignExperimentIDs labels each chunk in place and returns the chunks
// together with the distinct ids assigned. The ids are in experiment order,
// which is also chunk order; past 99 experiments this differs from string
// order ("m_exp100" follows "m_exp99"). Detection failures degrade to a
// single experiment and are never returned.
func (s *Segmenter) AssignExperimentIDs(ctx context.Context, chunks []Chunk, manualID string) ([]Chunk, []string) {
	if len(chunks) == 0 {
		return chunks, nil
	}

	raw := s.detect(ctx, chunks, manualID)
	bounds := NormalizeBoundaries(raw, len(chunks))

	ids := make([]string, 0, len(bounds))
	for i, start := range bounds {
		end := len(chunks)
		if i+1 < len(bounds) {
			end = bounds[i+1]
		}
		id := ExperimentID(manualID, i)
		ids = append(ids, id)
		for j := start; j < end; j++ {
			label(&chunks[j], id)
		}
	}

	s.logger.Info("manual segmented",
		"manual_id", manualID,
		"chunks", len(chunks),
		"experiments", len(ids),
	)
	return chunks, ids
}

func (s *Segmenter) detect(ctx context.Context, chunks []Chunk, manualID string) (bounds []int) {
	if s.detector == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("boundary detection panicked, using single experiment",
				"manual_id", manualID, "panic", fmt.Sprint(r))
			bounds = nil
		}
	}()

	sample := BuildSample(chunks, s.opts)
	sample.ManualID = manualID
	found, err := s.detector.DetectBoundaries(ctx, sample)
	if err != nil {
		s.logger.Warn("boundary detection failed, using single experiment",
			"manual_id", manualID, "error", err)
		return nil
	}
	return found
}

// NormalizeBoundaries drops indices outside [0, n), sorts and dedupes the
// rest and makes sure 0 comes first. The result is never empty.
func NormalizeBoundaries(raw []int, n int) []int {
	out := []int{0}
	if n <= 0 {
		return out
	}

	valid := make([]int, 0, len(raw))
	for _, b := range raw {
		if b > 0 && b < n {
			valid = append(valid, b)
		}
	}
	sort.Ints(valid)

	for _, b := range valid {
		if b != out[len(out)-1] {
			out = append(out, b)
		}
	}
	return out
}

func label(c *Chunk, id string) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any, 1)
	}
	c.Metadata[MetaExperimentID] = id
	c.ExperimentID = id
}
