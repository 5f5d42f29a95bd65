package segment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/labguard/internal/anthropic"
)

func anthropicServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			System   string              `json:"system"`
			Messages []anthropic.Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if !strings.Contains(req.System, "boundaries") {
			t.Error("expected boundary system prompt")
		}
		if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "Manual: chem-101") {
			t.Errorf("expected manual id in user prompt, got %+v", req.Messages)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": reply},
			},
			"stop_reason": "end_turn",
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLLMDetector_Success(t *testing.T) {
	server := anthropicServer(t, `{"boundaries": [0, 4, 9]}`)

	llm := anthropic.NewClient("test-key", "test-model")
	llm.SetTestTransport(server.URL)

	det := NewLLMDetector(llm, discardLogger())
	sample := BuildSample(makeChunks(12), SampleOptions{})
	sample.ManualID = "chem-101"

	got, err := det.DetectBoundaries(context.Background(), sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []int{0, 4, 9}) {
		t.Errorf("expected [0 4 9], got %v", got)
	}
}

func TestLLMDetector_EndToEndWithSegmenter(t *testing.T) {
	server := anthropicServer(t, "Here you go:\n```json\n{\"boundaries\": [6, 2]}\n```")

	llm := anthropic.NewClient("test-key", "test-model")
	llm.SetTestTransport(server.URL)

	seg := New(NewLLMDetector(llm, discardLogger()), SampleOptions{}, discardLogger())
	chunks, ids := seg.AssignExperimentIDs(context.Background(), makeChunks(8), "chem-101")

	if len(ids) != 3 {
		t.Fatalf("expected 3 experiments, got %v", ids)
	}
	if chunks[1].ExperimentID != "chem-101_exp01" || chunks[2].ExperimentID != "chem-101_exp02" ||
		chunks[7].ExperimentID != "chem-101_exp03" {
		t.Errorf("unexpected labels: %v", labels(chunks))
	}
}

func TestLLMDetector_MalformedFallsBack(t *testing.T) {
	server := anthropicServer(t, "I could not find any experiments.")

	llm := anthropic.NewClient("test-key", "test-model")
	llm.SetTestTransport(server.URL)

	seg := New(NewLLMDetector(llm, discardLogger()), SampleOptions{}, discardLogger())
	chunks, ids := seg.AssignExperimentIDs(context.Background(), makeChunks(5), "chem-101")

	if len(ids) != 1 || ids[0] != "chem-101_exp01" {
		t.Fatalf("expected fallback to one experiment, got %v", ids)
	}
	for _, c := range chunks {
		if c.ExperimentID != "chem-101_exp01" {
			t.Fatalf("expected all chunks in chem-101_exp01, got %q", c.ExperimentID)
		}
	}
}

func TestLLMDetector_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	llm := anthropic.NewClient("test-key", "test-model")
	llm.SetTestTransport(server.URL)

	det := NewLLMDetector(llm, discardLogger())
	_, err := det.DetectBoundaries(context.Background(), BuildSample(makeChunks(2), SampleOptions{}))
	if err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestParseBoundaries(t *testing.T) {
	cases := []struct {
		raw     string
		want    []int
		wantErr bool
	}{
		{`{"boundaries":[0,3]}`, []int{0, 3}, false},
		{`[0, 2, 5]`, []int{0, 2, 5}, false},
		{`{"boundaries":[0, 2.5, 4.0]}`, []int{0, 4}, false},
		{`{"boundaries":[]}`, []int{}, false},
		{`nothing here`, nil, true},
		{`{"boundaries": "zero"}`, nil, true},
	}
	for _, tc := range cases {
		got, err := parseBoundaries(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrMalformedBoundaries) {
				t.Errorf("parseBoundaries(%q): expected ErrMalformedBoundaries, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseBoundaries(%q): unexpected error %v", tc.raw, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseBoundaries(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
