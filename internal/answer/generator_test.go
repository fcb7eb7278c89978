package answer

import (
	"context"
	"strings"
	"testing"

	"github.com/hyperjump/contexter/internal/config"
	"github.com/hyperjump/contexter/internal/models"
)

func TestFallbackGenerator_NoEvidence(t *testing.T) {
	got := FallbackGenerator{}.Answer(context.Background(), "what?", nil)
	if got != NoEvidenceMessage {
		t.Errorf("got %q", got)
	}
}

func TestFallbackGenerator_Summary(t *testing.T) {
	evidence := []models.Evidence{
		{Text: strings.Repeat("a", 250), Score: 0.9},
		{Text: strings.Repeat("b", 250), Score: 0.8},
		{Text: "third is never quoted", Score: 0.1},
	}
	got := FallbackGenerator{}.Answer(context.Background(), "letters", evidence)

	if !strings.HasPrefix(got, `Based on the documents in my knowledge base, here's what I found related to your question: "letters"`) {
		t.Errorf("missing header: %q", got)
	}
	// 200 a's, a space, then the first 99 b's: 300 characters.
	want := strings.Repeat("a", 200) + " " + strings.Repeat("b", 99) + "..."
	if !strings.Contains(got, "\n\n"+want+"\n\n") {
		t.Errorf("summary not truncated to 300 characters: %q", got)
	}
	if strings.Contains(got, "third") {
		t.Error("only the top two evidence texts are quoted")
	}
	if !strings.Contains(got, "fallback response") {
		t.Error("missing fallback note")
	}
}

func TestFallbackGenerator_ShortEvidenceStillEllipsized(t *testing.T) {
	got := FallbackGenerator{}.Answer(context.Background(), "q", []models.Evidence{{Text: "hello world."}})
	if !strings.Contains(got, "\n\nhello world....\n\n") {
		t.Errorf("got %q", got)
	}
}

func TestBuildContext(t *testing.T) {
	texts := []string{"aaaa", "bbbb", "cccc"}
	tests := []struct {
		name      string
		maxTokens int
		want      string
	}{
		{"unbounded", 0, "aaaa\n\nbbbb\n\ncccc"},
		{"fits two", 3, "aaaa\n\nbbbb"},
		{"fits one", 1, "aaaa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildContext(texts, tt.maxTokens, EstimateCounter{}); got != tt.want {
				t.Errorf("BuildContext() = %q, want %q", got, tt.want)
			}
		})
	}

	long := strings.Repeat("x", 40)
	if got := BuildContext([]string{long}, 5, nil); got != strings.Repeat("x", 20) {
		t.Errorf("trimmed first text = %q", got)
	}
}

func TestEstimateCounter(t *testing.T) {
	c := EstimateCounter{}
	for text, want := range map[string]int{"": 0, "a": 1, "abcd": 1, "abcde": 2, "éééé": 1} {
		if got := c.Count(text); got != want {
			t.Errorf("Count(%q) = %d, want %d", text, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	t.Setenv("CONTEXTER_TEST_EMPTY_KEY", "")
	tests := []struct {
		name     string
		cfg      config.GenerationConfig
		fallback bool
		wantErr  bool
	}{
		{"none", config.GenerationConfig{Provider: "none"}, true, false},
		{"openai without key", config.GenerationConfig{Provider: "openai", APIKeyEnv: "CONTEXTER_TEST_EMPTY_KEY"}, true, false},
		{"unknown", config.GenerationConfig{Provider: "llama"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(&tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if _, ok := g.(FallbackGenerator); ok != tt.fallback {
				t.Errorf("fallback = %v, want %v", ok, tt.fallback)
			}
		})
	}
}
