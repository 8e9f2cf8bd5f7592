package reasoning

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"carevault/internal/memory"
	"carevault/internal/retrieval"
)

type stubGenerator struct {
	answer        string
	listAnswer    []string
	err           error
	calls         int
	listCalls     int
	lastSystem    string
	lastUser      string
	lastTemp      float64
	lastListUser  string
}

func (s *stubGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	s.calls++
	s.lastSystem = systemPrompt
	s.lastUser = userPrompt
	s.lastTemp = temperature
	return s.answer, s.err
}

func (s *stubGenerator) GenerateStringList(ctx context.Context, systemPrompt, userPrompt string) ([]string, error) {
	s.listCalls++
	s.lastListUser = userPrompt
	return s.listAnswer, s.err
}

func sampleEvidence() []retrieval.Evidence {
	return []retrieval.Evidence{
		{
			Content:    "Blood pressure 130/85, patient reports dizziness in the morning.",
			Confidence: 0.9,
			MemoryType: memory.TypeClinical,
			Source:     "conversation",
			Modality:   memory.ModalityText,
			CreatedAt:  time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
			PointID:    "ev-1",
		},
		{
			Content:    "Started lisinopril 10mg daily.",
			Confidence: 0.7,
			MemoryType: memory.TypeMedication,
			Source:     "pdf",
			Modality:   memory.ModalityDocument,
			CreatedAt:  time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC),
			PointID:    "ev-2",
		},
	}
}

func TestReasonEmptyEvidenceNeverGenerates(t *testing.T) {
	gen := &stubGenerator{answer: "should never appear"}
	chain := NewChain(gen)

	resp, err := chain.Reason(context.Background(), "patient-1", "any meds?", nil, ModeGeneral)
	if err != nil {
		t.Fatalf("reason failed: %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("generator called %d times with empty evidence; must be 0", gen.calls)
	}
	if resp.HasContext {
		t.Errorf("empty evidence must yield has_context=false")
	}
	if !strings.Contains(resp.AnswerText, "Insufficient data") {
		t.Errorf("expected fixed insufficient-data answer, got %q", resp.AnswerText)
	}
	if resp.EvidenceCount != 0 || len(resp.SourcesUsed) != 0 {
		t.Errorf("empty evidence must report zero sources: %+v", resp)
	}
}

func TestReasonGroundsPromptInEvidence(t *testing.T) {
	gen := &stubGenerator{answer: "The patient takes lisinopril 10mg daily."}
	chain := NewChain(gen)

	resp, err := chain.AnswerQuestion(context.Background(), "patient-1", "what medication?", sampleEvidence())
	if err != nil {
		t.Fatalf("reason failed: %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("expected one generation, got %d", gen.calls)
	}
	if gen.lastTemp != factualTemperature {
		t.Errorf("expected temperature %v, got %v", factualTemperature, gen.lastTemp)
	}
	if !strings.Contains(gen.lastUser, "lisinopril 10mg") {
		t.Errorf("evidence content missing from prompt")
	}
	if !strings.Contains(gen.lastUser, "Confidence: 70%") {
		t.Errorf("confidence percentage missing from prompt: %q", gen.lastUser)
	}
	if !strings.Contains(gen.lastSystem, "Do NOT make medical diagnoses") {
		t.Errorf("wrong system prompt for general mode")
	}
	if !resp.HasContext || resp.EvidenceCount != 2 {
		t.Errorf("expected grounded response, got %+v", resp)
	}
	// Sources deduplicated and sorted.
	if len(resp.SourcesUsed) != 2 || resp.SourcesUsed[0] != "conversation" || resp.SourcesUsed[1] != "pdf" {
		t.Errorf("unexpected sources: %v", resp.SourcesUsed)
	}
	if resp.Disclaimer != SafetyDisclaimer {
		t.Errorf("disclaimer missing")
	}
}

func TestReasonDowngradesInsufficientAnswers(t *testing.T) {
	for _, phrase := range []string{
		"Insufficient data in patient records",
		"The records do not contain relevant data about this.",
		"This wasn't discussed in the available session notes",
	} {
		gen := &stubGenerator{answer: phrase}
		chain := NewChain(gen)

		resp, err := chain.AnswerQuestion(context.Background(), "patient-1", "q", sampleEvidence())
		if err != nil {
			t.Fatalf("reason failed: %v", err)
		}
		if resp.HasContext {
			t.Errorf("answer %q should downgrade has_context", phrase)
		}
		if resp.EvidenceCount != 0 || len(resp.SourcesUsed) != 0 {
			t.Errorf("insufficient answer must clear evidence stats: %+v", resp)
		}
	}
}

func TestReasonModeSelectsPrompt(t *testing.T) {
	gen := &stubGenerator{answer: "ok"}
	chain := NewChain(gen)

	if _, err := chain.MentalHealthResponse(context.Background(), "patient-1", "how is mood?", sampleEvidence()); err != nil {
		t.Fatalf("reason failed: %v", err)
	}
	if !strings.Contains(gen.lastSystem, "mental health support assistant") {
		t.Errorf("mental health mode used wrong system prompt")
	}

	if _, err := chain.SummarizeRecords(context.Background(), "patient-1", sampleEvidence()); err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if !strings.Contains(gen.lastUser, "Summarize the following patient records") {
		t.Errorf("summary mode used wrong template")
	}
}

func TestReasonPropagatesGeneratorError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("backend down")}
	chain := NewChain(gen)

	if _, err := chain.AnswerQuestion(context.Background(), "patient-1", "q", sampleEvidence()); err == nil {
		t.Fatalf("expected error from failing generator")
	}
}

func TestSuggestFollowupFallbacks(t *testing.T) {
	// No evidence: static intake questions, no model call.
	gen := &stubGenerator{listAnswer: []string{"model question?"}}
	chain := NewChain(gen)

	sugg := chain.SuggestFollowup(context.Background(), nil)
	if !sugg.Fallback || gen.listCalls != 0 {
		t.Errorf("empty evidence must use fallback without generation: %+v calls=%d", sugg, gen.listCalls)
	}

	// Evidence present: model output used verbatim.
	sugg = chain.SuggestFollowup(context.Background(), sampleEvidence())
	if sugg.Fallback || len(sugg.Questions) != 1 || sugg.Questions[0] != "model question?" {
		t.Errorf("expected model suggestions, got %+v", sugg)
	}

	// Parse failure: static review list, marked fallback.
	gen = &stubGenerator{err: errors.New("not json")}
	chain = NewChain(gen)
	sugg = chain.SuggestFollowup(context.Background(), sampleEvidence())
	if !sugg.Fallback || len(sugg.Questions) == 0 {
		t.Errorf("parse failure must yield fallback list, got %+v", sugg)
	}
}

func TestFormatEvidenceImageReference(t *testing.T) {
	evidence := []retrieval.Evidence{{
		Content:    "wound photo, left forearm",
		Confidence: 1.0,
		MemoryType: memory.TypeClinical,
		Source:     "upload",
		Modality:   memory.ModalityImage,
		CreatedAt:  time.Now(),
	}}
	text := formatEvidence(evidence)
	if !strings.Contains(text, "[Image record: wound photo, left forearm]") {
		t.Errorf("image evidence must be passed by reference: %q", text)
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"[\"a\"]":                          "[\"a\"]",
		"```json\n[\"a\", \"b\"]\n```":     "[\"a\", \"b\"]",
		"```\n[\"a\"]\n```":                "[\"a\"]",
		"  [\"a\"]  ":                      "[\"a\"]",
	}
	for in, want := range cases {
		if got := stripCodeFence(in); got != want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
