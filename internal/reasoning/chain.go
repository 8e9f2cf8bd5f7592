// internal/reasoning/chain.go
package reasoning

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"carevault/internal/retrieval"
)

// Reasoning modes.
const (
	ModeGeneral      = "general"
	ModeMentalHealth = "mental_health"
	ModeSummary      = "summary"
)

// factualTemperature keeps generation close to the evidence.
const factualTemperature = 0.3

// Generator produces completions. Satisfied by *LLMClient; tests supply
// scripted stubs.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
	GenerateStringList(ctx context.Context, systemPrompt, userPrompt string) ([]string, error)
}

// Response is the structured output of the reasoning pipeline. It
// separates what is known (the answer) from what could not be concluded
// (HasContext false, the disclaimer).
type Response struct {
	AnswerText    string   `json:"answer_text"`
	HasContext    bool     `json:"has_context"`
	EvidenceCount int      `json:"evidence_count"`
	SourcesUsed   []string `json:"sources_used"`
	Disclaimer    string   `json:"disclaimer"`
	Query         string   `json:"query"`
	PatientID     string   `json:"patient_id"`
}

// Suggestions are follow-up questions for a clinician. Fallback is true
// when the list is the static default rather than model output.
type Suggestions struct {
	Questions []string `json:"questions"`
	Fallback  bool     `json:"fallback"`
}

// Phrases in a generated answer that mean the model judged the evidence
// insufficient despite chunks being retrieved.
var insufficiencyPhrases = []string{
	"Insufficient data",
	"do not contain relevant data",
	"No patient records matched",
	"wasn't discussed",
	"I don't have enough information",
}

var fallbackNoEvidence = []string{
	"What is the patient's primary complaint?",
	"Are there any known allergies?",
	"What current medications is the patient taking?",
}

var fallbackParseFailure = []string{
	"Review recent symptoms",
	"Check medication adherence",
	"Assess current mood",
}

// Chain generates evidence-grounded responses. It never performs
// retrieval itself; evidence comes from the retrieval layer.
//
// The model is never called without evidence: an empty evidence list
// short-circuits to a fixed safe response before any generation,
// regardless of modality. That check is the primary defense against
// fabricated medical information and must stay first in Reason.
type Chain struct {
	generator Generator
}

// NewChain wires the reasoning pipeline.
func NewChain(generator Generator) *Chain {
	return &Chain{generator: generator}
}

// Reason answers a query from ranked evidence. mode selects the prompt
// family: ModeGeneral, ModeMentalHealth, or ModeSummary.
func (c *Chain) Reason(ctx context.Context, patientID, query string, evidence []retrieval.Evidence, mode string) (*Response, error) {
	// No evidence means no generation. Return the fixed response.
	if len(evidence) == 0 {
		return &Response{
			AnswerText:    "Insufficient data in patient records to answer this question. No relevant memories were found.",
			HasContext:    false,
			EvidenceCount: 0,
			SourcesUsed:   []string{},
			Disclaimer:    "No patient records matched this query. Please consult with the healthcare provider directly.",
			Query:         query,
			PatientID:     patientID,
		}, nil
	}

	var systemPrompt, userPrompt string
	switch mode {
	case ModeMentalHealth:
		systemPrompt, userPrompt = buildMentalHealthPrompt(query, evidence)
	case ModeSummary:
		systemPrompt, userPrompt = buildSummaryPrompt(evidence)
	default:
		systemPrompt, userPrompt = buildQAPrompt(query, evidence)
	}

	answer, err := c.generator.Generate(ctx, systemPrompt, userPrompt, factualTemperature)
	if err != nil {
		return nil, fmt.Errorf("reasoning generation failed: %w", err)
	}

	answer = strings.TrimSpace(answer)
	insufficient := false
	for _, phrase := range insufficiencyPhrases {
		if strings.Contains(answer, phrase) {
			insufficient = true
			break
		}
	}

	resp := &Response{
		AnswerText: answer,
		HasContext: !insufficient,
		Disclaimer: SafetyDisclaimer,
		Query:      query,
		PatientID:  patientID,
	}
	if insufficient {
		resp.SourcesUsed = []string{}
	} else {
		resp.EvidenceCount = len(evidence)
		resp.SourcesUsed = distinctSources(evidence)
	}
	return resp, nil
}

// AnswerQuestion answers a general healthcare question.
func (c *Chain) AnswerQuestion(ctx context.Context, patientID, query string, evidence []retrieval.Evidence) (*Response, error) {
	return c.Reason(ctx, patientID, query, evidence, ModeGeneral)
}

// MentalHealthResponse generates an empathetic response from session notes.
func (c *Chain) MentalHealthResponse(ctx context.Context, patientID, query string, evidence []retrieval.Evidence) (*Response, error) {
	return c.Reason(ctx, patientID, query, evidence, ModeMentalHealth)
}

// SummarizeRecords summarizes a patient's records.
func (c *Chain) SummarizeRecords(ctx context.Context, patientID string, evidence []retrieval.Evidence) (*Response, error) {
	return c.Reason(ctx, patientID, "Summarize patient records", evidence, ModeSummary)
}

// SuggestFollowup proposes follow-up questions for a clinician. Falls
// back to static lists when there is no evidence or the model does not
// return parseable JSON.
func (c *Chain) SuggestFollowup(ctx context.Context, evidence []retrieval.Evidence) *Suggestions {
	if len(evidence) == 0 {
		return &Suggestions{Questions: fallbackNoEvidence, Fallback: true}
	}

	systemPrompt, userPrompt := buildSuggestionPrompt(evidence)
	questions, err := c.generator.GenerateStringList(ctx, systemPrompt, userPrompt)
	if err != nil || len(questions) == 0 {
		if err != nil {
			log.Printf("[Reasoning] follow-up suggestion failed, using fallback: %v", err)
		}
		return &Suggestions{Questions: fallbackParseFailure, Fallback: true}
	}
	return &Suggestions{Questions: questions}
}

func distinctSources(evidence []retrieval.Evidence) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, ev := range evidence {
		source := ev.Source
		if source == "" {
			source = "unknown"
		}
		if !seen[source] {
			seen[source] = true
			sources = append(sources, source)
		}
	}
	sort.Strings(sources)
	return sources
}
