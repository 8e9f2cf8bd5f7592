// internal/reasoning/prompts.go
package reasoning

import (
	"fmt"
	"strings"

	"carevault/internal/retrieval"
)

const systemPromptHealthcare = `You are a healthcare memory assistant helping to summarize patient information.

CRITICAL RULES:
1. Use ONLY the provided evidence from patient records
2. Do NOT introduce facts not present in the evidence
3. Do NOT make medical diagnoses or treatment recommendations
4. If evidence is insufficient, explicitly state "Insufficient data"
5. Always recommend consulting a healthcare professional for medical decisions

You help organize and summarize information; you do NOT provide medical advice.`

const systemPromptMentalHealth = `You are a mental health support assistant reviewing patient session notes.

CRITICAL RULES:
1. Use ONLY the provided evidence from session records
2. Do NOT introduce information not in the evidence
3. Be empathetic and supportive in tone
4. Do NOT diagnose mental health conditions
5. If asked about treatment, recommend consulting a licensed professional
6. If evidence is insufficient, say "I don't have enough information about this"

Your role is to help summarize and organize session information, not to provide therapy.`

const evidenceQAPrompt = `Based on the following patient records, answer the question.

=== PATIENT EVIDENCE ===
%s
========================

QUESTION: %s

INSTRUCTIONS:
- Answer ONLY using the evidence provided above
- If the evidence does not contain relevant information, say "Insufficient data in patient records"
- Do not speculate or add information not in the evidence
- Be concise and factual

ANSWER:`

const summarizeEvidencePrompt = `Summarize the following patient records into a coherent overview.

=== PATIENT EVIDENCE ===
%s
========================

INSTRUCTIONS:
- Summarize ONLY what is explicitly stated in the evidence
- Organize by topic (symptoms, treatments, observations)
- Do not add interpretation or information not present
- If records are limited, acknowledge what is and isn't known

SUMMARY:`

const mentalHealthPrompt = `Review the following mental health session notes and respond to the query.

=== SESSION NOTES ===
%s
====================

QUERY: %s

INSTRUCTIONS:
- Respond with empathy and support
- Use ONLY information from the session notes
- Do not diagnose or recommend specific treatments
- If notes don't address the query, say "This wasn't discussed in the available session notes"
- Encourage professional consultation for clinical concerns

RESPONSE:`

const suggestQuestionsPrompt = `Analyze the following patient records and suggest 3-4 specific, investigative questions a clinician might want to ask next.

=== PATIENT EVIDENCE ===
%s
========================

INSTRUCTIONS:
1. Suggest questions that explore gaps, follow up on symptoms, or track treatment efficacy.
2. Questions should be concise and clinical.
3. Return ONLY a JSON array of strings, e.g. ["Question 1?", "Question 2?"].
4. Do not include introductory text.

SUGGESTIONS:`

// SafetyDisclaimer is appended to every generated answer.
const SafetyDisclaimer = `---
**Disclaimer**: This summary is based on retrieved patient records and is for informational purposes only. It is not medical advice. Please consult a qualified healthcare professional for medical decisions.`

// formatEvidence renders ranked evidence as numbered blocks. Image
// evidence is passed by reference only; the model cannot see pixels.
func formatEvidence(evidence []retrieval.Evidence) string {
	if len(evidence) == 0 {
		return "[No evidence available]"
	}

	blocks := make([]string, 0, len(evidence))
	for i, ev := range evidence {
		content := ev.Content
		if ev.Modality == "image" {
			content = fmt.Sprintf("[Image record: %s]", ev.Content)
		}
		blocks = append(blocks, fmt.Sprintf(
			"[%d] Type: %s | Source: %s | Date: %s | Confidence: %.0f%%\n    %s",
			i+1,
			strings.ToUpper(ev.MemoryType),
			ev.Source,
			ev.CreatedAt.Format("2006-01-02"),
			ev.Confidence*100,
			content,
		))
	}
	return strings.Join(blocks, "\n\n")
}

func buildQAPrompt(question string, evidence []retrieval.Evidence) (string, string) {
	return systemPromptHealthcare, fmt.Sprintf(evidenceQAPrompt, formatEvidence(evidence), question)
}

func buildMentalHealthPrompt(question string, evidence []retrieval.Evidence) (string, string) {
	return systemPromptMentalHealth, fmt.Sprintf(mentalHealthPrompt, formatEvidence(evidence), question)
}

func buildSummaryPrompt(evidence []retrieval.Evidence) (string, string) {
	return systemPromptHealthcare, fmt.Sprintf(summarizeEvidencePrompt, formatEvidence(evidence))
}

func buildSuggestionPrompt(evidence []retrieval.Evidence) (string, string) {
	return systemPromptHealthcare, fmt.Sprintf(suggestQuestionsPrompt, formatEvidence(evidence))
}
