package api

import (
	"net/http"
	"testing"
	"time"

	"carevault/internal/memory"
	"carevault/internal/retrieval"
)

func someEvidence() []retrieval.Evidence {
	return []retrieval.Evidence{{
		Content:       "BP 130/85",
		SemanticScore: 0.8,
		Confidence:    0.9,
		CombinedScore: 0.83,
		MemoryType:    memory.TypeClinical,
		Source:        "conversation",
		Modality:      memory.ModalityText,
		CreatedAt:     time.Now(),
		PointID:       "ev-1",
	}}
}

func TestSearchHandler(t *testing.T) {
	env := newTestEnv(t)
	env.retriever.evidence = someEvidence()

	w := env.doJSON(t, "POST", "/search", SearchRequest{
		PatientID:   "patient-1",
		Query:       "blood pressure",
		Limit:       5,
		MemoryTypes: []string{memory.TypeClinical},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if env.retriever.lastParams.PatientID != "patient-1" || env.retriever.lastParams.Limit != 5 {
		t.Errorf("params not forwarded: %+v", env.retriever.lastParams)
	}
	if env.retriever.multimodalCalls != 0 {
		t.Errorf("plain search must not use multimodal path")
	}
	if !containsStr(w.Body.String(), `"count":1`) {
		t.Errorf("result count missing: %s", w.Body.String())
	}
}

func TestSearchHandler_Multimodal(t *testing.T) {
	env := newTestEnv(t)
	env.retriever.evidence = someEvidence()

	w := env.doJSON(t, "POST", "/search", SearchRequest{
		PatientID:  "patient-1",
		Query:      "wound",
		Multimodal: true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if env.retriever.multimodalCalls != 1 {
		t.Errorf("multimodal flag ignored")
	}
}

func TestSearchHandler_WithStats(t *testing.T) {
	env := newTestEnv(t)
	env.retriever.evidence = someEvidence()

	w := env.doJSON(t, "POST", "/search", SearchRequest{
		PatientID: "patient-1",
		Query:     "meds",
		WithStats: true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !containsStr(w.Body.String(), `"total_found":1`) {
		t.Errorf("stats missing: %s", w.Body.String())
	}
}

func TestSearchHandler_MissingPatient(t *testing.T) {
	env := newTestEnv(t)
	env.retriever.err = memory.ErrMissingPatientID

	w := env.doJSON(t, "POST", "/search", SearchRequest{Query: "meds"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without patient_id, got %d", w.Code)
	}
}

func TestContextHandler(t *testing.T) {
	env := newTestEnv(t)
	env.retriever.contextText = "[CLINICAL] (conversation, 2026-02-01)\nBP 130/85"

	w := env.doJSON(t, "POST", "/search/context", ContextRequest{
		PatientID: "patient-1",
		Query:     "blood pressure",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !containsStr(w.Body.String(), `"has_context":true`) {
		t.Errorf("has_context flag wrong: %s", w.Body.String())
	}
}

func TestContextHandler_Empty(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(t, "POST", "/search/context", ContextRequest{
		PatientID: "patient-1",
		Query:     "anything",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !containsStr(w.Body.String(), `"has_context":false`) {
		t.Errorf("empty context must report has_context=false: %s", w.Body.String())
	}
}
