package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"carevault/internal/memory"
)

func TestIngestHandler(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(t, "POST", "/memories", IngestTextRequest{
		PatientID:  "patient-1",
		Text:       "Patient reports morning headaches.",
		MemoryType: memory.TypeSymptom,
		Source:     "conversation",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	req := env.memories.ingestReq
	if req == nil {
		t.Fatalf("ingest never reached the service")
	}
	if req.PatientID != "patient-1" || req.Modality != memory.ModalityText {
		t.Errorf("unexpected ingest request: %+v", req)
	}
	if !req.CheckReinforcement {
		t.Errorf("reinforcement must default to enabled")
	}
}

func TestIngestHandler_ReinforcementOptOut(t *testing.T) {
	env := newTestEnv(t)

	off := false
	w := env.doJSON(t, "POST", "/memories", IngestTextRequest{
		PatientID:          "patient-1",
		Text:               "some text",
		CheckReinforcement: &off,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if env.memories.ingestReq.CheckReinforcement {
		t.Errorf("explicit opt-out ignored")
	}
}

func TestIngestHandler_ValidationErrorsMapTo400(t *testing.T) {
	env := newTestEnv(t)
	env.memories.err = memory.ErrEmptyText

	w := env.doJSON(t, "POST", "/memories", IngestTextRequest{PatientID: "patient-1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty text, got %d", w.Code)
	}
}

func TestIngestHandler_WritesAudit(t *testing.T) {
	env := newTestEnv(t)

	env.doJSON(t, "POST", "/memories", IngestTextRequest{PatientID: "patient-1", Text: "note"})

	entries, err := env.server.audit.ForPatient("patient-1", 10)
	if err != nil {
		t.Fatalf("audit query failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "ingest" {
		t.Errorf("expected one ingest audit entry, got %+v", entries)
	}
}

func TestUpdateMemoryHandler(t *testing.T) {
	env := newTestEnv(t)

	content := "corrected note"
	w := env.doJSON(t, "PATCH", "/memories/mem-1", UpdateMemoryRequest{
		PatientID: "patient-1",
		Content:   &content,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if env.memories.updateID != "mem-1" || env.memories.updateReq.Content == nil || *env.memories.updateReq.Content != content {
		t.Errorf("update not forwarded: id=%s req=%+v", env.memories.updateID, env.memories.updateReq)
	}
}

func TestUpdateMemoryHandler_RequiresPatientID(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(t, "PATCH", "/memories/mem-1", UpdateMemoryRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without patient_id, got %d", w.Code)
	}
}

func TestUpdateMemoryHandler_CrossPatientForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.memories.err = memory.ErrPatientMismatch

	w := env.doJSON(t, "PATCH", "/memories/mem-1", UpdateMemoryRequest{PatientID: "patient-2"})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for patient mismatch, got %d", w.Code)
	}
}

func TestDeleteMemoryHandler_SoftByDefault(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(t, "DELETE", "/memories/mem-1", DeleteMemoryRequest{
		PatientID: "patient-1",
		Reason:    "duplicate entry",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(env.memories.softDeleted) != 1 || len(env.memories.hardDeleted) != 0 {
		t.Errorf("expected soft delete only: soft=%v hard=%v", env.memories.softDeleted, env.memories.hardDeleted)
	}
	if env.memories.lastReason != "duplicate entry" {
		t.Errorf("reason not forwarded: %q", env.memories.lastReason)
	}
}

func TestDeleteMemoryHandler_Hard(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(t, "DELETE", "/memories/mem-1", DeleteMemoryRequest{
		PatientID: "patient-1",
		Hard:      true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(env.memories.hardDeleted) != 1 {
		t.Errorf("hard delete not forwarded")
	}
}

func TestDeleteMemoryHandler_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.memories.err = memory.ErrMemoryNotFound

	w := env.doJSON(t, "DELETE", "/memories/ghost", DeleteMemoryRequest{PatientID: "patient-1"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestPatientStatsHandler(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.memories.memories = []memory.Memory{
		{MemoryType: memory.TypeClinical, Modality: memory.ModalityText, Confidence: 0.8, CreatedAt: now,
			Metadata: map[string]interface{}{memory.MetaIsActive: true}},
		{MemoryType: memory.TypeClinical, Modality: memory.ModalityDocument, Confidence: 0.6, CreatedAt: now,
			Metadata: map[string]interface{}{memory.MetaIsActive: true}},
		{MemoryType: memory.TypeNote, Modality: memory.ModalityText, Confidence: 1.0, CreatedAt: now,
			Metadata: map[string]interface{}{memory.MetaIsActive: false}},
	}

	w := env.doJSON(t, "GET", "/patients/patient-1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`"total_memories":3`, `"active":2`, `"clinical":2`, `"avg_confidence":0.7`} {
		if !containsStr(body, want) {
			t.Errorf("stats missing %s: %s", want, body)
		}
	}
}

func TestDecayHandler(t *testing.T) {
	env := newTestEnv(t)
	env.memories.decayResult = &memory.DecayResult{Processed: 10, Decayed: 4}

	w := env.doJSON(t, "POST", "/patients/patient-1/decay", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !containsStr(w.Body.String(), `"decayed":4`) {
		t.Errorf("decay result not returned: %s", w.Body.String())
	}
}

func TestPurgePatientHandler(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(t, "DELETE", "/patients/patient-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(env.memories.purged) != 1 || env.memories.purged[0] != "patient-1" {
		t.Errorf("purge not forwarded: %v", env.memories.purged)
	}
}

func containsStr(s, sub string) bool {
	return strings.Contains(s, sub)
}
