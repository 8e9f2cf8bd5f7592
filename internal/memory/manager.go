// internal/memory/manager.go
package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"carevault/internal/chunker"
)

// Reinforcement candidate set size. A near-duplicate ingest boosts at
// most this many existing records.
const reinforcementCandidates = 5

// Embedder produces text embeddings in the 384-dim sentence space.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ImageEmbedder produces image embeddings in the 512-dim CLIP space.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, data []byte) ([]float32, error)
}

// Manager owns the memory lifecycle: ingestion with reinforcement
// detection, payload updates, soft/hard delete, and decay sweeps. It is
// the sole writer of memory records; retrieval and reasoning are
// read-only consumers.
//
// Concurrent ingestions for the same patient that reinforce the same
// record race on the read-modify-write of confidence. Strict
// serialization would need per-record optimistic concurrency at the
// store layer; see DESIGN.md.
type Manager struct {
	store       Store
	images      Store
	embedder    Embedder
	imageEmbed  ImageEmbedder
	extractor   DocumentExtractor
	transcriber Transcriber
	chunker     *chunker.Chunker
	now         func() time.Time
}

// NewManager wires the lifecycle manager. The image, document, and audio
// dependencies may be nil when the corresponding ingestion path is
// disabled.
func NewManager(store Store, images Store, embedder Embedder, imageEmbed ImageEmbedder, extractor DocumentExtractor, transcriber Transcriber) *Manager {
	return &Manager{
		store:       store,
		images:      images,
		embedder:    embedder,
		imageEmbed:  imageEmbed,
		extractor:   extractor,
		transcriber: transcriber,
		chunker:     chunker.New(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// IngestRequest carries one item of raw text into the store.
type IngestRequest struct {
	PatientID          string
	Text               string
	MemoryType         string
	Source             string
	Modality           Modality
	Metadata           map[string]interface{}
	CheckReinforcement bool
}

// IngestResult reports whether the text created new records or
// reinforced existing ones, with the affected point IDs in order.
type IngestResult struct {
	Action          Action   `json:"action"`
	PointIDs        []string `json:"point_ids"`
	ReinforcedCount int      `json:"reinforced_count"`
}

// Ingest stores raw text as one or more memory chunks, or reinforces
// existing near-duplicate memories instead of creating new ones.
func (m *Manager) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.PatientID == "" {
		return nil, ErrMissingPatientID
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if req.Modality == "" {
		req.Modality = ModalityText
	}
	if err := ValidateModality(req.Modality); err != nil {
		return nil, err
	}
	if req.MemoryType == "" {
		req.MemoryType = TypeNote
	}
	if req.Source == "" {
		req.Source = "session"
	}

	// Groups the chunks produced from this one ingested item.
	parentID := uuid.New().String()

	// Storage keeps the original casing and punctuation; the embedding
	// layer applies its own cleanup to embedding input only.
	text := normalizeWhitespace(req.Text)

	if req.CheckReinforcement {
		fullVector, err := m.embedder.EmbedText(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding failed: %w", err)
		}

		similar, err := m.findSimilar(ctx, req.PatientID, fullVector)
		if err != nil {
			return nil, err
		}

		if len(similar) > 0 {
			ids, err := m.reinforce(ctx, similar)
			if err != nil {
				return nil, err
			}
			log.Printf("[Memory] Reinforced %d memories instead of creating new", len(ids))
			return &IngestResult{
				Action:          ActionReinforced,
				PointIDs:        ids,
				ReinforcedCount: len(ids),
			}, nil
		}
	}

	chunks := m.chunker.Chunk(text)
	if len(chunks) == 0 {
		chunks = []string{text}
	}

	now := m.now()
	pointIDs := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		vector, err := m.embedder.EmbedText(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %d failed: %w", i, err)
		}

		// Caller metadata first, lifecycle fields second: callers cannot
		// override parent_id, chunk bookkeeping, or the active flag.
		metadata := make(map[string]interface{}, len(req.Metadata)+6)
		for k, v := range req.Metadata {
			metadata[k] = v
		}
		metadata[MetaParentID] = parentID
		metadata[MetaChunkIndex] = i
		metadata[MetaTotalChunks] = len(chunks)
		metadata[MetaOriginalLength] = len(req.Text)
		metadata[MetaIsActive] = true
		metadata[MetaLastAccessed] = now.Unix()

		record := &Memory{
			ID:             uuid.New().String(),
			PatientID:      req.PatientID,
			Content:        chunk,
			MemoryType:     req.MemoryType,
			Source:         req.Source,
			Modality:       req.Modality,
			Confidence:     InitialConfidence,
			BaseConfidence: InitialConfidence,
			CreatedAt:      now,
			Metadata:       metadata,
			Vector:         vector,
		}

		if err := m.store.Upsert(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to store chunk %d: %w", i, err)
		}
		pointIDs = append(pointIDs, record.ID)
	}

	return &IngestResult{Action: ActionCreated, PointIDs: pointIDs}, nil
}

// findSimilar returns active memories of this patient whose similarity
// to the vector meets the reinforcement threshold.
func (m *Manager) findSimilar(ctx context.Context, patientID string, vector []float32) ([]ScoredMemory, error) {
	results, err := m.store.Search(ctx, vector, SearchParams{
		PatientID: patientID,
		Limit:     reinforcementCandidates,
		MinScore:  SimilarityThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity check failed: %w", err)
	}

	active := results[:0]
	for _, r := range results {
		if r.Memory.Active() {
			active = append(active, r)
		}
	}
	return active, nil
}

// reinforce boosts the base confidence of each matched memory and stamps
// the reinforcement bookkeeping via a payload-only update. Reinforcement
// also restarts the decay clock: last_accessed moves to now, so the
// boosted value holds through a fresh grace period.
func (m *Manager) reinforce(ctx context.Context, matches []ScoredMemory) ([]string, error) {
	now := m.now()
	ids := make([]string, 0, len(matches))

	for _, match := range matches {
		rec := match.Memory

		metadata := make(map[string]interface{}, len(rec.Metadata)+3)
		for k, v := range rec.Metadata {
			metadata[k] = v
		}
		metadata[MetaLastReinforced] = now.Unix()
		metadata[MetaLastAccessed] = now.Unix()
		metadata[MetaReinforcementCount] = rec.ReinforcementCount() + 1

		boosted := Reinforce(rec.BaseConfidence)
		err := m.store.SetPayload(ctx, rec.ID, map[string]interface{}{
			"confidence":      boosted,
			"base_confidence": boosted,
			"metadata":        metadata,
			"updated_at":      now.Unix(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to reinforce memory %s: %w", rec.ID, err)
		}
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

// Update is the allow-list of payload fields a caller may change.
// patient_id, created_at, and the vector are immutable by construction.
type Update struct {
	Content    *string
	MemoryType *string
	Source     *string
	Confidence *float64
	Metadata   map[string]interface{}
}

// UpdateMemory mutates payload fields of an existing record after
// verifying patient ownership. The vector is never rewritten.
func (m *Manager) UpdateMemory(ctx context.Context, id, patientID string, changes Update) error {
	existing, err := m.verifyOwnership(ctx, m.store, id, patientID)
	if err != nil {
		return err
	}

	fields := make(map[string]interface{})
	if changes.Content != nil {
		fields["content"] = *changes.Content
	}
	if changes.MemoryType != nil {
		fields["memory_type"] = *changes.MemoryType
	}
	if changes.Source != nil {
		fields["source"] = *changes.Source
	}
	if changes.Confidence != nil {
		// An explicit caller override resets both the ranking value and
		// the decay reference.
		fields["confidence"] = clampConfidence(*changes.Confidence)
		fields["base_confidence"] = clampConfidence(*changes.Confidence)
	}
	if len(changes.Metadata) > 0 {
		metadata := make(map[string]interface{}, len(existing.Metadata)+len(changes.Metadata))
		for k, v := range existing.Metadata {
			metadata[k] = v
		}
		for k, v := range changes.Metadata {
			metadata[k] = v
		}
		fields["metadata"] = metadata
	}
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = m.now().Unix()

	return m.store.SetPayload(ctx, id, fields)
}

// SoftDelete marks a record inactive and excluded from search while
// preserving it for audit.
func (m *Manager) SoftDelete(ctx context.Context, id, patientID, reason string) error {
	existing, err := m.verifyOwnership(ctx, m.store, id, patientID)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = "user_requested"
	}

	now := m.now()
	metadata := make(map[string]interface{}, len(existing.Metadata)+3)
	for k, v := range existing.Metadata {
		metadata[k] = v
	}
	metadata[MetaIsActive] = false
	metadata[MetaDeletedAt] = now.Unix()
	metadata[MetaDeletionReason] = reason

	return m.store.SetPayload(ctx, id, map[string]interface{}{
		"metadata":   metadata,
		"updated_at": now.Unix(),
	})
}

// HardDelete physically removes a record after verifying ownership.
// Irreversible; prefer SoftDelete.
func (m *Manager) HardDelete(ctx context.Context, id, patientID string) error {
	if _, err := m.verifyOwnership(ctx, m.store, id, patientID); err != nil {
		return err
	}
	return m.store.Delete(ctx, id)
}

// verifyOwnership fetches the record and rejects the operation when it
// belongs to a different patient. No mutation happens on mismatch.
func (m *Manager) verifyOwnership(ctx context.Context, store Store, id, patientID string) (*Memory, error) {
	if patientID == "" {
		return nil, ErrMissingPatientID
	}
	existing, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.PatientID != patientID {
		return nil, ErrPatientMismatch
	}
	return existing, nil
}

// DecayResult reports a decay sweep.
type DecayResult struct {
	Processed int `json:"processed"`
	Decayed   int `json:"decayed"`
}

// ApplyDecay recomputes time-decayed confidence for up to batchSize of a
// patient's memories and persists values that moved more than the noise
// floor. Inactive records are skipped. Decay always derives from the
// undecayed base confidence and the sweep does not bump last_accessed,
// so rerunning it in the same window is a no-op: sweeps never compound.
func (m *Manager) ApplyDecay(ctx context.Context, patientID string, batchSize int) (*DecayResult, error) {
	if patientID == "" {
		return nil, ErrMissingPatientID
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	memories, err := m.store.ScrollPatient(ctx, patientID, batchSize)
	if err != nil {
		return nil, err
	}

	now := m.now()
	result := &DecayResult{}

	for _, rec := range memories {
		if !rec.Active() {
			continue
		}

		lastAccessed, _ := rec.LastAccessed()
		decayed := DecayedConfidence(rec.BaseConfidence, rec.CreatedAt, lastAccessed, now)

		if diff := rec.Confidence - decayed; diff > decayNoiseFloor || diff < -decayNoiseFloor {
			err := m.store.SetPayload(ctx, rec.ID, map[string]interface{}{
				"confidence": decayed,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to persist decay for %s: %w", rec.ID, err)
			}
			result.Decayed++
		}
		result.Processed++
	}

	return result, nil
}

// ListMemories returns up to limit memories for a patient, unscored.
func (m *Manager) ListMemories(ctx context.Context, patientID string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 100
	}
	return m.store.ScrollPatient(ctx, patientID, limit)
}

// PurgePatient removes every memory (all modalities) for a patient.
func (m *Manager) PurgePatient(ctx context.Context, patientID string) error {
	if err := m.store.DeletePatient(ctx, patientID); err != nil {
		return err
	}
	if m.images != nil {
		return m.images.DeletePatient(ctx, patientID)
	}
	return nil
}

// Patients lists the distinct patient IDs present in the store.
func (m *Manager) Patients(ctx context.Context) ([]string, error) {
	return m.store.ListPatients(ctx)
}

func clampConfidence(c float64) float64 {
	if c < MinConfidence {
		return MinConfidence
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

// normalizeWhitespace collapses runs of whitespace to single spaces,
// preserving the text itself (casing, medical notation).
func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
