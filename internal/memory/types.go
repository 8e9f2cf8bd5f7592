// internal/memory/types.go
package memory

import (
	"errors"
	"fmt"
	"time"
)

// Modality identifies the data modality of a memory and routes it to the
// correct embedding space and collection.
type Modality string

const (
	ModalityText     Modality = "text"
	ModalityDocument Modality = "document"
	ModalityImage    Modality = "image"
	ModalityAudio    Modality = "audio"
)

// TextVectorSize is the dimension of the sentence-embedding space
// (all-MiniLM-L6-v2). ImageVectorSize is the CLIP ViT-B/32 dimension.
const (
	TextVectorSize  = 384
	ImageVectorSize = 512
)

// ValidateModality checks a modality tag.
func ValidateModality(m Modality) error {
	switch m {
	case ModalityText, ModalityDocument, ModalityImage, ModalityAudio:
		return nil
	default:
		return fmt.Errorf("invalid modality: %s (must be 'text', 'document', 'image', or 'audio')", m)
	}
}

// VectorSize returns the embedding dimension for this modality.
func (m Modality) VectorSize() int {
	if m == ModalityImage {
		return ImageVectorSize
	}
	return TextVectorSize
}

// Common memory types. Free-form keywords by convention; not enforced.
const (
	TypeClinical     = "clinical"
	TypeMentalHealth = "mental_health"
	TypeMedication   = "medication"
	TypeNote         = "note"
	TypeLifestyle    = "lifestyle"
	TypeSymptom      = "symptom"
	TypeAppointment  = "appointment"
)

// Validation and ownership errors. These are caller errors: rejected
// synchronously with no side effects.
var (
	ErrMissingPatientID = errors.New("patient_id is required")
	ErrEmptyText        = errors.New("text cannot be empty")
	ErrMemoryNotFound   = errors.New("memory not found")
	ErrPatientMismatch  = errors.New("cross-patient update forbidden")
)

// Memory is a single stored, searchable unit. PatientID is the isolation
// key: every read and write is scoped by it, and it never changes for the
// lifetime of the record.
type Memory struct {
	ID         string   `json:"id"`
	PatientID  string   `json:"patient_id"`
	Content    string   `json:"content"`
	MemoryType string   `json:"memory_type"`
	Source     string   `json:"source"`
	Modality   Modality `json:"modality"`
	// Confidence is the current, time-decayed value used for ranking.
	// BaseConfidence is the undecayed reference: set at creation,
	// raised by reinforcement, never lowered by decay sweeps. Sweeps
	// recompute Confidence from BaseConfidence, so rerunning a sweep
	// cannot compound.
	Confidence     float64                `json:"confidence"`
	BaseConfidence float64                `json:"base_confidence"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at,omitempty"`
	Metadata       map[string]interface{} `json:"metadata"`
	Vector         []float32              `json:"-"`
}

// Metadata keys managed by the lifecycle layer. Caller metadata is merged
// first so these can never be overridden by caller input.
const (
	MetaParentID           = "parent_id"
	MetaChunkIndex         = "chunk_index"
	MetaTotalChunks        = "total_chunks"
	MetaIsActive           = "is_active"
	MetaLastAccessed       = "last_accessed"
	MetaLastReinforced     = "last_reinforced"
	MetaReinforcementCount = "reinforcement_count"
	MetaDeletedAt          = "deleted_at"
	MetaDeletionReason     = "deletion_reason"
	MetaOriginalLength     = "original_length"
)

// Active reports whether the memory is live. Records without the flag
// (pre-soft-delete data) count as active.
func (m *Memory) Active() bool {
	if m.Metadata == nil {
		return true
	}
	v, ok := m.Metadata[MetaIsActive]
	if !ok {
		return true
	}
	b, ok := v.(bool)
	return !ok || b
}

// LastAccessed returns the last access time stamped in metadata, if any.
// Timestamps are stored as Unix seconds.
func (m *Memory) LastAccessed() (time.Time, bool) {
	if m.Metadata == nil {
		return time.Time{}, false
	}
	switch v := m.Metadata[MetaLastAccessed].(type) {
	case int64:
		return time.Unix(v, 0).UTC(), true
	case int:
		return time.Unix(int64(v), 0).UTC(), true
	case float64:
		return time.Unix(int64(v), 0).UTC(), true
	}
	return time.Time{}, false
}

// ReinforcementCount returns how many times this memory was reinforced.
func (m *Memory) ReinforcementCount() int {
	if m.Metadata == nil {
		return 0
	}
	switch v := m.Metadata[MetaReinforcementCount].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// ScoredMemory is a memory with its similarity score from a vector search.
type ScoredMemory struct {
	Memory Memory
	Score  float64
}

// Action reports the outcome of an ingestion.
type Action string

const (
	ActionCreated    Action = "created"
	ActionReinforced Action = "reinforced"
)
