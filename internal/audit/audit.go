// Package audit records who touched which patient's memories. Every
// ingest, update, and delete leaves a row; retrieval is not audited.
package audit

import (
	"encoding/json"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actions recorded in the trail.
const (
	ActionIngest     = "ingest"
	ActionUpdate     = "update"
	ActionSoftDelete = "soft_delete"
	ActionHardDelete = "hard_delete"
	ActionDecay      = "decay_sweep"
	ActionPurge      = "purge_patient"
)

// Entry is one audit row. Detail holds action-specific fields
// (chunk counts, deletion reasons) as JSON.
type Entry struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ActorID   uint           `gorm:"index;not null" json:"actorId"`
	PatientID string         `gorm:"index;size:64;not null" json:"patientId"`
	Action    string         `gorm:"size:32;not null" json:"action"`
	MemoryID  string         `gorm:"size:64" json:"memoryId,omitempty"`
	Detail    datatypes.JSON `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Recorder writes audit entries. A failed write is logged, never
// propagated: auditing must not fail the clinical operation.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record writes one entry. detail may be nil.
func (r *Recorder) Record(actorID uint, patientID, action, memoryID string, detail map[string]interface{}) {
	entry := Entry{
		ActorID:   actorID,
		PatientID: patientID,
		Action:    action,
		MemoryID:  memoryID,
	}
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err != nil {
			log.Printf("[Audit] failed to marshal detail for %s: %v", action, err)
		} else {
			entry.Detail = datatypes.JSON(raw)
		}
	}
	if err := r.db.Create(&entry).Error; err != nil {
		log.Printf("[Audit] failed to record %s for patient %s: %v", action, patientID, err)
	}
}

// ForPatient returns a patient's audit trail, newest first.
func (r *Recorder) ForPatient(patientID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []Entry
	err := r.db.Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
