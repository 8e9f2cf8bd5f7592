// internal/api/memory_handlers.go
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"carevault/internal/audit"
	"carevault/internal/memory"
)

type IngestTextRequest struct {
	PatientID          string                 `json:"patient_id"`
	Text               string                 `json:"text"`
	MemoryType         string                 `json:"memory_type"`
	Source             string                 `json:"source"`
	Metadata           map[string]interface{} `json:"metadata"`
	CheckReinforcement *bool                  `json:"check_reinforcement"`
}

// POST /api/v1/memories
func (s *Server) ingestHandler(c *gin.Context) {
	var req IngestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request")
		return
	}

	// Reinforcement is on unless explicitly disabled.
	check := true
	if req.CheckReinforcement != nil {
		check = *req.CheckReinforcement
	}

	result, err := s.memories.Ingest(c.Request.Context(), memory.IngestRequest{
		PatientID:          req.PatientID,
		Text:               req.Text,
		MemoryType:         req.MemoryType,
		Source:             req.Source,
		Modality:           memory.ModalityText,
		Metadata:           req.Metadata,
		CheckReinforcement: check,
	})
	if err != nil {
		writeMemoryError(c, err)
		return
	}

	s.recordAudit(actorID(c), req.PatientID, audit.ActionIngest, firstID(result.PointIDs), map[string]interface{}{
		"action": string(result.Action),
		"chunks": len(result.PointIDs),
	})
	c.JSON(http.StatusCreated, result)
}

type UpdateMemoryRequest struct {
	PatientID  string                 `json:"patient_id"`
	Content    *string                `json:"content"`
	MemoryType *string                `json:"memory_type"`
	Source     *string                `json:"source"`
	Confidence *float64               `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// PATCH /api/v1/memories/:id
func (s *Server) updateMemoryHandler(c *gin.Context) {
	id := c.Param("id")
	var req UpdateMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.PatientID == "" {
		errorJSON(c, http.StatusBadRequest, "patient_id is required")
		return
	}

	err := s.memories.UpdateMemory(c.Request.Context(), id, req.PatientID, memory.Update{
		Content:    req.Content,
		MemoryType: req.MemoryType,
		Source:     req.Source,
		Confidence: req.Confidence,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeMemoryError(c, err)
		return
	}

	s.recordAudit(actorID(c), req.PatientID, audit.ActionUpdate, id, nil)
	c.JSON(http.StatusOK, gin.H{"updated": true, "point_id": id})
}

type DeleteMemoryRequest struct {
	PatientID string `json:"patient_id"`
	Hard      bool   `json:"hard"`
	Reason    string `json:"reason"`
}

// DELETE /api/v1/memories/:id soft deletes by default; hard delete
// physically removes the point.
func (s *Server) deleteMemoryHandler(c *gin.Context) {
	id := c.Param("id")
	var req DeleteMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.PatientID == "" {
		errorJSON(c, http.StatusBadRequest, "patient_id is required")
		return
	}

	var err error
	action := audit.ActionSoftDelete
	if req.Hard {
		action = audit.ActionHardDelete
		err = s.memories.HardDelete(c.Request.Context(), id, req.PatientID)
	} else {
		err = s.memories.SoftDelete(c.Request.Context(), id, req.PatientID, req.Reason)
	}
	if err != nil {
		writeMemoryError(c, err)
		return
	}

	s.recordAudit(actorID(c), req.PatientID, action, id, map[string]interface{}{"reason": req.Reason})
	c.JSON(http.StatusOK, gin.H{"deleted": true, "hard": req.Hard, "point_id": id})
}

// GET /api/v1/patients/:id/memories
func (s *Server) listMemoriesHandler(c *gin.Context) {
	patientID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	memories, err := s.memories.ListMemories(c.Request.Context(), patientID, limit)
	if err != nil {
		writeMemoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"patient_id": patientID,
		"count":      len(memories),
		"memories":   memories,
	})
}

// GET /api/v1/patients/:id/stats
func (s *Server) patientStatsHandler(c *gin.Context) {
	patientID := c.Param("id")

	memories, err := s.memories.ListMemories(c.Request.Context(), patientID, 1000)
	if err != nil {
		writeMemoryError(c, err)
		return
	}

	byType := make(map[string]int)
	byModality := make(map[string]int)
	active := 0
	var confidenceSum float64
	for _, m := range memories {
		byType[m.MemoryType]++
		byModality[string(m.Modality)]++
		if m.Active() {
			active++
			confidenceSum += m.Confidence
		}
	}
	avgConfidence := 0.0
	if active > 0 {
		avgConfidence = confidenceSum / float64(active)
	}

	c.JSON(http.StatusOK, gin.H{
		"patient_id":     patientID,
		"total_memories": len(memories),
		"active":         active,
		"by_type":        byType,
		"by_modality":    byModality,
		"avg_confidence": avgConfidence,
	})
}

// POST /api/v1/patients/:id/decay runs a decay sweep for one patient.
func (s *Server) decayHandler(c *gin.Context) {
	patientID := c.Param("id")
	batchSize, _ := strconv.Atoi(c.DefaultQuery("batch_size", "0"))

	result, err := s.memories.ApplyDecay(c.Request.Context(), patientID, batchSize)
	if err != nil {
		writeMemoryError(c, err)
		return
	}

	s.recordAudit(actorID(c), patientID, audit.ActionDecay, "", map[string]interface{}{
		"processed": result.Processed,
		"decayed":   result.Decayed,
	})
	c.JSON(http.StatusOK, result)
}

// DELETE /api/v1/patients/:id removes every memory for the patient.
func (s *Server) purgePatientHandler(c *gin.Context) {
	patientID := c.Param("id")

	if err := s.memories.PurgePatient(c.Request.Context(), patientID); err != nil {
		writeMemoryError(c, err)
		return
	}

	s.recordAudit(actorID(c), patientID, audit.ActionPurge, "", nil)
	c.JSON(http.StatusOK, gin.H{"purged": true, "patient_id": patientID})
}

// GET /api/v1/patients/:id/audit
func (s *Server) patientAuditHandler(c *gin.Context) {
	if s.audit == nil {
		errorJSON(c, http.StatusNotImplemented, "Auditing is disabled")
		return
	}
	patientID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, err := s.audit.ForPatient(patientID, limit)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "Failed to load audit trail")
		return
	}
	c.JSON(http.StatusOK, gin.H{"patient_id": patientID, "entries": entries})
}

func writeMemoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, memory.ErrMissingPatientID), errors.Is(err, memory.ErrEmptyText):
		errorJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, memory.ErrMemoryNotFound):
		errorJSON(c, http.StatusNotFound, err.Error())
	case errors.Is(err, memory.ErrPatientMismatch):
		errorJSON(c, http.StatusForbidden, err.Error())
	default:
		errorJSON(c, http.StatusInternalServerError, err.Error())
	}
}

func firstID(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
