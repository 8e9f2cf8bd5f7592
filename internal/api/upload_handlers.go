// internal/api/upload_handlers.go
package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"carevault/internal/audit"
)

// maxUploadBytes caps multipart reads. Audio has its own tighter limit
// in the transcriber.
const maxUploadBytes = 50 << 20

// readUpload pulls the "file" part of a multipart form.
func readUpload(c *gin.Context) ([]byte, string, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "file is required")
		return nil, "", false
	}
	if header.Size > maxUploadBytes {
		errorJSON(c, http.StatusRequestEntityTooLarge, "file too large")
		return nil, "", false
	}
	f, err := header.Open()
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "failed to open upload")
		return nil, "", false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "failed to read upload")
		return nil, "", false
	}
	return data, header.Filename, true
}

// POST /api/v1/memories/document accepts multipart: file, patient_id, memory_type
func (s *Server) ingestDocumentHandler(c *gin.Context) {
	patientID := c.PostForm("patient_id")
	if patientID == "" {
		errorJSON(c, http.StatusBadRequest, "patient_id is required")
		return
	}
	data, filename, ok := readUpload(c)
	if !ok {
		return
	}

	result, err := s.memories.IngestDocument(c.Request.Context(), patientID, data, filename,
		c.PostForm("memory_type"), nil, c.PostForm("check_reinforcement") != "false")
	if err != nil {
		writeMemoryError(c, err)
		return
	}

	s.recordAudit(actorID(c), patientID, audit.ActionIngest, firstID(result.PointIDs), map[string]interface{}{
		"modality": "document",
		"filename": filename,
		"pages":    result.PageCount,
	})
	c.JSON(http.StatusCreated, result)
}

// POST /api/v1/memories/audio accepts multipart: file, patient_id, memory_type
func (s *Server) ingestAudioHandler(c *gin.Context) {
	patientID := c.PostForm("patient_id")
	if patientID == "" {
		errorJSON(c, http.StatusBadRequest, "patient_id is required")
		return
	}
	data, filename, ok := readUpload(c)
	if !ok {
		return
	}

	result, err := s.memories.IngestAudio(c.Request.Context(), patientID, data, filename,
		c.PostForm("memory_type"), nil, c.PostForm("check_reinforcement") != "false")
	if err != nil {
		writeMemoryError(c, err)
		return
	}

	s.recordAudit(actorID(c), patientID, audit.ActionIngest, firstID(result.PointIDs), map[string]interface{}{
		"modality": "audio",
		"filename": filename,
	})
	c.JSON(http.StatusCreated, result)
}

// POST /api/v1/memories/image accepts multipart: file, patient_id,
// description, memory_type
func (s *Server) ingestImageHandler(c *gin.Context) {
	patientID := c.PostForm("patient_id")
	if patientID == "" {
		errorJSON(c, http.StatusBadRequest, "patient_id is required")
		return
	}
	data, filename, ok := readUpload(c)
	if !ok {
		return
	}

	result, err := s.memories.IngestImage(c.Request.Context(), patientID, data, filename,
		c.PostForm("description"), c.PostForm("memory_type"), nil)
	if err != nil {
		writeMemoryError(c, err)
		return
	}

	s.recordAudit(actorID(c), patientID, audit.ActionIngest, firstID(result.PointIDs), map[string]interface{}{
		"modality": "image",
		"filename": filename,
	})
	c.JSON(http.StatusCreated, result)
}
