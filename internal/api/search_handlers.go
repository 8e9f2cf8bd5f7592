// internal/api/search_handlers.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carevault/internal/retrieval"
)

type SearchRequest struct {
	PatientID       string   `json:"patient_id"`
	Query           string   `json:"query"`
	Limit           int      `json:"limit"`
	MinScore        float64  `json:"min_score"`
	MemoryTypes     []string `json:"memory_types"`
	Modalities      []string `json:"modalities"`
	IncludeInactive bool     `json:"include_inactive"`
	Multimodal      bool     `json:"multimodal"`
	WithStats       bool     `json:"with_stats"`
}

func (r SearchRequest) params() retrieval.Params {
	return retrieval.Params{
		PatientID:       r.PatientID,
		Query:           r.Query,
		Limit:           r.Limit,
		MinScore:        r.MinScore,
		MemoryTypes:     r.MemoryTypes,
		Modalities:      r.Modalities,
		IncludeInactive: r.IncludeInactive,
	}
}

// POST /api/v1/search
func (s *Server) searchHandler(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request")
		return
	}

	ctx := c.Request.Context()

	if req.WithStats {
		stats, err := s.retriever.RetrieveWithStats(ctx, req.params())
		if err != nil {
			writeMemoryError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
		return
	}

	var (
		evidence []retrieval.Evidence
		err      error
	)
	if req.Multimodal {
		evidence, err = s.retriever.RetrieveMultimodal(ctx, req.params())
	} else {
		evidence, err = s.retriever.Retrieve(ctx, req.params())
	}
	if err != nil {
		writeMemoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"patient_id": req.PatientID,
		"query":      req.Query,
		"count":      len(evidence),
		"results":    evidence,
	})
}

type ContextRequest struct {
	PatientID string `json:"patient_id"`
	Query     string `json:"query"`
	MaxTokens int    `json:"max_tokens"`
	Limit     int    `json:"limit"`
}

// POST /api/v1/search/context returns a prompt-ready context block.
func (s *Server) contextHandler(c *gin.Context) {
	var req ContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request")
		return
	}

	text, err := s.retriever.GetContext(c.Request.Context(), req.PatientID, req.Query, req.MaxTokens, req.Limit)
	if err != nil {
		writeMemoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"patient_id": req.PatientID,
		"query":      req.Query,
		"context":    text,
		"has_context": text != "",
	})
}
