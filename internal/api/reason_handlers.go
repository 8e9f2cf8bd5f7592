// internal/api/reason_handlers.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carevault/internal/reasoning"
	"carevault/internal/retrieval"
)

type ReasonRequest struct {
	PatientID  string `json:"patient_id"`
	Query      string `json:"query"`
	Mode       string `json:"mode"`
	Limit      int    `json:"limit"`
	Multimodal bool   `json:"multimodal"`
}

// POST /api/v1/reason retrieves evidence, then generates a grounded
// answer. With no evidence the chain returns its fixed safe response
// without calling the model.
func (s *Server) reasonHandler(c *gin.Context) {
	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Mode == "" {
		req.Mode = reasoning.ModeGeneral
	}

	ctx := c.Request.Context()
	params := retrieval.Params{
		PatientID: req.PatientID,
		Query:     req.Query,
		Limit:     req.Limit,
	}

	var (
		evidence []retrieval.Evidence
		err      error
	)
	if req.Multimodal {
		evidence, err = s.retriever.RetrieveMultimodal(ctx, params)
	} else {
		evidence, err = s.retriever.Retrieve(ctx, params)
	}
	if err != nil {
		writeMemoryError(c, err)
		return
	}

	resp, err := s.reasoner.Reason(ctx, req.PatientID, req.Query, evidence, req.Mode)
	if err != nil {
		errorJSON(c, http.StatusBadGateway, "Reasoning failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/v1/patients/:id/summary
func (s *Server) patientSummaryHandler(c *gin.Context) {
	patientID := c.Param("id")
	ctx := c.Request.Context()

	evidence, err := s.retriever.Retrieve(ctx, retrieval.Params{
		PatientID: patientID,
		Query:     "patient history symptoms treatments medications observations",
		Limit:     20,
	})
	if err != nil {
		writeMemoryError(c, err)
		return
	}

	resp, err := s.reasoner.SummarizeRecords(ctx, patientID, evidence)
	if err != nil {
		errorJSON(c, http.StatusBadGateway, "Summary failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/v1/patients/:id/suggestions
func (s *Server) patientSuggestionsHandler(c *gin.Context) {
	patientID := c.Param("id")
	ctx := c.Request.Context()

	evidence, err := s.retriever.Retrieve(ctx, retrieval.Params{
		PatientID: patientID,
		Query:     "recent symptoms treatments follow-up",
		Limit:     10,
	})
	if err != nil {
		writeMemoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.reasoner.SuggestFollowup(ctx, evidence))
}
