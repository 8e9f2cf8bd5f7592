package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"carevault/internal/audit"
	"carevault/internal/config"
	"carevault/internal/memory"
	"carevault/internal/reasoning"
	"carevault/internal/retrieval"
	"carevault/internal/user"
)

// stubMemoryService records calls and returns scripted results.
type stubMemoryService struct {
	ingestReq    *memory.IngestRequest
	ingestResult *memory.IngestResult
	updateID     string
	updateReq    *memory.Update
	softDeleted  []string
	hardDeleted  []string
	lastReason   string
	memories     []memory.Memory
	decayResult  *memory.DecayResult
	purged       []string
	err          error
}

func (s *stubMemoryService) Ingest(_ context.Context, req memory.IngestRequest) (*memory.IngestResult, error) {
	s.ingestReq = &req
	if s.err != nil {
		return nil, s.err
	}
	if s.ingestResult != nil {
		return s.ingestResult, nil
	}
	return &memory.IngestResult{Action: memory.ActionCreated, PointIDs: []string{"pt-1"}}, nil
}

func (s *stubMemoryService) IngestDocument(_ context.Context, patientID string, data []byte, filename, memoryType string, metadata map[string]interface{}, check bool) (*memory.DocumentResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &memory.DocumentResult{
		IngestResult: memory.IngestResult{Action: memory.ActionCreated, PointIDs: []string{"doc-1"}},
		PageCount:    2,
	}, nil
}

func (s *stubMemoryService) IngestAudio(_ context.Context, patientID string, data []byte, filename, memoryType string, metadata map[string]interface{}, check bool) (*memory.AudioResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &memory.AudioResult{
		IngestResult: memory.IngestResult{Action: memory.ActionCreated, PointIDs: []string{"aud-1"}},
		Transcript:   "transcribed",
	}, nil
}

func (s *stubMemoryService) IngestImage(_ context.Context, patientID string, data []byte, filename, description, memoryType string, metadata map[string]interface{}) (*memory.IngestResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &memory.IngestResult{Action: memory.ActionCreated, PointIDs: []string{"img-1"}}, nil
}

func (s *stubMemoryService) UpdateMemory(_ context.Context, id, patientID string, changes memory.Update) error {
	s.updateID = id
	s.updateReq = &changes
	return s.err
}

func (s *stubMemoryService) SoftDelete(_ context.Context, id, patientID, reason string) error {
	if s.err != nil {
		return s.err
	}
	s.softDeleted = append(s.softDeleted, id)
	s.lastReason = reason
	return nil
}

func (s *stubMemoryService) HardDelete(_ context.Context, id, patientID string) error {
	if s.err != nil {
		return s.err
	}
	s.hardDeleted = append(s.hardDeleted, id)
	return nil
}

func (s *stubMemoryService) ApplyDecay(_ context.Context, patientID string, batchSize int) (*memory.DecayResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.decayResult != nil {
		return s.decayResult, nil
	}
	return &memory.DecayResult{}, nil
}

func (s *stubMemoryService) ListMemories(_ context.Context, patientID string, limit int) ([]memory.Memory, error) {
	return s.memories, s.err
}

func (s *stubMemoryService) PurgePatient(_ context.Context, patientID string) error {
	if s.err != nil {
		return s.err
	}
	s.purged = append(s.purged, patientID)
	return nil
}

type stubRetrievalService struct {
	evidence        []retrieval.Evidence
	contextText     string
	lastParams      retrieval.Params
	multimodalCalls int
	err             error
}

func (s *stubRetrievalService) Retrieve(_ context.Context, params retrieval.Params) ([]retrieval.Evidence, error) {
	s.lastParams = params
	return s.evidence, s.err
}

func (s *stubRetrievalService) RetrieveMultimodal(_ context.Context, params retrieval.Params) ([]retrieval.Evidence, error) {
	s.lastParams = params
	s.multimodalCalls++
	return s.evidence, s.err
}

func (s *stubRetrievalService) GetContext(_ context.Context, patientID, query string, maxTokens, limit int) (string, error) {
	return s.contextText, s.err
}

func (s *stubRetrievalService) RetrieveWithStats(_ context.Context, params retrieval.Params) (*retrieval.Stats, error) {
	s.lastParams = params
	return &retrieval.Stats{Query: params.Query, PatientID: params.PatientID, Evidence: s.evidence, TotalFound: len(s.evidence)}, s.err
}

type stubReasoningService struct {
	response     *reasoning.Response
	suggestions  *reasoning.Suggestions
	lastEvidence []retrieval.Evidence
	lastMode     string
	err          error
}

func (s *stubReasoningService) Reason(_ context.Context, patientID, query string, evidence []retrieval.Evidence, mode string) (*reasoning.Response, error) {
	s.lastEvidence = evidence
	s.lastMode = mode
	return s.response, s.err
}

func (s *stubReasoningService) SummarizeRecords(_ context.Context, patientID string, evidence []retrieval.Evidence) (*reasoning.Response, error) {
	s.lastEvidence = evidence
	return s.response, s.err
}

func (s *stubReasoningService) SuggestFollowup(_ context.Context, evidence []retrieval.Evidence) *reasoning.Suggestions {
	s.lastEvidence = evidence
	return s.suggestions
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbConn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := dbConn.AutoMigrate(&user.Clinician{}, &audit.Entry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return dbConn
}

type testEnv struct {
	server    *Server
	memories  *stubMemoryService
	retriever *stubRetrievalService
	reasoner  *stubReasoningService
	router    *gin.Engine
}

// newTestEnv builds a server with stub services and routes mounted
// without auth middleware.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Server.JWTSecret = "test-secret"

	memories := &stubMemoryService{}
	retriever := &stubRetrievalService{}
	reasoner := &stubReasoningService{
		response:    &reasoning.Response{AnswerText: "ok", HasContext: true},
		suggestions: &reasoning.Suggestions{Questions: []string{"q?"}},
	}

	dbConn := testDB(t)
	srv := NewServer(cfg, dbConn, nil, memories, retriever, reasoner, audit.NewRecorder(dbConn))

	r := gin.New()
	r.POST("/setup", srv.setupHandler)
	r.POST("/memories", srv.ingestHandler)
	r.PATCH("/memories/:id", srv.updateMemoryHandler)
	r.DELETE("/memories/:id", srv.deleteMemoryHandler)
	r.GET("/patients/:id/memories", srv.listMemoriesHandler)
	r.GET("/patients/:id/stats", srv.patientStatsHandler)
	r.GET("/patients/:id/summary", srv.patientSummaryHandler)
	r.GET("/patients/:id/suggestions", srv.patientSuggestionsHandler)
	r.GET("/patients/:id/audit", srv.patientAuditHandler)
	r.DELETE("/patients/:id", srv.purgePatientHandler)
	r.POST("/patients/:id/decay", srv.decayHandler)
	r.POST("/search", srv.searchHandler)
	r.POST("/search/context", srv.contextHandler)
	r.POST("/reason", srv.reasonHandler)
	r.GET("/health", srv.healthHandler)

	return &testEnv{server: srv, memories: memories, retriever: retriever, reasoner: reasoner, router: r}
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	e.router.ServeHTTP(w, req)
	return w
}
