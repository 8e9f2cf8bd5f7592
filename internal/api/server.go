// internal/api/server.go
package api

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"carevault/internal/audit"
	"carevault/internal/config"
	"carevault/internal/memory"
	"carevault/internal/reasoning"
	"carevault/internal/retrieval"
)

// MemoryService is the memory lifecycle surface the handlers need.
// Implemented by *memory.Manager.
type MemoryService interface {
	Ingest(ctx context.Context, req memory.IngestRequest) (*memory.IngestResult, error)
	IngestDocument(ctx context.Context, patientID string, data []byte, filename, memoryType string, metadata map[string]interface{}, checkReinforcement bool) (*memory.DocumentResult, error)
	IngestAudio(ctx context.Context, patientID string, data []byte, filename, memoryType string, metadata map[string]interface{}, checkReinforcement bool) (*memory.AudioResult, error)
	IngestImage(ctx context.Context, patientID string, data []byte, filename, description, memoryType string, metadata map[string]interface{}) (*memory.IngestResult, error)
	UpdateMemory(ctx context.Context, id, patientID string, changes memory.Update) error
	SoftDelete(ctx context.Context, id, patientID, reason string) error
	HardDelete(ctx context.Context, id, patientID string) error
	ApplyDecay(ctx context.Context, patientID string, batchSize int) (*memory.DecayResult, error)
	ListMemories(ctx context.Context, patientID string, limit int) ([]memory.Memory, error)
	PurgePatient(ctx context.Context, patientID string) error
}

// RetrievalService is the ranked-search surface. Implemented by
// *retrieval.Engine.
type RetrievalService interface {
	Retrieve(ctx context.Context, params retrieval.Params) ([]retrieval.Evidence, error)
	RetrieveMultimodal(ctx context.Context, params retrieval.Params) ([]retrieval.Evidence, error)
	GetContext(ctx context.Context, patientID, query string, maxTokens, limit int) (string, error)
	RetrieveWithStats(ctx context.Context, params retrieval.Params) (*retrieval.Stats, error)
}

// ReasoningService generates evidence-grounded answers. Implemented by
// *reasoning.Chain.
type ReasoningService interface {
	Reason(ctx context.Context, patientID, query string, evidence []retrieval.Evidence, mode string) (*reasoning.Response, error)
	SummarizeRecords(ctx context.Context, patientID string, evidence []retrieval.Evidence) (*reasoning.Response, error)
	SuggestFollowup(ctx context.Context, evidence []retrieval.Evidence) *reasoning.Suggestions
}

// Server bundles handler dependencies. Everything is injected; there
// is no package-level state.
type Server struct {
	cfg       *config.Config
	db        *gorm.DB
	rdb       *redis.Client
	memories  MemoryService
	retriever RetrievalService
	reasoner  ReasoningService
	audit     *audit.Recorder
}

// NewServer wires the HTTP layer. audit may be nil (auditing disabled).
func NewServer(cfg *config.Config, db *gorm.DB, rdb *redis.Client, memories MemoryService, retriever RetrievalService, reasoner ReasoningService, auditRec *audit.Recorder) *Server {
	return &Server{
		cfg:       cfg,
		db:        db,
		rdb:       rdb,
		memories:  memories,
		retriever: retriever,
		reasoner:  reasoner,
		audit:     auditRec,
	}
}

func (s *Server) recordAudit(actorID uint, patientID, action, memoryID string, detail map[string]interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Record(actorID, patientID, action, memoryID, detail)
}
