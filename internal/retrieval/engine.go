// internal/retrieval/engine.go
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"carevault/internal/memory"
)

// Ranking weights. Combined score favors semantic relevance but lets a
// freshly reinforced memory outrank a highly similar decayed one.
// Fixed design constants, not caller-tunable.
const (
	SemanticWeight   = 0.7
	ConfidenceWeight = 0.3

	DefaultLimit    = 10
	MaxLimit        = 100
	DefaultMinScore = 0.2

	// Context assembly uses a stricter floor than interactive search.
	contextMinScore = 0.6
	charsPerToken   = 4
)

// Evidence is a ranked, read-only projection of a memory record produced
// for a single query. It never mutates the underlying record.
type Evidence struct {
	Content       string                 `json:"content"`
	SemanticScore float64                `json:"semantic_score"`
	Confidence    float64                `json:"confidence"`
	CombinedScore float64                `json:"combined_score"`
	Source        string                 `json:"source"`
	MemoryType    string                 `json:"memory_type"`
	Modality      memory.Modality        `json:"modality"`
	CreatedAt     time.Time              `json:"created_at"`
	PointID       string                 `json:"point_id"`
	ParentID      string                 `json:"parent_id,omitempty"`
	ChunkIndex    int                    `json:"chunk_index"`
	TotalChunks   int                    `json:"total_chunks"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Params scope a retrieval. PatientID is mandatory.
type Params struct {
	PatientID       string
	Query           string
	Limit           int
	MinScore        float64
	MemoryTypes     []string
	Modalities      []string
	IncludeInactive bool
}

// QueryEmbedder embeds search queries into the text space.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ImageQueryEmbedder embeds search queries into the image (CLIP) space.
type ImageQueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Engine turns a vector search into ordered, scored evidence. It is a
// read-only consumer of the store: nothing here writes.
type Engine struct {
	store      memory.Store
	images     memory.Store
	embedder   QueryEmbedder
	imageEmbed ImageQueryEmbedder
}

// NewEngine wires the retrieval engine. images and imageEmbed may be nil
// when the image collection is not configured.
func NewEngine(store memory.Store, images memory.Store, embedder QueryEmbedder, imageEmbed ImageQueryEmbedder) *Engine {
	return &Engine{
		store:      store,
		images:     images,
		embedder:   embedder,
		imageEmbed: imageEmbed,
	}
}

// Retrieve returns ranked evidence for a patient query.
//
// An empty query returns an empty list without touching the store: a
// full-collection scan from a blank query is both wasteful and a
// hallucination hazard.
func (e *Engine) Retrieve(ctx context.Context, params Params) ([]Evidence, error) {
	if params.PatientID == "" {
		return nil, memory.ErrMissingPatientID
	}
	if strings.TrimSpace(params.Query) == "" {
		return []Evidence{}, nil
	}

	params = withDefaults(params)

	vector, err := e.embedder.EmbedText(ctx, strings.TrimSpace(params.Query))
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	results, err := e.store.Search(ctx, vector, memory.SearchParams{
		PatientID:   params.PatientID,
		Limit:       params.Limit * 2, // room for post-filtering
		MinScore:    params.MinScore,
		MemoryTypes: params.MemoryTypes,
		Modalities:  params.Modalities,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	evidence := e.buildEvidence(results, params.IncludeInactive)
	sortEvidence(evidence)
	if len(evidence) > params.Limit {
		evidence = evidence[:params.Limit]
	}
	return evidence, nil
}

// RetrieveMultimodal merges text/document/audio evidence with image
// evidence from the separate image collection. Both sides share the
// combined-score scale, so images and text compete directly.
func (e *Engine) RetrieveMultimodal(ctx context.Context, params Params) ([]Evidence, error) {
	if params.PatientID == "" {
		return nil, memory.ErrMissingPatientID
	}
	if strings.TrimSpace(params.Query) == "" {
		return []Evidence{}, nil
	}

	params = withDefaults(params)

	evidence, err := e.Retrieve(ctx, params)
	if err != nil {
		return nil, err
	}

	if e.images != nil && e.imageEmbed != nil {
		imageVector, err := e.imageEmbed.EmbedQuery(ctx, strings.TrimSpace(params.Query))
		if err != nil {
			return nil, fmt.Errorf("image query embedding failed: %w", err)
		}

		imageResults, err := e.images.Search(ctx, imageVector, memory.SearchParams{
			PatientID:   params.PatientID,
			Limit:       params.Limit * 2,
			MinScore:    params.MinScore,
			MemoryTypes: params.MemoryTypes,
		})
		if err != nil {
			return nil, fmt.Errorf("image search failed: %w", err)
		}

		evidence = append(evidence, e.buildEvidence(imageResults, params.IncludeInactive)...)
	}

	sortEvidence(evidence)
	if len(evidence) > params.Limit {
		evidence = evidence[:params.Limit]
	}
	return evidence, nil
}

// GetContext concatenates evidence content under an approximate token
// budget for LLM prompting. Returns the empty string when nothing
// clears the stricter context threshold; the reasoning gate treats that
// as "do not generate".
func (e *Engine) GetContext(ctx context.Context, patientID, query string, maxTokens, limit int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	evidence, err := e.Retrieve(ctx, Params{
		PatientID: patientID,
		Query:     query,
		Limit:     limit,
		MinScore:  contextMinScore,
	})
	if err != nil {
		return "", err
	}
	if len(evidence) == 0 {
		return "", nil
	}

	maxChars := maxTokens * charsPerToken
	var parts []string
	chars := 0

	for _, ev := range evidence {
		if chars+len(ev.Content) > maxChars {
			break
		}
		parts = append(parts, fmt.Sprintf("[%s] (%s, %s)\n%s",
			strings.ToUpper(ev.MemoryType), ev.Source,
			ev.CreatedAt.Format("2006-01-02"), ev.Content))
		chars += len(ev.Content)
	}

	return strings.Join(parts, "\n\n---\n\n"), nil
}

// Stats summarizes one retrieval for debugging and explainability.
type Stats struct {
	Query            string     `json:"query"`
	PatientID        string     `json:"patient_id"`
	TotalFound       int        `json:"total_found"`
	AvgSemanticScore float64    `json:"avg_semantic_score"`
	AvgConfidence    float64    `json:"avg_confidence"`
	Evidence         []Evidence `json:"evidence"`
}

// RetrieveWithStats retrieves and reports aggregate score statistics.
func (e *Engine) RetrieveWithStats(ctx context.Context, params Params) (*Stats, error) {
	evidence, err := e.Retrieve(ctx, params)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Query:     params.Query,
		PatientID: params.PatientID,
		Evidence:  evidence,
	}
	if len(evidence) == 0 {
		stats.Evidence = []Evidence{}
		return stats, nil
	}

	var semantic, confidence float64
	for _, ev := range evidence {
		semantic += ev.SemanticScore
		confidence += ev.Confidence
	}
	stats.TotalFound = len(evidence)
	stats.AvgSemanticScore = round4(semantic / float64(len(evidence)))
	stats.AvgConfidence = round4(confidence / float64(len(evidence)))
	return stats, nil
}

func (e *Engine) buildEvidence(results []memory.ScoredMemory, includeInactive bool) []Evidence {
	evidence := make([]Evidence, 0, len(results))
	for _, r := range results {
		if !includeInactive && !r.Memory.Active() {
			continue
		}
		evidence = append(evidence, newEvidence(r))
	}
	return evidence
}

func newEvidence(r memory.ScoredMemory) Evidence {
	rec := r.Memory
	combined := SemanticWeight*r.Score + ConfidenceWeight*rec.Confidence

	ev := Evidence{
		Content:       rec.Content,
		SemanticScore: round4(r.Score),
		Confidence:    round4(rec.Confidence),
		CombinedScore: round4(combined),
		Source:        rec.Source,
		MemoryType:    rec.MemoryType,
		Modality:      rec.Modality,
		CreatedAt:     rec.CreatedAt,
		PointID:       rec.ID,
		Metadata:      rec.Metadata,
	}

	if rec.Metadata != nil {
		if v, ok := rec.Metadata[memory.MetaParentID].(string); ok {
			ev.ParentID = v
		}
		ev.ChunkIndex = metaInt(rec.Metadata, memory.MetaChunkIndex)
		ev.TotalChunks = metaInt(rec.Metadata, memory.MetaTotalChunks)
	}
	return ev
}

// sortEvidence orders by combined score descending. Ties break on
// recency (newest first), then point ID, so ordering never depends on
// store iteration order.
func sortEvidence(evidence []Evidence) {
	sort.SliceStable(evidence, func(i, j int) bool {
		if evidence[i].CombinedScore != evidence[j].CombinedScore {
			return evidence[i].CombinedScore > evidence[j].CombinedScore
		}
		if !evidence[i].CreatedAt.Equal(evidence[j].CreatedAt) {
			return evidence[i].CreatedAt.After(evidence[j].CreatedAt)
		}
		return evidence[i].PointID < evidence[j].PointID
	})
}

func withDefaults(params Params) Params {
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	if params.MinScore <= 0 {
		params.MinScore = DefaultMinScore
	}
	return params
}

func metaInt(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
