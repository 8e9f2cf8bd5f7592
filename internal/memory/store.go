// internal/memory/store.go
package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// Store is the interface to the vector store consumed by the lifecycle
// manager and the retrieval engine. Implemented by Storage; tests supply
// in-memory fakes.
type Store interface {
	Upsert(ctx context.Context, m *Memory) error
	Search(ctx context.Context, vector []float32, params SearchParams) ([]ScoredMemory, error)
	Get(ctx context.Context, id string) (*Memory, error)
	SetPayload(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	ScrollPatient(ctx context.Context, patientID string, limit int) ([]Memory, error)
	DeletePatient(ctx context.Context, patientID string) error
	ListPatients(ctx context.Context) ([]string, error)
}

// SearchParams scope a similarity search. PatientID is mandatory: the
// store never searches across patients.
type SearchParams struct {
	PatientID   string
	Limit       int
	MinScore    float64
	MemoryTypes []string
	Modalities  []string
}

// Storage handles all vector database operations against one Qdrant
// collection. Text, document, and audio memories share the 384-dim
// collection; images live in a separate 512-dim collection, so the
// process holds two Storage instances.
type Storage struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

// NewStorage connects to Qdrant and ensures the collection and its
// payload indexes exist.
func NewStorage(qdrantURL, apiKey, collection string, vectorSize int) (*Storage, error) {
	qdrantURL = strings.TrimPrefix(qdrantURL, "http://")
	qdrantURL = strings.TrimPrefix(qdrantURL, "https://")

	host := qdrantURL
	if idx := strings.Index(qdrantURL, ":"); idx != -1 {
		host = qdrantURL[:idx]
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   6334, // gRPC port
		APIKey: apiKey,
		UseTLS: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	s := &Storage{
		client:     client,
		collection: collection,
		vectorSize: uint64(vectorSize),
	}

	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %s: %w", collection, err)
	}

	return s, nil
}

// ensureCollection creates the collection and payload indexes if absent.
func (s *Storage) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// patient_id is the isolation key and must always be indexed.
	indexes := []struct {
		field string
		typ   qdrant.PayloadSchemaType
	}{
		{"patient_id", qdrant.PayloadSchemaType_Keyword},
		{"memory_type", qdrant.PayloadSchemaType_Keyword},
		{"source", qdrant.PayloadSchemaType_Keyword},
		{"modality", qdrant.PayloadSchemaType_Keyword},
		{"created_at", qdrant.PayloadSchemaType_Integer},
		{"confidence", qdrant.PayloadSchemaType_Float},
	}

	for _, idx := range indexes {
		fieldType := qdrant.FieldType(idx.typ)
		_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      idx.field,
			FieldType:      &fieldType,
			Wait:           boolPtr(true),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for %s: %w", idx.field, err)
		}
	}

	return nil
}

// Upsert writes a memory point. The vector is write-once: lifecycle
// updates go through SetPayload and never touch it.
func (s *Storage) Upsert(ctx context.Context, m *Memory) error {
	if m.PatientID == "" {
		return ErrMissingPatientID
	}

	payload := map[string]*qdrant.Value{
		"patient_id":      qdrant.NewValueString(m.PatientID),
		"content":         qdrant.NewValueString(m.Content),
		"memory_type":     qdrant.NewValueString(m.MemoryType),
		"source":          qdrant.NewValueString(m.Source),
		"modality":        qdrant.NewValueString(string(m.Modality)),
		"confidence":      qdrant.NewValueDouble(m.Confidence),
		"base_confidence": qdrant.NewValueDouble(m.BaseConfidence),
		"created_at":      qdrant.NewValueInt(m.CreatedAt.Unix()),
		"metadata":        structValue(m.Metadata),
	}
	if !m.UpdatedAt.IsZero() {
		payload["updated_at"] = qdrant.NewValueInt(m.UpdatedAt.Unix())
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(m.ID),
		Vectors: qdrant.NewVectors(m.Vector...),
		Payload: payload,
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	return err
}

// Search runs a patient-scoped similarity search. Results below
// params.MinScore are dropped.
func (s *Storage) Search(ctx context.Context, vector []float32, params SearchParams) ([]ScoredMemory, error) {
	if params.PatientID == "" {
		return nil, ErrMissingPatientID
	}

	must := []*qdrant.Condition{
		qdrant.NewMatch("patient_id", params.PatientID),
	}
	if len(params.MemoryTypes) > 0 {
		must = append(must, qdrant.NewMatchKeywords("memory_type", params.MemoryTypes...))
	}
	if len(params.Modalities) > 0 {
		must = append(must, qdrant.NewMatchKeywords("modality", params.Modalities...))
	}

	limit := uint64(params.Limit)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         &qdrant.Filter{Must: must},
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]ScoredMemory, 0, len(points))
	for _, point := range points {
		if float64(point.Score) < params.MinScore {
			continue
		}
		results = append(results, ScoredMemory{
			Memory: memoryFromPayload(pointIDString(point.Id), point.Payload),
			Score:  float64(point.Score),
		})
	}
	return results, nil
}

// Get retrieves a single memory by point ID. Returns ErrMemoryNotFound
// when the point does not exist.
func (s *Storage) Get(ctx context.Context, id string) (*Memory, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve memory: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMemoryNotFound, id)
	}

	m := memoryFromPayload(id, points[0].Payload)
	return &m, nil
}

// SetPayload performs a payload-only update of the given fields. The
// vector is untouched.
func (s *Storage) SetPayload(ctx context.Context, id string, fields map[string]interface{}) error {
	payload := make(map[string]*qdrant.Value, len(fields))
	for k, v := range fields {
		payload[k] = valueFor(v)
	}

	_, err := s.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: s.collection,
		Payload:        payload,
		PointsSelector: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{qdrant.NewIDUUID(id)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to set payload: %w", err)
	}
	return nil
}

// Delete physically removes a point. Irreversible.
func (s *Storage) Delete(ctx context.Context, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{qdrant.NewIDUUID(id)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	return nil
}

// ScrollPatient pages through a patient's memories without scoring.
func (s *Storage) ScrollPatient(ctx context.Context, patientID string, limit int) ([]Memory, error) {
	if patientID == "" {
		return nil, ErrMissingPatientID
	}

	scrollLimit := uint32(limit)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("patient_id", patientID),
			},
		},
		Limit:       &scrollLimit,
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("scroll failed: %w", err)
	}

	memories := make([]Memory, 0, len(points))
	for _, point := range points {
		memories = append(memories, memoryFromPayload(pointIDString(point.Id), point.Payload))
	}
	return memories, nil
}

// DeletePatient removes ALL memories for a patient. Escape hatch only.
func (s *Storage) DeletePatient(ctx context.Context, patientID string) error {
	if patientID == "" {
		return ErrMissingPatientID
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch("patient_id", patientID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete patient memories: %w", err)
	}
	log.Printf("[Storage] Deleted all memories for patient in %s", s.collection)
	return nil
}

// ListPatients scans the collection and returns the distinct patient IDs.
// Used by the decay worker to enumerate sweep targets.
func (s *Storage) ListPatients(ctx context.Context) ([]string, error) {
	fetch := func(offset *qdrant.PointId, limit uint32) ([]*qdrant.RetrievedPoint, error) {
		return s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude("patient_id"),
		})
	}
	return collectPatientIDs(fetch, 256)
}

// collectPatientIDs pages through the collection accumulating distinct
// patient_id values. Qdrant's scroll offset is inclusive, so a batch
// shorter than the limit means the tail was reached; paging past it
// would refetch the last point forever.
func collectPatientIDs(fetch func(offset *qdrant.PointId, limit uint32) ([]*qdrant.RetrievedPoint, error), batch uint32) ([]string, error) {
	seen := make(map[string]struct{})
	var offset *qdrant.PointId

	for {
		points, err := fetch(offset, batch)
		if err != nil {
			return nil, fmt.Errorf("scroll failed: %w", err)
		}
		if len(points) == 0 {
			break
		}
		for _, point := range points {
			if id := getString(point.Payload, "patient_id"); id != "" {
				seen[id] = struct{}{}
			}
		}
		if len(points) < int(batch) {
			break
		}
		offset = points[len(points)-1].Id
	}

	patients := make([]string, 0, len(seen))
	for id := range seen {
		patients = append(patients, id)
	}
	return patients, nil
}

// memoryFromPayload converts a Qdrant payload back into a Memory.
func memoryFromPayload(id string, payload map[string]*qdrant.Value) Memory {
	m := Memory{
		ID:         id,
		PatientID:  getString(payload, "patient_id"),
		Content:    getString(payload, "content"),
		MemoryType: getString(payload, "memory_type"),
		Source:     getString(payload, "source"),
		Modality:   Modality(getString(payload, "modality")),
		Confidence: getFloat(payload, "confidence"),
		CreatedAt:  time.Unix(getInt(payload, "created_at"), 0).UTC(),
		Metadata:   getStruct(payload, "metadata"),
	}
	// Records written before the base/derived split carry only a
	// confidence value; treat it as the base.
	if _, ok := payload["base_confidence"]; ok {
		m.BaseConfidence = getFloat(payload, "base_confidence")
	} else {
		m.BaseConfidence = m.Confidence
	}
	if _, ok := payload["updated_at"]; ok {
		m.UpdatedAt = time.Unix(getInt(payload, "updated_at"), 0).UTC()
	}
	return m
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	return id.GetUuid()
}

// valueFor converts a Go value into a Qdrant payload value.
func valueFor(v interface{}) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return qdrant.NewValueString(val)
	case bool:
		return qdrant.NewValueBool(val)
	case int:
		return qdrant.NewValueInt(int64(val))
	case int64:
		return qdrant.NewValueInt(val)
	case float64:
		return qdrant.NewValueDouble(val)
	case time.Time:
		return qdrant.NewValueInt(val.Unix())
	case map[string]interface{}:
		return structValue(val)
	default:
		return qdrant.NewValueString(fmt.Sprintf("%v", val))
	}
}

func structValue(m map[string]interface{}) *qdrant.Value {
	fields := make(map[string]*qdrant.Value, len(m))
	for k, v := range m {
		fields[k] = valueFor(v)
	}
	return &qdrant.Value{
		Kind: &qdrant.Value_StructValue{
			StructValue: &qdrant.Struct{Fields: fields},
		},
	}
}

// Payload extraction helpers.
func getString(payload map[string]*qdrant.Value, key string) string {
	if val, ok := payload[key]; ok {
		return val.GetStringValue()
	}
	return ""
}

func getInt(payload map[string]*qdrant.Value, key string) int64 {
	if val, ok := payload[key]; ok {
		return val.GetIntegerValue()
	}
	return 0
}

func getFloat(payload map[string]*qdrant.Value, key string) float64 {
	if val, ok := payload[key]; ok {
		return val.GetDoubleValue()
	}
	return 0.0
}

func getStruct(payload map[string]*qdrant.Value, key string) map[string]interface{} {
	val, ok := payload[key]
	if !ok {
		return make(map[string]interface{})
	}
	structVal := val.GetStructValue()
	if structVal == nil {
		return make(map[string]interface{})
	}
	return fieldsToMap(structVal.Fields)
}

func fieldsToMap(fields map[string]*qdrant.Value) map[string]interface{} {
	result := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch kind := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			result[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			result[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			result[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			result[k] = kind.BoolValue
		case *qdrant.Value_StructValue:
			result[k] = fieldsToMap(kind.StructValue.Fields)
		}
	}
	return result
}

func boolPtr(v bool) *bool {
	return &v
}
