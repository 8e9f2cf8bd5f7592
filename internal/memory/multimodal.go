// internal/memory/multimodal.go
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"carevault/internal/audio"
	"carevault/internal/document"
)

// DocumentExtractor pulls text out of an uploaded document.
type DocumentExtractor interface {
	Extract(data []byte, filename string) (*document.Extraction, error)
}

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, filename string) (*audio.Transcription, error)
}

// DocumentResult is an IngestResult plus extraction details.
type DocumentResult struct {
	IngestResult
	PageCount   int    `json:"page_count"`
	TextPreview string `json:"text_preview"`
}

// IngestDocument extracts text from a PDF and runs it through the
// standard ingestion pipeline with modality=document.
func (m *Manager) IngestDocument(ctx context.Context, patientID string, data []byte, filename, memoryType string, metadata map[string]interface{}, checkReinforcement bool) (*DocumentResult, error) {
	if patientID == "" {
		return nil, ErrMissingPatientID
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("document data cannot be empty")
	}
	if m.extractor == nil {
		return nil, fmt.Errorf("document ingestion not configured")
	}

	extraction, err := m.extractor.Extract(data, filename)
	if err != nil {
		return nil, fmt.Errorf("document extraction failed: %w", err)
	}

	docMeta := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		docMeta[k] = v
	}
	docMeta["original_filename"] = filename
	docMeta["page_count"] = extraction.PageCount

	if memoryType == "" {
		memoryType = TypeClinical
	}

	result, err := m.Ingest(ctx, IngestRequest{
		PatientID:          patientID,
		Text:               extraction.Text,
		MemoryType:         memoryType,
		Source:             "pdf",
		Modality:           ModalityDocument,
		Metadata:           docMeta,
		CheckReinforcement: checkReinforcement,
	})
	if err != nil {
		return nil, err
	}

	return &DocumentResult{
		IngestResult: *result,
		PageCount:    extraction.PageCount,
		TextPreview:  preview(extraction.Text, 500),
	}, nil
}

// AudioResult is an IngestResult plus transcription details.
type AudioResult struct {
	IngestResult
	Transcript      string  `json:"transcript"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// IngestAudio transcribes an audio recording and runs the transcript
// through the standard ingestion pipeline with modality=audio.
func (m *Manager) IngestAudio(ctx context.Context, patientID string, data []byte, filename, memoryType string, metadata map[string]interface{}, checkReinforcement bool) (*AudioResult, error) {
	if patientID == "" {
		return nil, ErrMissingPatientID
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("audio data cannot be empty")
	}
	if m.transcriber == nil {
		return nil, fmt.Errorf("audio ingestion not configured")
	}

	transcription, err := m.transcriber.Transcribe(ctx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	audioMeta := make(map[string]interface{}, len(metadata)+3)
	for k, v := range metadata {
		audioMeta[k] = v
	}
	audioMeta["original_filename"] = filename
	audioMeta["duration_seconds"] = transcription.DurationSeconds
	audioMeta["detected_language"] = transcription.Language

	if memoryType == "" {
		memoryType = TypeNote
	}

	result, err := m.Ingest(ctx, IngestRequest{
		PatientID:          patientID,
		Text:               transcription.Text,
		MemoryType:         memoryType,
		Source:             "recording",
		Modality:           ModalityAudio,
		Metadata:           audioMeta,
		CheckReinforcement: checkReinforcement,
	})
	if err != nil {
		return nil, err
	}

	return &AudioResult{
		IngestResult:    *result,
		Transcript:      preview(transcription.Text, 500),
		DurationSeconds: transcription.DurationSeconds,
	}, nil
}

// IngestImage embeds an image in the 512-dim CLIP space and stores it in
// the image collection. Images are stored as retrievable context only:
// the description is the searchable content, and no interpretation or
// analysis happens anywhere in the pipeline.
func (m *Manager) IngestImage(ctx context.Context, patientID string, data []byte, filename, description, memoryType string, metadata map[string]interface{}) (*IngestResult, error) {
	if patientID == "" {
		return nil, ErrMissingPatientID
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image data cannot be empty")
	}
	if m.images == nil || m.imageEmbed == nil {
		return nil, fmt.Errorf("image ingestion not configured")
	}

	vector, err := m.imageEmbed.EmbedImage(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("image embedding failed: %w", err)
	}

	now := m.now()
	imageMeta := make(map[string]interface{}, len(metadata)+3)
	for k, v := range metadata {
		imageMeta[k] = v
	}
	imageMeta["original_filename"] = filename
	imageMeta[MetaIsActive] = true
	imageMeta[MetaLastAccessed] = now.Unix()

	if memoryType == "" {
		memoryType = TypeClinical
	}

	record := &Memory{
		ID:             uuid.New().String(),
		PatientID:      patientID,
		Content:        strings.TrimSpace(description),
		MemoryType:     memoryType,
		Source:         "upload",
		Modality:       ModalityImage,
		Confidence:     InitialConfidence,
		BaseConfidence: InitialConfidence,
		CreatedAt:      now,
		Metadata:       imageMeta,
		Vector:         vector,
	}

	if err := m.images.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	return &IngestResult{Action: ActionCreated, PointIDs: []string{record.ID}}, nil
}

func preview(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
