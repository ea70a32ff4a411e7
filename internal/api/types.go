// Package api exposes paper operations as transport-neutral services
// returning DTOs, shared by the HTTP server and the CLI.
package api

import (
	"time"

	"papermill/internal/paper"
)

// PaperItem is the API representation of one paper record.
type PaperItem struct {
	Key          string     `json:"key"`
	URL          string     `json:"url,omitempty"`
	Filename     string     `json:"filename,omitempty"`
	Size         int64      `json:"size,omitempty"`
	Status       string     `json:"status"`
	TaskID       string     `json:"task_id,omitempty"`
	MarkdownPath string     `json:"markdown_path,omitempty"`
	AnalysisPath string     `json:"analysis_path,omitempty"`
	Error        string     `json:"error,omitempty"`
	UploadedAt   *time.Time `json:"uploaded_at,omitempty"`
	ExtractedAt  *time.Time `json:"extracted_at,omitempty"`
	AnalyzedAt   *time.Time `json:"analyzed_at,omitempty"`
}

// FromPaper converts a record into its DTO.
func FromPaper(p paper.Paper) PaperItem {
	return PaperItem{
		Key:          p.Key,
		URL:          p.SourceURL,
		Filename:     p.Filename,
		Size:         p.SizeBytes,
		Status:       string(p.Status),
		TaskID:       p.TaskID,
		MarkdownPath: p.MarkdownPath,
		AnalysisPath: p.AnalysisPath,
		Error:        p.ErrorMessage,
		UploadedAt:   p.UploadedAt,
		ExtractedAt:  p.ExtractedAt,
		AnalyzedAt:   p.AnalyzedAt,
	}
}

// FromPapers converts a record slice into DTOs.
func FromPapers(papers []paper.Paper) []PaperItem {
	items := make([]PaperItem, len(papers))
	for i, p := range papers {
		items[i] = FromPaper(p)
	}
	return items
}

// ListResponse is the paginated paper listing.
type ListResponse struct {
	Items  []PaperItem `json:"items"`
	Total  int         `json:"total"`
	Offset int         `json:"offset"`
	Limit  int         `json:"limit"`
}

// StatsResponse summarizes record counts per status.
type StatsResponse struct {
	Total  int            `json:"total"`
	Counts map[string]int `json:"counts"`
}

// UploadResponse describes one stored upload.
type UploadResponse struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// BatchUploadResponse collects per-file upload outcomes.
type BatchUploadResponse struct {
	Uploaded []UploadResponse  `json:"uploaded"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// ExtractionResponse acknowledges a started extraction.
type ExtractionResponse struct {
	TaskID  string `json:"task_id"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// StopExtractionResponse reports a stop attempt.
type StopExtractionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AnalysisResponse acknowledges a started analysis.
type AnalysisResponse struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// AnalysisResultResponse maps section titles to their translated text.
type AnalysisResultResponse struct {
	Key      string            `json:"key"`
	Sections map[string]string `json:"sections"`
}

// DaemonStatus reports daemon runtime information.
type DaemonStatus struct {
	Running    bool   `json:"running"`
	RecordFile string `json:"record_file"`
	LockFile   string `json:"lock_file"`
	Address    string `json:"address,omitempty"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
