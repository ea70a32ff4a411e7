package paper

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a paper record.
type Status string

const (
	StatusUploaded    Status = "uploaded"
	StatusParsing     Status = "parsing"
	StatusDownloading Status = "downloading"
	StatusExtracted   Status = "extracted"
	StatusAnalyzing   Status = "analyzing"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

var allStatuses = []Status{
	StatusUploaded,
	StatusParsing,
	StatusDownloading,
	StatusExtracted,
	StatusAnalyzing,
	StatusDone,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// legalTransitions is the single source of truth for the state machine.
// Error is reachable from every non-terminal state; parsing and downloading
// may roll back to uploaded via an explicit stop.
var legalTransitions = map[Status][]Status{
	StatusUploaded:    {StatusParsing, StatusError},
	StatusParsing:     {StatusDownloading, StatusUploaded, StatusError},
	StatusDownloading: {StatusExtracted, StatusUploaded, StatusError},
	StatusExtracted:   {StatusAnalyzing, StatusError},
	StatusAnalyzing:   {StatusDone, StatusError},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Paper is the durable record tracking one uploaded document. JSON field
// names match the historical record file so existing files keep loading.
type Paper struct {
	Key          string     `json:"oss_key"`
	SourceURL    string     `json:"oss_url"`
	Filename     string     `json:"filename"`
	SizeBytes    int64      `json:"size,omitempty"`
	Status       Status     `json:"status"`
	TaskID       string     `json:"task_id,omitempty"`
	MarkdownPath string     `json:"markdown_path,omitempty"`
	AnalysisPath string     `json:"analysis_results_path,omitempty"`
	ErrorMessage string     `json:"error,omitempty"`
	UploadedAt   *time.Time `json:"uploaded_at,omitempty"`
	ExtractedAt  *time.Time `json:"extracted_at,omitempty"`
	AnalyzedAt   *time.Time `json:"analyzed_at,omitempty"`
}

// InExtraction reports whether the record is inside the extraction window
// (submitted to the parser but not yet resolved).
func (p Paper) InExtraction() bool {
	return p.Status == StatusParsing || p.Status == StatusDownloading
}

// Resumable reports whether a restart should re-attach a poll task to this
// record: it is mid-extraction and still carries the external task id.
func (p Paper) Resumable() bool {
	return p.InExtraction() && strings.TrimSpace(p.TaskID) != ""
}

// SetFailed marks the record as errored with the given message.
func (p *Paper) SetFailed(message string) {
	p.Status = StatusError
	p.ErrorMessage = message
}

// NormalizeKey converts a record key (or stored relative path) to the
// canonical forward-slash form. Historically stored keys may carry
// backslashes; lookups accept both.
func NormalizeKey(key string) string {
	return strings.ReplaceAll(key, "\\", "/")
}

// MatchesKey reports whether the record's key equals query either exactly or
// after separator normalization on both sides.
func (p Paper) MatchesKey(query string) bool {
	if p.Key == query {
		return true
	}
	return NormalizeKey(p.Key) == NormalizeKey(query)
}
