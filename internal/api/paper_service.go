package api

import (
	"context"
	"sort"

	"papermill/internal/paper"
)

// PaperReader abstracts record store reads needed for API queries.
type PaperReader interface {
	Load(ctx context.Context) ([]paper.Paper, error)
	GetByKey(ctx context.Context, key string) (*paper.Paper, error)
}

// PaperService exposes read-only paper queries returning API DTOs.
type PaperService struct {
	store PaperReader
}

// NewPaperService constructs a PaperService around the provided reader.
func NewPaperService(store PaperReader) *PaperService {
	if store == nil {
		return nil
	}
	return &PaperService{store: store}
}

// List returns papers filtered by status, sorted newest first, paginated by
// offset and limit. A non-positive limit returns everything past offset.
func (s *PaperService) List(ctx context.Context, statusFilter string, offset, limit int) (ListResponse, error) {
	if s == nil || s.store == nil {
		return ListResponse{}, nil
	}
	records, err := s.store.Load(ctx)
	if err != nil {
		return ListResponse{}, err
	}

	filtered := records[:0:0]
	for _, rec := range records {
		if statusFilter != "" && string(rec.Status) != statusFilter {
			continue
		}
		filtered = append(filtered, rec)
	}
	sort.SliceStable(filtered, func(a, b int) bool {
		ta, tb := filtered[a].UploadedAt, filtered[b].UploadedAt
		switch {
		case ta == nil:
			return false
		case tb == nil:
			return true
		default:
			return ta.After(*tb)
		}
	})

	total := len(filtered)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	page := filtered[offset:]
	if limit > 0 && limit < len(page) {
		page = page[:limit]
	}
	return ListResponse{Items: FromPapers(page), Total: total, Offset: offset, Limit: limit}, nil
}

// Stats returns record counts per status.
func (s *PaperService) Stats(ctx context.Context) (StatsResponse, error) {
	if s == nil || s.store == nil {
		return StatsResponse{}, nil
	}
	records, err := s.store.Load(ctx)
	if err != nil {
		return StatsResponse{}, err
	}
	counts := make(map[string]int, len(paper.AllStatuses()))
	for _, status := range paper.AllStatuses() {
		counts[string(status)] = 0
	}
	for _, rec := range records {
		counts[string(rec.Status)]++
	}
	return StatsResponse{Total: len(records), Counts: counts}, nil
}

// Describe fetches a single paper DTO, or nil when absent.
func (s *PaperService) Describe(ctx context.Context, key string) (*PaperItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	rec, err := s.store.GetByKey(ctx, key)
	if err != nil || rec == nil {
		return nil, err
	}
	item := FromPaper(*rec)
	return &item, nil
}
