package query

import (
	"context"
	"sort"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/progress"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Returns the per-chapter progression of an encadrement, grouped by subject
// with an overall average for the dashboard ring.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery contains the lookup parameters.
type GetProgressQuery struct {
	// EncadrementID is the subscription whose progress to fetch.
	EncadrementID string

	// Subject filters chapters by subject prefix; empty means all.
	Subject string
}

// Validate validates the query parameters.
func (q *GetProgressQuery) Validate() error {
	if q.EncadrementID == "" {
		return shared.NewDomainError("query", "GetProgress", shared.ErrEmptyValue, "encadrement_id is required")
	}
	return nil
}

// ChapterProgressDTO is the read model of one chapter's progression.
type ChapterProgressDTO struct {
	Chapter     string    `json:"chapter"`
	Subject     string    `json:"subject"`
	Progress    float64   `json:"progress"`
	IsComplete  bool      `json:"is_complete"`
	Notes       string    `json:"notes,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// GetProgressResult contains the query result.
type GetProgressResult struct {
	Chapters []ChapterProgressDTO `json:"chapters"`
	Total    int                  `json:"total"`

	// OverallProgress is the unweighted average over the returned chapters,
	// 0 when there are none.
	OverallProgress   float64   `json:"overall_progress"`
	CompletedChapters int       `json:"completed_chapters"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// GetProgressHandler handles GetProgressQuery.
type GetProgressHandler struct {
	progressions progress.Repository
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(progressions progress.Repository) *GetProgressHandler {
	return &GetProgressHandler{progressions: progressions}
}

// Handle executes the query.
func (h *GetProgressHandler) Handle(ctx context.Context, query GetProgressQuery) (*GetProgressResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	id, err := shared.NewEncadrementID(query.EncadrementID)
	if err != nil {
		return nil, err
	}

	byChapter, err := h.progressions.GetByEncadrement(ctx, id)
	if err != nil {
		return nil, err
	}

	dtos := make([]ChapterProgressDTO, 0, len(byChapter))
	var sum float64
	completed := 0
	for chapter, p := range byChapter {
		if query.Subject != "" && chapter.Subject() != query.Subject {
			continue
		}
		dto := ChapterProgressDTO{
			Chapter:     chapter.String(),
			Subject:     chapter.Subject(),
			Progress:    p.Progress.Float64(),
			IsComplete:  p.Progress.IsComplete(),
			Notes:       p.Notes,
			LastUpdated: p.LastUpdated,
		}
		dtos = append(dtos, dto)
		sum += dto.Progress
		if dto.IsComplete {
			completed++
		}
	}

	// Map iteration order is random; keep the API output stable.
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].Chapter < dtos[j].Chapter })

	overall := 0.0
	if len(dtos) > 0 {
		overall = sum / float64(len(dtos))
	}

	return &GetProgressResult{
		Chapters:          dtos,
		Total:             len(dtos),
		OverallProgress:   overall,
		CompletedChapters: completed,
		GeneratedAt:       time.Now().UTC(),
	}, nil
}
