package models

// PaginatedDrafts represents a paginated list of saved drafts
type PaginatedDrafts struct {
	Drafts      []*Draft `json:"drafts"`
	Page        uint32   `json:"page"`
	PageSize    uint32   `json:"page_size"`
	TotalPages  uint32   `json:"total_pages"`
	TotalDrafts uint32   `json:"total_drafts"`
	HasNext     bool     `json:"has_next"`
	HasPrev     bool     `json:"has_prev"`
}

// NewPaginatedDrafts creates a new paginated drafts response
func NewPaginatedDrafts(drafts []*Draft, page, pageSize, totalDrafts uint32) *PaginatedDrafts {
	totalPages := (totalDrafts + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	return &PaginatedDrafts{
		Drafts:      drafts,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		TotalDrafts: totalDrafts,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}
