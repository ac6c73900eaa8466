package domain

import (
	"fmt"
	"time"
)

type SortField string

const (
	SortByCreatedAt    SortField = "created_at"
	SortByUpdatedAt    SortField = "updated_at"
	SortByMessageCount SortField = "message_count"
	SortByAgentCount   SortField = "agent_count"
	SortByRating       SortField = "rating"
)

var allSortFields = []SortField{
	SortByCreatedAt,
	SortByUpdatedAt,
	SortByMessageCount,
	SortByAgentCount,
	SortByRating,
}

func (f SortField) Valid() bool {
	for _, known := range allSortFields {
		if f == known {
			return true
		}
	}
	return false
}

func ParseSortField(raw string) (SortField, error) {
	field := SortField(raw)
	if !field.Valid() {
		return "", WrapError(ErrInvalidInput, "parse sort field", fmt.Errorf("unknown sort field %q", raw))
	}
	return field, nil
}

type SortSpec struct {
	Field      SortField `json:"field"`
	Descending bool      `json:"descending"`
}

// SearchParams are conjunctive filters over threads. An empty/nil dimension
// means no constraint on that dimension.
type SearchParams struct {
	Query         string             `json:"query,omitempty"`
	Agents        []Agent            `json:"agents,omitempty"`
	Contexts      []DashboardContext `json:"contexts,omitempty"`
	UpdatedAfter  *time.Time         `json:"updated_after,omitempty"`
	UpdatedBefore *time.Time         `json:"updated_before,omitempty"`
	HasHandoffs   *bool              `json:"has_handoffs,omitempty"`
	Pinned        *bool              `json:"pinned,omitempty"`
	Archived      *bool              `json:"archived,omitempty"`
	MinRating     int                `json:"min_rating,omitempty"`
	Tags          []string           `json:"tags,omitempty"`
	Sort          SortSpec           `json:"sort,omitempty"`
}
