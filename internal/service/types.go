package service

import (
	"time"

	"github.com/vanshika/supplytrace/internal/domain"
)

// PaginationMeta describes one page of a listing.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

// Page is a slice of results with its pagination metadata.
type Page[T any] struct {
	Items      []T            `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// ListParams filters and paginates listings. Filters that do not apply to a listing are ignored.
type ListParams struct {
	Page     int
	PageSize int
	Role     domain.Role
	Owner    domain.Ref
	Status   domain.OrderStatus
}

// Handoff is one custody step with the handling trader's name resolved.
type Handoff struct {
	Seq         int            `json:"seq"`
	Timestamp   time.Time      `json:"timestamp"`
	Location    domain.Address `json:"location"`
	Company     domain.Ref     `json:"company"`
	CompanyName string         `json:"companyName,omitempty"`
}

// CustodyChain is a commodity together with its ordered handoffs.
type CustodyChain struct {
	Commodity domain.Commodity `json:"commodity"`
	Handoffs  []Handoff        `json:"handoffs"`
}

// ReplayFailure records a stream entry the ledger rejected.
type ReplayFailure struct {
	Line       int
	Credential domain.Ref
	Err        error
}

// ReplayReport summarises a stream replay.
type ReplayReport struct {
	Committed int
	Failures  []ReplayFailure
}
