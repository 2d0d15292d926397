package service

import (
	"context"
	"time"

	"github.com/Africahassucceed/celebsbridgenew/internal/config"
	"github.com/Africahassucceed/celebsbridgenew/internal/errs"
	"github.com/Africahassucceed/celebsbridgenew/internal/model"
	"github.com/Africahassucceed/celebsbridgenew/internal/repo"
	"github.com/shopspring/decimal"
)

// GlobalSnapshot is the admin dashboard view of every request.
type GlobalSnapshot struct {
	TotalRequests  int64           `json:"total_requests"`
	PendingCount   int64           `json:"pending_count"`
	ApprovedCount  int64           `json:"approved_count"`
	CompletedCount int64           `json:"completed_count"`
	CancelledCount int64           `json:"cancelled_count"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	AsOf           time.Time       `json:"as_of"`
}

// RequesterSnapshot is one requester's view of their own requests.
type RequesterSnapshot struct {
	RequesterID    string          `json:"requester_id"`
	TotalRequests  int64           `json:"total_requests"`
	PendingCount   int64           `json:"pending_count"`
	CompletedCount int64           `json:"completed_count"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	AsOf           time.Time       `json:"as_of"`
}

type tally struct {
	counts  map[model.Status]int64
	total   int64
	revenue decimal.Decimal
}

// tallyRows folds one grouped read; the total is the sum of the partitions, never a second query.
func tallyRows(rows []repo.StatusCount) tally {
	t := tally{counts: make(map[model.Status]int64, len(model.Statuses)), revenue: decimal.Zero}
	for _, r := range rows {
		t.counts[r.Status] += r.Count
		t.total += r.Count
		if r.Status == model.StatusCompleted {
			t.revenue = t.revenue.Add(r.Revenue)
		}
	}
	return t
}

// GlobalStats reports counts per status and revenue across all requests.
func (s *ShoutoutService) GlobalStats(ctx context.Context) (GlobalSnapshot, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.repo.CountByStatus(ctx, "")
	if err != nil {
		return GlobalSnapshot{}, err
	}
	t := tallyRows(rows)
	return GlobalSnapshot{
		TotalRequests:  t.total,
		PendingCount:   t.counts[model.StatusPending],
		ApprovedCount:  t.counts[model.StatusApproved],
		CompletedCount: t.counts[model.StatusCompleted],
		CancelledCount: t.counts[model.StatusCancelled],
		TotalRevenue:   s.revenue(t),
		AsOf:           s.now(),
	}, nil
}

// RequesterStats reports one requester's counts and what their completed requests cost.
func (s *ShoutoutService) RequesterStats(ctx context.Context, requesterID string) (RequesterSnapshot, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if requesterID == "" {
		return RequesterSnapshot{}, errs.Validation("requester_id", "is required")
	}
	rows, err := s.repo.CountByStatus(ctx, requesterID)
	if err != nil {
		return RequesterSnapshot{}, err
	}
	t := tallyRows(rows)
	return RequesterSnapshot{
		RequesterID:    requesterID,
		TotalRequests:  t.total,
		PendingCount:   t.counts[model.StatusPending],
		CompletedCount: t.counts[model.StatusCompleted],
		TotalSpent:     t.revenue,
		AsOf:           s.now(),
	}, nil
}

func (s *ShoutoutService) revenue(t tally) decimal.Decimal {
	if s.opts.RevenueMode == config.RevenueLegacyFlat {
		return s.opts.LegacyFlatPrice.Mul(decimal.NewFromInt(t.counts[model.StatusCompleted]))
	}
	return t.revenue
}
