package pos

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dineops/pos-insights-manager/internal/entity"
)

// ErrInvalidRange is returned when the requested end date precedes the
// start date. It is surfaced before any fetch is attempted.
var ErrInvalidRange = errors.New("end date is before start date")

const defaultMaxConcurrentFetches = 8

// FetchRange retrieves all orders for every branch over an inclusive date
// range. Day×branch fetches run concurrently up to the configured limit;
// pagination inside one day stays sequential because each page depends on
// the previous cursor. Results are merged per branch by concatenation,
// since each day's cursor space is disjoint no cross-day dedup is needed.
//
// A truncated or failed day never fails the range: it is returned as an
// entity.FetchFailure alongside whatever was retrieved.
func (c *Client) FetchRange(ctx context.Context, start, end time.Time, branchIDs []string) (map[string][]entity.RawOrder, []entity.FetchFailure, error) {
	days := entity.ExpandDays(start, end)
	if len(days) == 0 {
		return nil, nil, ErrInvalidRange
	}

	type fetchSlot struct {
		branchID string
		day      time.Time
		orders   []entity.RawOrder
		err      error
	}

	slots := make([]fetchSlot, 0, len(days)*len(branchIDs))
	for _, branchID := range branchIDs {
		for _, day := range days {
			slots = append(slots, fetchSlot{branchID: branchID, day: day})
		}
	}

	limit := c.c.MaxConcurrentFetches
	if limit <= 0 {
		limit = defaultMaxConcurrentFetches
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range slots {
		s := &slots[i]
		g.Go(func() error {
			// each goroutine writes only its own slot; failures stay
			// local to the day
			s.orders, s.err = c.FetchDay(gctx, s.branchID, s.day)
			return nil
		})
	}
	_ = g.Wait()

	byBranch := make(map[string][]entity.RawOrder, len(branchIDs))
	var failures []entity.FetchFailure
	for _, s := range slots {
		byBranch[s.branchID] = append(byBranch[s.branchID], s.orders...)
		if s.err != nil {
			slog.Default().WarnContext(ctx, "day fetch truncated",
				slog.String("branch", s.branchID),
				slog.String("day", s.day.Format(entity.DateLayout)),
				slog.String("err", s.err.Error()))
			failures = append(failures, entity.FetchFailure{
				BranchID: s.branchID,
				Day:      s.day,
				Reason:   s.err.Error(),
			})
		}
	}
	return byBranch, failures, nil
}
