package dependency

import (
	"context"
	"time"

	"github.com/dineops/pos-insights-manager/internal/entity"
)

type (
	// RangeFetcher retrieves raw orders for an inclusive date range across
	// a set of POS branches. Per-day truncations come back as failures,
	// never as an error; the error return is for input validation only.
	RangeFetcher interface {
		FetchRange(ctx context.Context, start, end time.Time, branchIDs []string) (map[string][]entity.RawOrder, []entity.FetchFailure, error)
	}

	// SummaryStore is the daily-summary mirror.
	SummaryStore interface {
		UpsertDailySummaries(ctx context.Context, summaries []entity.DailyChannelSummary) error
		GetDailySummaries(ctx context.Context, restaurantIDs []string, channels []entity.Channel, from, to time.Time) ([]entity.DailyChannelSummary, error)
		ObservedDays(ctx context.Context, restaurantID string, from, to time.Time) (map[string]struct{}, error)
		Close()
	}

	// DayPageCache stores the raw order payload of one (branch, day) fetch.
	// Past days are immutable upstream and may be kept indefinitely.
	DayPageCache interface {
		Get(branchID, day string) ([]byte, bool)
		Set(branchID, day string, payload []byte, ttl time.Duration) error
	}
)
