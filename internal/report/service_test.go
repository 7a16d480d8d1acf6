package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineops/pos-insights-manager/internal/entity"
	"github.com/dineops/pos-insights-manager/internal/pos"
)

type fakeFetcher struct {
	byBranch map[string][]entity.RawOrder
	failures []entity.FetchFailure
	err      error
}

func (f *fakeFetcher) FetchRange(ctx context.Context, start, end time.Time, branchIDs []string) (map[string][]entity.RawOrder, []entity.FetchFailure, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	out := make(map[string][]entity.RawOrder, len(branchIDs))
	for _, id := range branchIDs {
		out[id] = f.byBranch[id]
	}
	return out, f.failures, nil
}

type fakeStore struct {
	upserted  []entity.DailyChannelSummary
	summaries []entity.DailyChannelSummary
	observed  map[string]struct{}
	upsertErr error
}

func (f *fakeStore) UpsertDailySummaries(ctx context.Context, summaries []entity.DailyChannelSummary) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, summaries...)
	return nil
}

func (f *fakeStore) GetDailySummaries(ctx context.Context, restaurantIDs []string, channels []entity.Channel, from, to time.Time) ([]entity.DailyChannelSummary, error) {
	return f.summaries, nil
}

func (f *fakeStore) ObservedDays(ctx context.Context, restaurantID string, from, to time.Time) (map[string]struct{}, error) {
	return f.observed, nil
}

func (f *fakeStore) Close() {}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(entity.DateLayout, s)
	require.NoError(t, err)
	return d
}

func rawOrder(dayStr, channel string, total float64) entity.RawOrder {
	return entity.RawOrder{
		Channel:     channel,
		Status:      "Completed",
		Day:         dayStr,
		TotalAmount: total,
		TaxAmount:   total / 10,
	}
}

func testService(f *fakeFetcher, st *fakeStore) *Service {
	cfg := &Config{ExcludeStatuses: []string{"Voided", "Cancelled"}}
	if st == nil {
		return New(cfg, f, nil)
	}
	return New(cfg, f, st)
}

func TestBuildInsights_Validation(t *testing.T) {
	svc := testService(&fakeFetcher{}, nil)

	_, err := svc.BuildInsights(context.Background(), InsightsRequest{
		Start: day(t, "2025-01-01"), End: day(t, "2025-01-02"),
	})
	assert.ErrorIs(t, err, ErrNoRestaurants)

	_, err = svc.BuildInsights(context.Background(), InsightsRequest{
		RestaurantIDs: []string{"r1"},
		Start:         day(t, "2025-01-05"), End: day(t, "2025-01-01"),
	})
	assert.ErrorIs(t, err, pos.ErrInvalidRange)
}

func TestBuildInsights_LiveAggregatesAndFlagsGaps(t *testing.T) {
	fetcher := &fakeFetcher{byBranch: map[string][]entity.RawOrder{
		"r1": {
			rawOrder("2025-01-01", "Takeaway", 950),
			rawOrder("2025-01-02", "Takeaway", 500),
			rawOrder("2025-01-04", "Takeaway", 300),
			rawOrder("2025-01-05", "Takeaway", 250),
		},
	}}
	svc := testService(fetcher, nil)

	rep, err := svc.BuildInsights(context.Background(), InsightsRequest{
		RestaurantIDs: []string{"r1"},
		Channels:      []entity.Channel{entity.ChannelTakeaway},
		Start:         day(t, "2025-01-01"),
		End:           day(t, "2025-01-05"),
		GroupBy:       GroupByTotal,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, rep.Consolidated.NoOfOrders)
	assert.Equal(t, "2000", rep.Consolidated.GrossSale.String())

	require.Len(t, rep.MissingByPlatform, 1)
	groups := rep.MissingByPlatform[string(entity.ChannelTakeaway)]
	require.Len(t, groups, 1)
	assert.Equal(t, "2025-01-03", groups[0].Start.Format(entity.DateLayout))
	assert.Equal(t, 1, groups[0].Days)

	require.Len(t, rep.MissingDates, 1)
	assert.Equal(t, "2025-01-03", rep.MissingDates[0].Format(entity.DateLayout))
}

func TestBuildInsights_PartialAvailability(t *testing.T) {
	fetcher := &fakeFetcher{
		byBranch: map[string][]entity.RawOrder{
			"r1": {rawOrder("2025-01-01", "Takeaway", 100)},
			// r2 returned nothing at all
		},
		failures: []entity.FetchFailure{
			{BranchID: "r2", Day: day(t, "2025-01-01"), Reason: "page request returned status 502"},
		},
	}
	svc := testService(fetcher, nil)

	rep, err := svc.BuildInsights(context.Background(), InsightsRequest{
		RestaurantIDs: []string{"r1", "r2"},
		Channels:      []entity.Channel{entity.ChannelTakeaway},
		Start:         day(t, "2025-01-01"),
		End:           day(t, "2025-01-01"),
		GroupBy:       GroupByTotal,
	})
	require.NoError(t, err)

	// usable data still aggregated
	assert.Equal(t, 1, rep.Consolidated.NoOfOrders)
	// the failed source is itemized, not fatal
	require.Len(t, rep.Excluded, 1)
	assert.Equal(t, "r2", rep.Excluded[0].Source)
	assert.Contains(t, rep.Excluded[0].Reason, "truncated")
}

func TestBuildInsights_UnknownChannelIsSurfacedNotGuessed(t *testing.T) {
	fetcher := &fakeFetcher{byBranch: map[string][]entity.RawOrder{
		"r1": {
			rawOrder("2025-01-01", "Takeaway", 100),
			{Status: "Completed", Day: "2025-01-01", TotalAmount: 999.0}, // no channel evidence
		},
	}}
	svc := testService(fetcher, nil)

	rep, err := svc.BuildInsights(context.Background(), InsightsRequest{
		RestaurantIDs: []string{"r1"},
		Channels:      []entity.Channel{entity.ChannelTakeaway},
		Start:         day(t, "2025-01-01"),
		End:           day(t, "2025-01-01"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Consolidated.NoOfOrders)
	assert.Equal(t, "100", rep.Consolidated.GrossSale.String())
	require.Len(t, rep.Excluded, 1)
	assert.Contains(t, rep.Excluded[0].Reason, "unresolvable channel")
}

func TestBuildInsights_CancelledMidRangeKeepsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the upstream serves the first day, then the caller aborts; later
	// days must fail without discarding what already arrived
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("day") != "2025-01-01" {
			cancel()
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(entity.RawOrderPage{
			Data: []entity.RawOrder{{Channel: "Takeaway", Status: "Completed", TotalAmount: 100.0}},
		})
	}))
	t.Cleanup(srv.Close)

	cli := pos.New(&pos.Config{
		BaseURL:              srv.URL,
		APIKey:               "test-key",
		IssuerID:             "test-issuer",
		SigningSecret:        "test-secret",
		MaxConcurrentFetches: 1,
	}, nil)
	svc := New(&Config{ExcludeStatuses: []string{"Voided", "Cancelled"}}, cli, nil)

	rep, err := svc.BuildInsights(ctx, InsightsRequest{
		RestaurantIDs: []string{"r1"},
		Channels:      []entity.Channel{entity.ChannelTakeaway},
		Start:         day(t, "2025-01-01"),
		End:           day(t, "2025-01-03"),
		GroupBy:       GroupByTotal,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Consolidated.NoOfOrders)
	assert.Equal(t, "100", rep.Consolidated.GrossSale.String())
	assert.NotEmpty(t, rep.Excluded)

	missing := make([]string, 0, len(rep.MissingDates))
	for _, d := range rep.MissingDates {
		missing = append(missing, d.Format(entity.DateLayout))
	}
	assert.NotContains(t, missing, "2025-01-01")
	assert.Contains(t, missing, "2025-01-02")
	assert.Contains(t, missing, "2025-01-03")
}

func TestBuildInsights_MirrorsLiveSummaries(t *testing.T) {
	fetcher := &fakeFetcher{byBranch: map[string][]entity.RawOrder{
		"r1": {rawOrder("2025-01-01", "Takeaway", 100)},
	}}
	st := &fakeStore{}
	svc := testService(fetcher, st)

	_, err := svc.BuildInsights(context.Background(), InsightsRequest{
		RestaurantIDs: []string{"r1"},
		Start:         day(t, "2025-01-01"),
		End:           day(t, "2025-01-01"),
	})
	require.NoError(t, err)
	require.Len(t, st.upserted, 1)
	assert.Equal(t, "r1", st.upserted[0].RestaurantID)
}

func TestBuildInsights_MirrorFailureDoesNotDegradeAnswer(t *testing.T) {
	fetcher := &fakeFetcher{byBranch: map[string][]entity.RawOrder{
		"r1": {rawOrder("2025-01-01", "Takeaway", 100)},
	}}
	st := &fakeStore{upsertErr: errors.New("mysql gone")}
	svc := testService(fetcher, st)

	rep, err := svc.BuildInsights(context.Background(), InsightsRequest{
		RestaurantIDs: []string{"r1"},
		Start:         day(t, "2025-01-01"),
		End:           day(t, "2025-01-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Consolidated.NoOfOrders)
}

func TestBuildInsights_FromMirror(t *testing.T) {
	st := &fakeStore{summaries: []entity.DailyChannelSummary{
		{
			RestaurantID: "r1",
			Channel:      entity.ChannelZomato,
			Day:          day(t, "2025-01-01"),
			WeekStart:    day(t, "2024-12-30"),
			Accumulators: entity.Accumulators{NoOfOrders: 3},
		},
	}}
	svc := testService(&fakeFetcher{err: errors.New("upstream must not be called")}, st)

	rep, err := svc.BuildInsights(context.Background(), InsightsRequest{
		RestaurantIDs: []string{"r1"},
		Channels:      []entity.Channel{entity.ChannelZomato},
		Start:         day(t, "2025-01-01"),
		End:           day(t, "2025-01-01"),
		Source:        SourceMirror,
		GroupBy:       "week",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Consolidated.NoOfOrders)
	require.Len(t, rep.Series, 1)
	_, ok := rep.Series["2024-12-30"]
	assert.True(t, ok, "week bucket keyed by upstream-supplied week start")
}

func TestBuildInsights_MirrorModeWithoutStore(t *testing.T) {
	svc := testService(&fakeFetcher{}, nil)
	_, err := svc.BuildInsights(context.Background(), InsightsRequest{
		RestaurantIDs: []string{"r1"},
		Start:         day(t, "2025-01-01"),
		End:           day(t, "2025-01-01"),
		Source:        SourceMirror,
	})
	assert.ErrorIs(t, err, ErrMirrorDisabled)
}

func TestCoverage_FromMirror(t *testing.T) {
	st := &fakeStore{observed: map[string]struct{}{
		"2025-01-01": {},
		"2025-01-02": {},
		"2025-01-04": {},
		"2025-01-05": {},
	}}
	svc := testService(&fakeFetcher{}, st)

	rep, err := svc.Coverage(context.Background(), "r1", day(t, "2025-01-01"), day(t, "2025-01-05"))
	require.NoError(t, err)

	assert.Equal(t, 5, rep.ExpectedDays)
	assert.Equal(t, 4, rep.ObservedDays)
	require.Len(t, rep.Groups, 1)
	assert.Equal(t, 1, rep.Groups[0].Days)
	require.Len(t, rep.MissingDates, 1)
	assert.Equal(t, "2025-01-03", rep.MissingDates[0].Format(entity.DateLayout))
}

func TestCoverage_Validation(t *testing.T) {
	svc := testService(&fakeFetcher{}, &fakeStore{})

	_, err := svc.Coverage(context.Background(), "", day(t, "2025-01-01"), day(t, "2025-01-02"))
	assert.ErrorIs(t, err, ErrNoRestaurants)

	_, err = svc.Coverage(context.Background(), "r1", day(t, "2025-01-05"), day(t, "2025-01-01"))
	assert.ErrorIs(t, err, pos.ErrInvalidRange)
}
