// Package report builds consolidated sales reports: it drives the upstream
// fetch, normalization, aggregation and coverage checks, and accounts for
// every source that could not contribute.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/dineops/pos-insights-manager/internal/aggregate"
	"github.com/dineops/pos-insights-manager/internal/coverage"
	"github.com/dineops/pos-insights-manager/internal/dependency"
	"github.com/dineops/pos-insights-manager/internal/entity"
	"github.com/dineops/pos-insights-manager/internal/normalize"
	"github.com/dineops/pos-insights-manager/internal/pos"
)

var (
	// ErrNoRestaurants is returned when a request names no restaurant ids.
	ErrNoRestaurants = errors.New("no restaurant ids in request")
	// ErrMirrorDisabled is returned for mirror-backed operations when no
	// summary store is configured.
	ErrMirrorDisabled = errors.New("summary mirror is not configured")
)

const (
	SourceLive   = "live"
	SourceMirror = "mirror"

	GroupByTotal = "total"
)

type Config struct {
	// ExcludeStatuses filters orders out before aggregation, e.g. voided
	// or cancelled states.
	ExcludeStatuses []string `mapstructure:"exclude_statuses"`
	DefaultChannels []string `mapstructure:"default_channels"`
}

// Service builds reports. The summary store is optional; without it the
// service runs live-only and mirror-backed requests fail explicitly.
type Service struct {
	c       *Config
	fetcher dependency.RangeFetcher
	store   dependency.SummaryStore
}

func New(c *Config, fetcher dependency.RangeFetcher, store dependency.SummaryStore) *Service {
	return &Service{c: c, fetcher: fetcher, store: store}
}

// InsightsRequest is one reporting-surface query.
type InsightsRequest struct {
	RestaurantIDs []string
	Channels      []entity.Channel
	Start         time.Time
	End           time.Time
	GroupBy       string
	Source        string
}

// SourceError itemizes one source that could not contribute to a report.
type SourceError struct {
	Source string
	Reason string
}

// InsightsReport is the aggregate answer plus everything the caller needs
// to qualify it: what is missing and why.
type InsightsReport struct {
	Consolidated      entity.ConsolidatedTotals
	Series            entity.TimeSeries
	Granularity       entity.Granularity
	DiscountBreakdown map[entity.Channel]map[string]decimal.Decimal
	Excluded          []SourceError
	MissingByPlatform map[string][]entity.MissingDateGroup
	MissingDates      []time.Time
}

// BuildInsights builds one consolidated report. Partial availability is
// never an error: the report carries whatever aggregated cleanly together
// with the itemized exclusions and coverage gaps.
func (s *Service) BuildInsights(ctx context.Context, req InsightsRequest) (*InsightsReport, error) {
	if len(req.RestaurantIDs) == 0 {
		return nil, ErrNoRestaurants
	}
	if entity.Midnight(req.Start).After(entity.Midnight(req.End)) {
		return nil, pos.ErrInvalidRange
	}

	channels := req.Channels
	if len(channels) == 0 {
		channels = s.defaultChannels()
	}

	var (
		summaries []entity.DailyChannelSummary
		breakdown map[entity.Channel]map[string]decimal.Decimal
		excluded  []SourceError
		err       error
	)
	if req.Source == SourceMirror {
		summaries, err = s.mirrorSummaries(ctx, req, channels)
		if err != nil {
			return nil, err
		}
	} else {
		summaries, breakdown, excluded = s.liveSummaries(ctx, req, channels)
	}

	granularity := entity.GranularityFromGroupBy(req.GroupBy)
	rng := entity.DateRange{
		Start:         req.Start,
		End:           req.End,
		Channels:      channels,
		RestaurantIDs: req.RestaurantIDs,
	}

	missingByPlatform := s.missingByPlatform(rng, channels, summaries, req.GroupBy)

	return &InsightsReport{
		Consolidated:      aggregate.TotalsFromSummaries(summaries),
		Series:            aggregate.Periods(summaries, granularity),
		Granularity:       granularity,
		DiscountBreakdown: breakdown,
		Excluded:          excluded,
		MissingByPlatform: missingByPlatform,
		MissingDates:      coverage.Union(missingByPlatform),
	}, nil
}

func (s *Service) defaultChannels() []entity.Channel {
	if len(s.c.DefaultChannels) == 0 {
		return []entity.Channel{
			entity.ChannelTakeaway,
			entity.ChannelZomato,
			entity.ChannelSwiggy,
			entity.ChannelSubscription,
		}
	}
	channels := make([]entity.Channel, len(s.c.DefaultChannels))
	for i, ch := range s.c.DefaultChannels {
		channels[i] = entity.Channel(ch)
	}
	return channels
}

func (s *Service) mirrorSummaries(ctx context.Context, req InsightsRequest, channels []entity.Channel) ([]entity.DailyChannelSummary, error) {
	if s.store == nil {
		return nil, ErrMirrorDisabled
	}
	summaries, err := s.store.GetDailySummaries(ctx, req.RestaurantIDs, channels, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("can't read mirrored summaries: %w", err)
	}
	return summaries, nil
}

// liveSummaries fetches and folds per restaurant. Sources that failed
// entirely, truncated days and unresolved-channel orders all land in the
// exclusion list; whatever data arrived is still used.
func (s *Service) liveSummaries(ctx context.Context, req InsightsRequest, channels []entity.Channel) ([]entity.DailyChannelSummary, map[entity.Channel]map[string]decimal.Decimal, []SourceError) {
	wanted := make(map[entity.Channel]struct{}, len(channels))
	for _, ch := range channels {
		wanted[ch] = struct{}{}
	}

	var (
		summaries []entity.DailyChannelSummary
		allOrders []entity.CanonicalOrder
		excluded  []SourceError
	)

	byBranch, failures, err := s.fetcher.FetchRange(ctx, req.Start, req.End, req.RestaurantIDs)
	if err != nil {
		// validated above; a range error here means nothing was fetched
		for _, id := range req.RestaurantIDs {
			excluded = append(excluded, SourceError{Source: id, Reason: err.Error()})
		}
		return nil, nil, excluded
	}
	for _, f := range failures {
		excluded = append(excluded, SourceError{
			Source: f.BranchID,
			Reason: fmt.Sprintf("day %s truncated: %s", f.Day.Format(entity.DateLayout), f.Reason),
		})
	}

	for _, restaurantID := range req.RestaurantIDs {
		orders := normalize.NormalizeAll(byBranch[restaurantID], entity.ChannelAuto, s.c.ExcludeStatuses)

		kept := make([]entity.CanonicalOrder, 0, len(orders))
		unresolved := 0
		for _, o := range orders {
			if o.Channel == entity.ChannelUnknown {
				unresolved++
				continue
			}
			if _, ok := wanted[o.Channel]; ok {
				kept = append(kept, o)
			}
		}
		if unresolved > 0 {
			excluded = append(excluded, SourceError{
				Source: restaurantID,
				Reason: fmt.Sprintf("%d orders with unresolvable channel attribution", unresolved),
			})
		}

		summaries = append(summaries, aggregate.DailySummaries(restaurantID, kept)...)
		allOrders = append(allOrders, kept...)
	}

	s.mirror(ctx, summaries)

	return summaries, aggregate.DiscountBreakdown(allOrders), excluded
}

// mirror persists fresh summaries best-effort; a mirror failure never
// degrades the live answer.
func (s *Service) mirror(ctx context.Context, summaries []entity.DailyChannelSummary) {
	if s.store == nil || len(summaries) == 0 {
		return
	}
	if err := s.store.UpsertDailySummaries(ctx, summaries); err != nil {
		slog.Default().WarnContext(ctx, "failed to mirror daily summaries",
			slog.String("err", err.Error()))
	}
}

// missingByPlatform runs the day-resolution coverage check. In "total"
// mode it fans out per platform so each channel's gaps stay distinct; in
// bucketed modes one combined check is kept under the pseudo-platform "all".
func (s *Service) missingByPlatform(rng entity.DateRange, channels []entity.Channel, summaries []entity.DailyChannelSummary, groupBy string) map[string][]entity.MissingDateGroup {
	if groupBy == GroupByTotal || groupBy == "" {
		observedByPlatform := make(map[string]map[string]struct{}, len(channels))
		for _, ch := range channels {
			observedByPlatform[string(ch)] = make(map[string]struct{})
		}
		for _, sum := range summaries {
			observed, ok := observedByPlatform[string(sum.Channel)]
			if !ok {
				observed = make(map[string]struct{})
				observedByPlatform[string(sum.Channel)] = observed
			}
			observed[sum.Day.Format(entity.DateLayout)] = struct{}{}
		}
		return coverage.FindMissingByPlatform(rng, observedByPlatform)
	}

	observed := make(map[string]struct{}, len(summaries))
	for _, sum := range summaries {
		observed[sum.Day.Format(entity.DateLayout)] = struct{}{}
	}
	return map[string][]entity.MissingDateGroup{
		"all": coverage.FindMissingDates(rng, observed),
	}
}

// CoverageReport answers the standalone gap-check endpoint from the mirror.
type CoverageReport struct {
	RestaurantID string
	Start        time.Time
	End          time.Time
	Groups       []entity.MissingDateGroup
	MissingDates []time.Time
	ExpectedDays int
	ObservedDays int
}

// Coverage computes missing dates for one restaurant from the mirror.
func (s *Service) Coverage(ctx context.Context, restaurantID string, start, end time.Time) (*CoverageReport, error) {
	if restaurantID == "" {
		return nil, ErrNoRestaurants
	}
	if entity.Midnight(start).After(entity.Midnight(end)) {
		return nil, pos.ErrInvalidRange
	}
	if s.store == nil {
		return nil, ErrMirrorDisabled
	}

	observed, err := s.store.ObservedDays(ctx, restaurantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("can't read observed days: %w", err)
	}

	rng := entity.DateRange{Start: start, End: end, RestaurantIDs: []string{restaurantID}}
	groups := coverage.FindMissingDates(rng, observed)
	missing := coverage.Union(map[string][]entity.MissingDateGroup{restaurantID: groups})

	return &CoverageReport{
		RestaurantID: restaurantID,
		Start:        entity.Midnight(start),
		End:          entity.Midnight(end),
		Groups:       groups,
		MissingDates: missing,
		ExpectedDays: len(entity.ExpandDays(start, end)),
		ObservedDays: len(observed),
	}, nil
}
