// Package dto holds the reporting surface's wire shapes and the entity
// conversions. Currency rounding to 2 decimals happens here and only here;
// the aggregation layer keeps full precision.
package dto

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dineops/pos-insights-manager/internal/entity"
	"github.com/dineops/pos-insights-manager/internal/report"
)

// InsightsRequest is the reporting surface's query payload.
type InsightsRequest struct {
	RestaurantIds []string `json:"restaurantIds"`
	Channels      []string `json:"channels"`
	StartDate     string   `json:"startDate"`
	EndDate       string   `json:"endDate"`
	GroupBy       string   `json:"groupBy"`
	Source        string   `json:"source,omitempty"`
}

// ToReportRequest validates the wire payload into a service request.
func (r InsightsRequest) ToReportRequest() (report.InsightsRequest, error) {
	start, err := time.ParseInLocation(entity.DateLayout, r.StartDate, time.UTC)
	if err != nil {
		return report.InsightsRequest{}, fmt.Errorf("invalid startDate %q: %w", r.StartDate, err)
	}
	end, err := time.ParseInLocation(entity.DateLayout, r.EndDate, time.UTC)
	if err != nil {
		return report.InsightsRequest{}, fmt.Errorf("invalid endDate %q: %w", r.EndDate, err)
	}
	channels := make([]entity.Channel, len(r.Channels))
	for i, ch := range r.Channels {
		channels[i] = entity.Channel(ch)
	}
	return report.InsightsRequest{
		RestaurantIDs: r.RestaurantIds,
		Channels:      channels,
		Start:         start,
		End:           end,
		GroupBy:       r.GroupBy,
		Source:        r.Source,
	}, nil
}

// ChannelMetrics is the per-bucket accumulator shape on the wire.
type ChannelMetrics struct {
	NoOfOrders         int     `json:"noOfOrders"`
	GrossSale          float64 `json:"grossSale"`
	GstOnOrder         float64 `json:"gstOnOrder"`
	Discounts          float64 `json:"discounts"`
	PackagingCharges   float64 `json:"packagingCharges"`
	Ads                float64 `json:"ads"`
	CommissionAndTaxes float64 `json:"commissionAndTaxes"`
	Payout             float64 `json:"payout"`
	NetSale            float64 `json:"netSale"`
	NetBookValue       float64 `json:"netBookValue"`
}

// ConsolidatedInsights extends the accumulators with the derived fields.
type ConsolidatedInsights struct {
	ChannelMetrics

	GrossSaleAfterGst float64 `json:"grossSaleAfterGst"`
	CommissionPercent float64 `json:"commissionPercent"`
	DiscountPercent   float64 `json:"discountPercent"`
	AdsPercent        float64 `json:"adsPercent"`
}

// TimeSeriesEntry flattens to {"period": ..., "<channel>": {...}} on the
// wire, matching what the dashboard charts consume.
type TimeSeriesEntry struct {
	Period   string
	Channels map[string]ChannelMetrics
}

func (e TimeSeriesEntry) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(e.Channels)+1)
	flat["period"] = e.Period
	for ch, metrics := range e.Channels {
		flat[ch] = metrics
	}
	return json.Marshal(flat)
}

// ExcludedSource itemizes one source that did not contribute.
type ExcludedSource struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// MissingDateRange is one run of consecutive missing days.
type MissingDateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Days      int    `json:"days"`
}

// InsightsResponse is the reporting surface's answer.
type InsightsResponse struct {
	ConsolidatedInsights ConsolidatedInsights          `json:"consolidatedInsights"`
	TimeSeriesData       []TimeSeriesEntry             `json:"timeSeriesData"`
	DiscountBreakdown    map[string]map[string]float64 `json:"discountBreakdown,omitempty"`
	ExcludedSources      []ExcludedSource              `json:"excludedSources,omitempty"`
	MissingByPlatform    map[string][]MissingDateRange `json:"missingByPlatform,omitempty"`
	MissingDates         []string                      `json:"missingDates,omitempty"`
}

// ConvertInsightsReport maps the service result onto the wire shape.
func ConvertInsightsReport(r *report.InsightsReport) InsightsResponse {
	resp := InsightsResponse{
		ConsolidatedInsights: convertTotals(r.Consolidated),
		TimeSeriesData:       convertSeries(r.Series),
		DiscountBreakdown:    convertBreakdown(r.DiscountBreakdown),
		MissingByPlatform:    convertMissing(r.MissingByPlatform),
		MissingDates:         formatDates(r.MissingDates),
	}
	for _, ex := range r.Excluded {
		resp.ExcludedSources = append(resp.ExcludedSources, ExcludedSource{Source: ex.Source, Reason: ex.Reason})
	}
	return resp
}

// CoverageResponse is the gap-check endpoint's answer.
type CoverageResponse struct {
	MissingDates []string           `json:"missingDates"`
	Groups       []MissingDateRange `json:"groups"`
	Summary      CoverageSummary    `json:"summary"`
}

type CoverageSummary struct {
	RestaurantId string `json:"restaurantId"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	ExpectedDays int    `json:"expectedDays"`
	ObservedDays int    `json:"observedDays"`
	MissingDays  int    `json:"missingDays"`
}

// ConvertCoverageReport maps the coverage result onto the wire shape.
func ConvertCoverageReport(r *report.CoverageReport) CoverageResponse {
	return CoverageResponse{
		MissingDates: formatDates(r.MissingDates),
		Groups:       convertGroups(r.Groups),
		Summary: CoverageSummary{
			RestaurantId: r.RestaurantID,
			StartDate:    r.Start.Format(entity.DateLayout),
			EndDate:      r.End.Format(entity.DateLayout),
			ExpectedDays: r.ExpectedDays,
			ObservedDays: r.ObservedDays,
			MissingDays:  len(r.MissingDates),
		},
	}
}

func convertTotals(t entity.ConsolidatedTotals) ConsolidatedInsights {
	return ConsolidatedInsights{
		ChannelMetrics:    convertAccumulators(t.Accumulators),
		GrossSaleAfterGst: money(t.GrossSaleAfterGST),
		CommissionPercent: roundPercent(t.CommissionPercent),
		DiscountPercent:   roundPercent(t.DiscountPercent),
		AdsPercent:        roundPercent(t.AdsPercent),
	}
}

func convertAccumulators(a entity.Accumulators) ChannelMetrics {
	return ChannelMetrics{
		NoOfOrders:         a.NoOfOrders,
		GrossSale:          money(a.GrossSale),
		GstOnOrder:         money(a.GSTOnOrder),
		Discounts:          money(a.Discounts),
		PackagingCharges:   money(a.PackagingCharges),
		Ads:                money(a.Ads),
		CommissionAndTaxes: money(a.CommissionAndTaxes),
		Payout:             money(a.Payout),
		NetSale:            money(a.NetSale),
		NetBookValue:       money(a.NetBookValue),
	}
}

func convertSeries(series entity.TimeSeries) []TimeSeriesEntry {
	entries := make([]TimeSeriesEntry, 0, len(series))
	for _, period := range series.SortedKeys() {
		entry := TimeSeriesEntry{Period: period, Channels: make(map[string]ChannelMetrics)}
		for ch, acc := range series[period] {
			entry.Channels[string(ch)] = convertAccumulators(*acc)
		}
		entries = append(entries, entry)
	}
	return entries
}

func convertBreakdown(b map[entity.Channel]map[string]decimal.Decimal) map[string]map[string]float64 {
	if len(b) == 0 {
		return nil
	}
	out := make(map[string]map[string]float64, len(b))
	for ch, labels := range b {
		m := make(map[string]float64, len(labels))
		for label, amount := range labels {
			m[label] = money(amount)
		}
		out[string(ch)] = m
	}
	return out
}

func convertMissing(byPlatform map[string][]entity.MissingDateGroup) map[string][]MissingDateRange {
	if len(byPlatform) == 0 {
		return nil
	}
	out := make(map[string][]MissingDateRange, len(byPlatform))
	for platform, groups := range byPlatform {
		out[platform] = convertGroups(groups)
	}
	return out
}

func convertGroups(groups []entity.MissingDateGroup) []MissingDateRange {
	out := make([]MissingDateRange, len(groups))
	for i, g := range groups {
		out[i] = MissingDateRange{
			StartDate: g.Start.Format(entity.DateLayout),
			EndDate:   g.End.Format(entity.DateLayout),
			Days:      g.Days,
		}
	}
	return out
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(entity.DateLayout)
	}
	return out
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func roundPercent(f float64) float64 {
	return math.Round(f*100) / 100
}
