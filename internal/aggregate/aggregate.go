// Package aggregate folds canonical orders and per-day channel summaries
// into consolidated totals and period-bucketed time series. All folds are
// pure; roll-ups keep operating on raw accumulators so they reproduce
// direct computation at any coarser granularity.
package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dineops/pos-insights-manager/internal/entity"
	"github.com/dineops/pos-insights-manager/internal/normalize"
)

var oneHundred = decimal.NewFromInt(100)

// ratio is the single guarded-division helper every derived percentage
// goes through: a zero or negative denominator yields 0, never NaN or Inf.
func ratio(num, den decimal.Decimal) float64 {
	if den.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	f, _ := num.Div(den).Mul(oneHundred).Float64()
	return f
}

// Derive computes the derived ratio metrics for a finished set of
// accumulators. No rounding happens here; presentation rounds.
func Derive(acc entity.Accumulators) entity.ConsolidatedTotals {
	afterGST := acc.GrossSale.Sub(acc.GSTOnOrder)
	return entity.ConsolidatedTotals{
		Accumulators:      acc,
		GrossSaleAfterGST: afterGST,
		CommissionPercent: ratio(acc.CommissionAndTaxes, acc.NetBookValue),
		DiscountPercent:   ratio(acc.Discounts, afterGST),
		AdsPercent:        ratio(acc.Ads, afterGST),
	}
}

// OrderAccumulators maps one canonical order onto the summable fields.
// Direct-channel orders carry no ads or commission; those enter only via
// aggregator-supplied summaries.
func OrderAccumulators(o entity.CanonicalOrder) entity.Accumulators {
	return entity.Accumulators{
		NoOfOrders:       1,
		GrossSale:        o.NetAmount,
		GSTOnOrder:       o.TaxAmount,
		Discounts:        o.DiscountAmount,
		PackagingCharges: o.ChargeAmount,
		Payout:           o.NetAmount,
		NetSale:          o.NetAmount,
		NetBookValue:     o.NetAmount,
	}
}

// TotalsFromOrders folds canonical orders into one consolidated totals
// object.
func TotalsFromOrders(orders []entity.CanonicalOrder) entity.ConsolidatedTotals {
	var acc entity.Accumulators
	for _, o := range orders {
		acc.Add(OrderAccumulators(o))
	}
	return Derive(acc)
}

// TotalsFromSummaries folds pre-aggregated per-day channel summaries into
// one consolidated totals object.
func TotalsFromSummaries(summaries []entity.DailyChannelSummary) entity.ConsolidatedTotals {
	var acc entity.Accumulators
	for _, s := range summaries {
		acc.Add(s.Accumulators)
	}
	return Derive(acc)
}

// DailySummaries groups canonical orders of one restaurant into per-day,
// per-channel summaries, the shape the mirror persists and the period
// bucketing consumes.
func DailySummaries(restaurantID string, orders []entity.CanonicalOrder) []entity.DailyChannelSummary {
	type key struct {
		day     time.Time
		channel entity.Channel
	}
	grouped := make(map[key]*entity.DailyChannelSummary)
	var order []key
	for _, o := range orders {
		k := key{day: entity.Midnight(o.Day), channel: o.Channel}
		s, ok := grouped[k]
		if !ok {
			s = &entity.DailyChannelSummary{
				RestaurantID: restaurantID,
				Channel:      o.Channel,
				Day:          k.day,
				WeekStart:    entity.WeekStart(k.day),
			}
			grouped[k] = s
			order = append(order, k)
		}
		s.Accumulators.Add(OrderAccumulators(o))
	}

	summaries := make([]entity.DailyChannelSummary, 0, len(grouped))
	for _, k := range order {
		summaries = append(summaries, *grouped[k])
	}
	return summaries
}

// Periods buckets per-day channel summaries into a time series at the
// requested granularity. Summaries landing on the same (period, channel)
// pair sum elementwise.
func Periods(summaries []entity.DailyChannelSummary, g entity.Granularity) entity.TimeSeries {
	series := make(entity.TimeSeries)
	for _, s := range summaries {
		key := entity.PeriodKey(s.Day, s.WeekStart, g)
		bucket, ok := series[key]
		if !ok {
			bucket = make(map[entity.Channel]*entity.Accumulators)
			series[key] = bucket
		}
		acc, ok := bucket[s.Channel]
		if !ok {
			acc = &entity.Accumulators{}
			bucket[s.Channel] = acc
		}
		acc.Add(s.Accumulators)
	}
	return series
}

// SummarizeBucket derives the ratio metrics for a single period across the
// given channels (all channels when none are named). Derivation is lazy so
// the bucket's raw sums stay available for coarser roll-ups.
func SummarizeBucket(series entity.TimeSeries, period string, channels ...entity.Channel) entity.ConsolidatedTotals {
	return RollUp(series, []string{period}, channels...)
}

// RollUp sums the raw accumulators of the named periods and derives the
// ratio metrics once over the combined sums. Summing four weekly buckets
// therefore reproduces the month fetched directly.
func RollUp(series entity.TimeSeries, periods []string, channels ...entity.Channel) entity.ConsolidatedTotals {
	var acc entity.Accumulators
	for _, period := range periods {
		bucket, ok := series[period]
		if !ok {
			continue
		}
		if len(channels) == 0 {
			for _, a := range bucket {
				acc.Add(*a)
			}
			continue
		}
		for _, ch := range channels {
			if a, ok := bucket[ch]; ok {
				acc.Add(*a)
			}
		}
	}
	return Derive(acc)
}

// DiscountBreakdown decodes the pass-through discount blobs into a
// per-channel label→amount map. Values that do not coerce to a number are
// skipped rather than guessed.
func DiscountBreakdown(orders []entity.CanonicalOrder) map[entity.Channel]map[string]decimal.Decimal {
	breakdown := make(map[entity.Channel]map[string]decimal.Decimal)
	for _, o := range orders {
		if len(o.DiscountBreakdown) == 0 {
			continue
		}
		chm, ok := breakdown[o.Channel]
		if !ok {
			chm = make(map[string]decimal.Decimal)
			breakdown[o.Channel] = chm
		}
		for label, v := range o.DiscountBreakdown {
			d := normalize.ToDecimal(v)
			if d.IsZero() {
				continue
			}
			chm[label] = chm[label].Add(d)
		}
	}
	return breakdown
}
