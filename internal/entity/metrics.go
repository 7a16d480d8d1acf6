package entity

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Accumulators is the fixed set of raw sums every report is built from.
// Buckets and consolidated totals share this shape so a roll-up over
// buckets reproduces the direct computation exactly.
type Accumulators struct {
	NoOfOrders         int             `db:"no_of_orders" json:"noOfOrders"`
	GrossSale          decimal.Decimal `db:"gross_sale" json:"grossSale"`
	GSTOnOrder         decimal.Decimal `db:"gst_on_order" json:"gstOnOrder"`
	Discounts          decimal.Decimal `db:"discounts" json:"discounts"`
	PackagingCharges   decimal.Decimal `db:"packaging_charges" json:"packagingCharges"`
	Ads                decimal.Decimal `db:"ads" json:"ads"`
	CommissionAndTaxes decimal.Decimal `db:"commission_and_taxes" json:"commissionAndTaxes"`
	Payout             decimal.Decimal `db:"payout" json:"payout"`
	NetSale            decimal.Decimal `db:"net_sale" json:"netSale"`
	NetBookValue       decimal.Decimal `db:"net_book_value" json:"netBookValue"`
}

// Add folds b into a elementwise.
func (a *Accumulators) Add(b Accumulators) {
	a.NoOfOrders += b.NoOfOrders
	a.GrossSale = a.GrossSale.Add(b.GrossSale)
	a.GSTOnOrder = a.GSTOnOrder.Add(b.GSTOnOrder)
	a.Discounts = a.Discounts.Add(b.Discounts)
	a.PackagingCharges = a.PackagingCharges.Add(b.PackagingCharges)
	a.Ads = a.Ads.Add(b.Ads)
	a.CommissionAndTaxes = a.CommissionAndTaxes.Add(b.CommissionAndTaxes)
	a.Payout = a.Payout.Add(b.Payout)
	a.NetSale = a.NetSale.Add(b.NetSale)
	a.NetBookValue = a.NetBookValue.Add(b.NetBookValue)
}

// ConsolidatedTotals is one report's final accumulators plus the derived
// ratio metrics. Derived fields are computed once accumulation is done and
// are never part of the summable state.
type ConsolidatedTotals struct {
	Accumulators

	GrossSaleAfterGST decimal.Decimal
	CommissionPercent float64
	DiscountPercent   float64
	AdsPercent        float64
}

// DailyChannelSummary is the pre-aggregated per-day, per-channel shape the
// mirror stores and the period bucketing consumes.
type DailyChannelSummary struct {
	RestaurantID string    `db:"restaurant_id"`
	Channel      Channel   `db:"channel"`
	Day          time.Time `db:"day"`
	// WeekStart is the upstream-defined first day of the ISO week the
	// summary's day falls into.
	WeekStart time.Time `db:"week_start"`

	Accumulators
}

// TimeSeries maps a period key to the per-channel accumulators observed in
// that bucket. Keys sort lexicographically in chronological order.
type TimeSeries map[string]map[Channel]*Accumulators

// SortedKeys returns the series' period keys in chronological order.
func (ts TimeSeries) SortedKeys() []string {
	keys := make([]string, 0, len(ts))
	for k := range ts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
