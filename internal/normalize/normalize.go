// Package normalize maps raw, channel-specific POS order payloads into the
// canonical order shape and resolves ambiguous channel labels.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dineops/pos-insights-manager/internal/entity"
)

// Normalize maps one raw order into a canonical order. It reports false
// when the order is filtered out: channel mismatch against a pinned target,
// or an excluded status. Monetary fields coerce to zero when absent or
// non-numeric, so the aggregator never sees a missing field.
func Normalize(raw entity.RawOrder, target entity.Channel, excludeStatuses []string) (entity.CanonicalOrder, bool) {
	for _, st := range excludeStatuses {
		if strings.EqualFold(raw.Status, st) {
			return entity.CanonicalOrder{}, false
		}
	}

	channel, provenance := ResolveChannel(raw)
	if target != entity.ChannelAuto && channel != target {
		return entity.CanonicalOrder{}, false
	}

	day, _ := time.ParseInLocation(entity.DateLayout, raw.Day, time.UTC)

	return entity.CanonicalOrder{
		InvoiceNo:         raw.InvoiceNo,
		Channel:           channel,
		Provenance:        provenance,
		Status:            raw.Status,
		BranchID:          raw.BranchID,
		BranchName:        raw.BranchName,
		Day:               day,
		GrossAmount:       ToDecimal(raw.GrossAmount),
		TaxAmount:         ToDecimal(raw.TaxAmount),
		ChargeAmount:      ToDecimal(raw.ChargeAmount),
		DiscountAmount:    ToDecimal(raw.DiscountAmount),
		NetAmount:         ToDecimal(raw.TotalAmount),
		DiscountBreakdown: raw.Discounts,
	}, true
}

// NormalizeAll filters and maps a whole fetch result for one target channel.
func NormalizeAll(raws []entity.RawOrder, target entity.Channel, excludeStatuses []string) []entity.CanonicalOrder {
	orders := make([]entity.CanonicalOrder, 0, len(raws))
	for _, raw := range raws {
		if o, ok := Normalize(raw, target, excludeStatuses); ok {
			orders = append(orders, o)
		}
	}
	return orders
}

// ResolveChannel determines the true channel of a raw order.
//
// Resolution order: the order's own channel field, then its platform
// field, then a structural heuristic over the discount blob's key shapes,
// and finally "unknown". The heuristic result is flagged as inferred
// provenance; it is a known weak point kept only as a last resort.
func ResolveChannel(raw entity.RawOrder) (entity.Channel, entity.Provenance) {
	if ch, ok := knownChannel(raw.Channel); ok {
		return ch, entity.ProvenanceExplicit
	}
	if ch, ok := knownChannel(raw.Platform); ok {
		return ch, entity.ProvenanceExplicit
	}
	if ch, ok := channelFromDiscountKeys(raw.Discounts); ok {
		return ch, entity.ProvenanceInferred
	}
	return entity.ChannelUnknown, entity.ProvenanceUnknown
}

func knownChannel(label string) (entity.Channel, bool) {
	switch {
	case strings.EqualFold(label, string(entity.ChannelTakeaway)):
		return entity.ChannelTakeaway, true
	case strings.EqualFold(label, string(entity.ChannelZomato)):
		return entity.ChannelZomato, true
	case strings.EqualFold(label, string(entity.ChannelSwiggy)):
		return entity.ChannelSwiggy, true
	case strings.EqualFold(label, string(entity.ChannelSubscription)):
		return entity.ChannelSubscription, true
	}
	return "", false
}

// channelFromDiscountKeys inspects the discount-breakdown blob. Swiggy
// reports discounts under purely numeric percentage keys ("10", "52.5"),
// Zomato under descriptive offer labels ("Flat 50 off on first order").
// Mixed or empty key sets resolve nothing.
func channelFromDiscountKeys(discounts map[string]any) (entity.Channel, bool) {
	if len(discounts) == 0 {
		return "", false
	}
	numeric, descriptive := 0, 0
	for key := range discounts {
		if _, err := strconv.ParseFloat(strings.TrimSpace(key), 64); err == nil {
			numeric++
		} else {
			descriptive++
		}
	}
	switch {
	case numeric > 0 && descriptive == 0:
		return entity.ChannelSwiggy, true
	case descriptive > 0 && numeric == 0:
		return entity.ChannelZomato, true
	}
	return "", false
}

// ToDecimal coerces a loosely typed upstream monetary value. Anything that
// is not a recognizable number becomes zero.
func ToDecimal(v any) decimal.Decimal {
	switch n := v.(type) {
	case nil:
		return decimal.Zero
	case float64:
		return decimal.NewFromFloat(n)
	case float32:
		return decimal.NewFromFloat32(n)
	case int:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case json.Number:
		if d, err := decimal.NewFromString(n.String()); err == nil {
			return d
		}
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(n)); err == nil {
			return d
		}
	}
	return decimal.Zero
}
