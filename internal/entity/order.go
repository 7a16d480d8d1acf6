package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Channel is a distribution path for an order.
type Channel string

const (
	ChannelTakeaway     Channel = "Takeaway"
	ChannelZomato       Channel = "Zomato"
	ChannelSwiggy       Channel = "Swiggy"
	ChannelSubscription Channel = "Subscription"

	// ChannelAuto is the sentinel a caller passes when it does not pin a
	// channel; the normalizer resolves the real one.
	ChannelAuto Channel = "auto"
	// ChannelUnknown marks orders whose channel could not be resolved.
	// They are surfaced as their own bucket, never folded into a known one.
	ChannelUnknown Channel = "unknown"
)

// Provenance records how the channel label on a canonical order was obtained.
type Provenance string

const (
	ProvenanceExplicit Provenance = "explicit"
	ProvenanceInferred Provenance = "inferred"
	ProvenanceUnknown  Provenance = "unknown"
)

// RawOrder is one order object exactly as the upstream POS page endpoint
// returns it. Monetary fields stay untyped because the aggregator channels
// disagree on number-vs-string encoding; the normalizer coerces them.
type RawOrder struct {
	InvoiceNo      string         `json:"invoiceNo"`
	Channel        string         `json:"channel"`
	Platform       string         `json:"platform"`
	Status         string         `json:"status"`
	BranchID       string         `json:"branchId"`
	BranchName     string         `json:"branchName"`
	Day            string         `json:"day"`
	WeekStart      string         `json:"weekStart"`
	GrossAmount    any            `json:"grossAmount"`
	TaxAmount      any            `json:"taxAmount"`
	ChargeAmount   any            `json:"chargeAmount"`
	DiscountAmount any            `json:"discountAmount"`
	TotalAmount    any            `json:"totalAmount"`
	Discounts      map[string]any `json:"discounts"`
}

// RawOrderPage is one upstream page. A non-empty LastKey means there is
// another page, regardless of how many rows this one carried.
type RawOrderPage struct {
	Data    []RawOrder `json:"data"`
	LastKey string     `json:"lastKey"`
}

// CanonicalOrder is the normalized shape every channel's orders are mapped
// into. Monetary fields are always present, zero when the upstream omitted
// or mangled them, so downstream summation never branches on absence.
type CanonicalOrder struct {
	InvoiceNo  string
	Channel    Channel
	Provenance Provenance
	Status     string
	BranchID   string
	BranchName string
	Day        time.Time

	GrossAmount    decimal.Decimal
	TaxAmount      decimal.Decimal
	ChargeAmount   decimal.Decimal
	DiscountAmount decimal.Decimal
	NetAmount      decimal.Decimal

	// DiscountBreakdown is the channel-specific discount blob, passed
	// through opaquely until the aggregator decodes what it can.
	DiscountBreakdown map[string]any
}

// FetchFailure describes one day whose pagination was cut short. The day's
// already-fetched pages are still used; the failure is reported, not raised.
type FetchFailure struct {
	BranchID string
	Day      time.Time
	Reason   string
}
