package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dineops/pos-insights-manager/internal/entity"
)

// UpsertDailySummaries writes per-day channel summaries into the mirror.
// A summary for an already-mirrored (restaurant, channel, day) replaces
// the previous row: re-reports after a truncated fetch must converge on
// the complete numbers, not double them.
func (ms *MYSQLStore) UpsertDailySummaries(ctx context.Context, summaries []entity.DailyChannelSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	query := `
	INSERT INTO daily_channel_summary
		(restaurant_id, channel, day, week_start, no_of_orders, gross_sale,
		 gst_on_order, discounts, packaging_charges, ads, commission_and_taxes,
		 payout, net_sale, net_book_value)
	VALUES
		(:restaurant_id, :channel, :day, :week_start, :no_of_orders, :gross_sale,
		 :gst_on_order, :discounts, :packaging_charges, :ads, :commission_and_taxes,
		 :payout, :net_sale, :net_book_value)
	ON DUPLICATE KEY UPDATE
		week_start = VALUES(week_start),
		no_of_orders = VALUES(no_of_orders),
		gross_sale = VALUES(gross_sale),
		gst_on_order = VALUES(gst_on_order),
		discounts = VALUES(discounts),
		packaging_charges = VALUES(packaging_charges),
		ads = VALUES(ads),
		commission_and_taxes = VALUES(commission_and_taxes),
		payout = VALUES(payout),
		net_sale = VALUES(net_sale),
		net_book_value = VALUES(net_book_value)`

	tx, err := ms.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("can't begin summaries transaction: %w", err)
	}
	for _, s := range summaries {
		if _, err := tx.NamedExecContext(ctx, query, s); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to upsert summary %s/%s/%s: %w",
				s.RestaurantID, s.Channel, s.Day.Format(entity.DateLayout), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("can't commit summaries transaction: %w", err)
	}
	return nil
}

// GetDailySummaries reads the mirrored summaries for the given restaurants
// and channels over an inclusive day range, ordered by day.
func (ms *MYSQLStore) GetDailySummaries(ctx context.Context, restaurantIDs []string, channels []entity.Channel, from, to time.Time) ([]entity.DailyChannelSummary, error) {
	if len(restaurantIDs) == 0 {
		return nil, nil
	}

	query := `
	SELECT restaurant_id, channel, day, week_start, no_of_orders, gross_sale,
	       gst_on_order, discounts, packaging_charges, ads, commission_and_taxes,
	       payout, net_sale, net_book_value
	FROM daily_channel_summary
	WHERE restaurant_id IN (:restaurants)
	  AND day BETWEEN :from AND :to`
	args := map[string]any{
		"restaurants": restaurantIDs,
		"from":        entity.Midnight(from),
		"to":          entity.Midnight(to),
	}
	if len(channels) > 0 {
		query += ` AND channel IN (:channels)`
		chs := make([]string, len(channels))
		for i, ch := range channels {
			chs[i] = string(ch)
		}
		args["channels"] = chs
	}
	query += ` ORDER BY day, channel`

	nq, nargs, err := namedIn(query, args)
	if err != nil {
		return nil, err
	}

	var summaries []entity.DailyChannelSummary
	if err := ms.db.SelectContext(ctx, &summaries, ms.db.Rebind(nq), nargs...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get daily summaries: %w", err)
	}
	return summaries, nil
}

// ObservedDays returns the set of day-form period keys the mirror holds
// for one restaurant over an inclusive range, for coverage checks.
func (ms *MYSQLStore) ObservedDays(ctx context.Context, restaurantID string, from, to time.Time) (map[string]struct{}, error) {
	query := `
	SELECT DISTINCT day
	FROM daily_channel_summary
	WHERE restaurant_id = ? AND day BETWEEN ? AND ?`

	var days []time.Time
	if err := ms.db.SelectContext(ctx, &days, query, restaurantID, entity.Midnight(from), entity.Midnight(to)); err != nil {
		return nil, fmt.Errorf("failed to get observed days: %w", err)
	}

	observed := make(map[string]struct{}, len(days))
	for _, d := range days {
		observed[d.UTC().Format(entity.DateLayout)] = struct{}{}
	}
	return observed, nil
}

// namedIn expands named parameters including slice IN-bindings.
func namedIn(query string, args map[string]any) (string, []any, error) {
	nq, nargs, err := sqlx.Named(query, args)
	if err != nil {
		return "", nil, fmt.Errorf("failed to bind named query: %w", err)
	}
	nq, nargs, err = sqlx.In(nq, nargs...)
	if err != nil {
		return "", nil, fmt.Errorf("failed to expand in-bindings: %w", err)
	}
	return nq, nargs, nil
}
