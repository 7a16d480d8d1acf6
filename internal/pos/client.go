package pos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dineops/pos-insights-manager/internal/dependency"
	"github.com/dineops/pos-insights-manager/internal/entity"
)

const (
	signatureHeader = "X-Pos-Signature"
	apiKeyHeader    = "X-Api-Key"

	pagePath = "/sales/page"
)

type Config struct {
	BaseURL              string        `mapstructure:"base_url"`
	APIKey               string        `mapstructure:"api_key"`
	IssuerID             string        `mapstructure:"issuer_id"`
	SigningSecret        string        `mapstructure:"signing_secret"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	MaxConcurrentFetches int           `mapstructure:"max_concurrent_fetches"`
	CurrentDayCacheTTL   time.Duration `mapstructure:"current_day_cache_ttl"`
}

// Client talks to the upstream POS sales API.
type Client struct {
	c      *Config
	cli    *resty.Client
	signer *Signer
	cache  dependency.DayPageCache
}

// New builds a POS client. cache may be nil, in which case every day is
// fetched from the upstream.
func New(c *Config, cache dependency.DayPageCache) *Client {
	cli := resty.New()
	cli.SetBaseURL(c.BaseURL)
	cli.SetHeader(apiKeyHeader, c.APIKey)
	if c.RequestTimeout > 0 {
		cli.SetTimeout(c.RequestTimeout)
	} else {
		cli.SetTimeout(10 * time.Second)
	}

	return &Client{
		c:      c,
		cli:    cli,
		signer: NewSigner(c.IssuerID, c.SigningSecret),
		cache:  cache,
	}
}

// pageIterator is a lazy, finite, non-restartable walk over one day's
// pages. Next reports false once the upstream stops returning a cursor or
// any page fails; the failure is kept on Err.
type pageIterator struct {
	cli      *Client
	branchID string
	day      string

	lastKey string
	started bool
	done    bool
	err     error
}

func (c *Client) newPageIterator(branchID, day string) *pageIterator {
	return &pageIterator{cli: c, branchID: branchID, day: day}
}

// Next fetches the next page. Cursor presence, not row count, decides
// whether iteration continues: a zero-row page with a cursor is followed.
func (it *pageIterator) Next(ctx context.Context) ([]entity.RawOrder, bool) {
	if it.done {
		return nil, false
	}
	if it.started && it.lastKey == "" {
		it.done = true
		return nil, false
	}
	it.started = true

	page, err := it.cli.fetchPage(ctx, it.branchID, it.day, it.lastKey)
	if err != nil {
		it.err = err
		it.done = true
		return nil, false
	}
	it.lastKey = page.LastKey
	return page.Data, true
}

// Err returns the failure that cut the iteration short, if any.
func (it *pageIterator) Err() error {
	return it.err
}

func (c *Client) fetchPage(ctx context.Context, branchID, day, lastKey string) (*entity.RawOrderPage, error) {
	token, err := c.signer.Sign(fmt.Sprintf("%s:%s:%s", branchID, day, lastKey))
	if err != nil {
		return nil, err
	}

	req := c.cli.R().
		SetContext(ctx).
		SetHeader(signatureHeader, token).
		SetQueryParam("branch", branchID).
		SetQueryParam("day", day)
	if lastKey != "" {
		req.SetQueryParam("lastKey", lastKey)
	}

	resp, err := req.Get(pagePath)
	if err != nil {
		return nil, fmt.Errorf("page request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("page request returned status %d: %s", resp.StatusCode(), resp.String())
	}

	var page entity.RawOrderPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, fmt.Errorf("could not unmarshal page body: %w : body: %v", err, resp.String())
	}
	return &page, nil
}

// FetchDay retrieves every order for one branch on one calendar day,
// following the continuation cursor until the upstream stops supplying one.
// On a page-level failure the orders accumulated so far are returned along
// with the error; the caller decides whether the truncation is a gap.
func (c *Client) FetchDay(ctx context.Context, branchID string, day time.Time) ([]entity.RawOrder, error) {
	dayStr := day.Format(entity.DateLayout)

	if orders, ok := c.cachedDay(branchID, dayStr); ok {
		return orders, nil
	}

	it := c.newPageIterator(branchID, dayStr)
	var orders []entity.RawOrder
	for {
		page, ok := it.Next(ctx)
		if !ok {
			break
		}
		orders = append(orders, page...)
	}

	// stamp the business day so downstream folding does not depend on the
	// upstream echoing it back
	for i := range orders {
		if orders[i].Day == "" {
			orders[i].Day = dayStr
		}
	}

	if it.Err() == nil {
		c.storeDay(branchID, dayStr, day, orders)
	}
	return orders, it.Err()
}

func (c *Client) cachedDay(branchID, day string) ([]entity.RawOrder, bool) {
	if c.cache == nil {
		return nil, false
	}
	payload, ok := c.cache.Get(branchID, day)
	if !ok {
		return nil, false
	}
	var orders []entity.RawOrder
	if err := json.Unmarshal(payload, &orders); err != nil {
		return nil, false
	}
	return orders, true
}

func (c *Client) storeDay(branchID, dayStr string, day time.Time, orders []entity.RawOrder) {
	if c.cache == nil {
		return
	}
	payload, err := json.Marshal(orders)
	if err != nil {
		return
	}
	ttl := time.Duration(0)
	if !entity.Midnight(day).Before(entity.Midnight(time.Now())) {
		// the current day is still accumulating orders upstream
		ttl = c.c.CurrentDayCacheTTL
		if ttl == 0 {
			ttl = 5 * time.Minute
		}
	}
	_ = c.cache.Set(branchID, dayStr, payload, ttl)
}
