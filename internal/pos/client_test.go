package pos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineops/pos-insights-manager/internal/entity"
)

func testDay(t *testing.T) time.Time {
	t.Helper()
	d, err := time.Parse(entity.DateLayout, "2025-01-02")
	require.NoError(t, err)
	return d
}

// pagedUpstream serves a scripted page sequence keyed by lastKey.
type pagedUpstream struct {
	t     *testing.T
	pages map[string]entity.RawOrderPage
	fail  map[string]int // lastKey -> status to return
	calls int
}

func (u *pagedUpstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u.calls++
		assert.Equal(u.t, "/sales/page", r.URL.Path)
		assert.NotEmpty(u.t, r.Header.Get("X-Pos-Signature"))
		assert.Equal(u.t, "test-key", r.Header.Get("X-Api-Key"))

		lastKey := r.URL.Query().Get("lastKey")
		if status, ok := u.fail[lastKey]; ok {
			w.WriteHeader(status)
			return
		}
		page, ok := u.pages[lastKey]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(page)
	}
}

func newTestClient(t *testing.T, upstream http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)
	return New(&Config{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		IssuerID:       "test-issuer",
		SigningSecret:  "test-secret",
		RequestTimeout: 2 * time.Second,
	}, nil)
}

func order(invoice string) entity.RawOrder {
	return entity.RawOrder{InvoiceNo: invoice, Channel: "Takeaway", Status: "Completed"}
}

func TestFetchDay_StopsWhenCursorAbsent(t *testing.T) {
	u := &pagedUpstream{t: t, pages: map[string]entity.RawOrderPage{
		"":   {Data: []entity.RawOrder{order("a"), order("b")}, LastKey: "k1"},
		"k1": {Data: []entity.RawOrder{order("c")}, LastKey: "k2"},
		"k2": {Data: []entity.RawOrder{order("d")}},
	}}
	cli := newTestClient(t, u.handler())

	orders, err := cli.FetchDay(context.Background(), "b1", testDay(t))
	require.NoError(t, err)
	assert.Len(t, orders, 4)
	// exactly one call per page, no probe after the cursorless page
	assert.Equal(t, 3, u.calls)
}

func TestFetchDay_ZeroRowPageWithCursorIsFollowed(t *testing.T) {
	u := &pagedUpstream{t: t, pages: map[string]entity.RawOrderPage{
		"":   {Data: nil, LastKey: "k1"},
		"k1": {Data: []entity.RawOrder{order("a")}},
	}}
	cli := newTestClient(t, u.handler())

	orders, err := cli.FetchDay(context.Background(), "b1", testDay(t))
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, 2, u.calls)
}

func TestFetchDay_TruncatesOnMidSequenceError(t *testing.T) {
	u := &pagedUpstream{
		t: t,
		pages: map[string]entity.RawOrderPage{
			"":   {Data: []entity.RawOrder{order("a"), order("b")}, LastKey: "k1"},
			"k2": {Data: []entity.RawOrder{order("d")}},
		},
		fail: map[string]int{"k1": http.StatusBadGateway},
	}
	cli := newTestClient(t, u.handler())

	orders, err := cli.FetchDay(context.Background(), "b1", testDay(t))
	require.Error(t, err)
	// page 1's orders survive, page 3 is never requested
	assert.Len(t, orders, 2)
	assert.Equal(t, 2, u.calls)
}

func TestFetchDay_MalformedBodyTruncates(t *testing.T) {
	calls := 0
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"data": not json`))
	})

	orders, err := cli.FetchDay(context.Background(), "b1", testDay(t))
	require.Error(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, 1, calls)
}

func TestFetchDay_StampsBusinessDay(t *testing.T) {
	u := &pagedUpstream{t: t, pages: map[string]entity.RawOrderPage{
		"": {Data: []entity.RawOrder{order("a")}},
	}}
	cli := newTestClient(t, u.handler())

	orders, err := cli.FetchDay(context.Background(), "b1", testDay(t))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "2025-01-02", orders[0].Day)
}

type fakeCache struct {
	data map[string][]byte
	sets int
}

func (f *fakeCache) Get(branchID, day string) ([]byte, bool) {
	v, ok := f.data[branchID+"/"+day]
	return v, ok
}

func (f *fakeCache) Set(branchID, day string, payload []byte, ttl time.Duration) error {
	f.sets++
	f.data[branchID+"/"+day] = payload
	return nil
}

func TestFetchDay_ServesPastDayFromCache(t *testing.T) {
	u := &pagedUpstream{t: t, pages: map[string]entity.RawOrderPage{
		"": {Data: []entity.RawOrder{order("a")}},
	}}
	srv := httptest.NewServer(u.handler())
	t.Cleanup(srv.Close)

	fc := &fakeCache{data: make(map[string][]byte)}
	cli := New(&Config{
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		IssuerID:      "test-issuer",
		SigningSecret: "test-secret",
	}, fc)

	day := testDay(t)
	first, err := cli.FetchDay(context.Background(), "b1", day)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, fc.sets)

	second, err := cli.FetchDay(context.Background(), "b1", day)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	// second fetch never reached the upstream
	assert.Equal(t, 1, u.calls)
}
