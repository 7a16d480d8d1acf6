package app

import (
	"context"

	"log/slog"

	"github.com/dineops/pos-insights-manager/config"
	httpapi "github.com/dineops/pos-insights-manager/internal/api/http"
	"github.com/dineops/pos-insights-manager/internal/apisrv/reports"
	"github.com/dineops/pos-insights-manager/internal/cache"
	"github.com/dineops/pos-insights-manager/internal/dependency"
	"github.com/dineops/pos-insights-manager/internal/pos"
	"github.com/dineops/pos-insights-manager/internal/report"
	"github.com/dineops/pos-insights-manager/internal/store"
)

// App is the main application.
type App struct {
	hs    *httpapi.Server
	db    dependency.SummaryStore
	cache *cache.DayCache
	c     *config.Config
	done  chan struct{}
}

// New returns a new instance of App.
func New(c *config.Config) *App {
	return &App{
		c:    c,
		done: make(chan struct{}),
	}
}

// Start wires the mirror store, the day cache, the POS client and the
// reporting surface, then starts serving.
func (a *App) Start(ctx context.Context) error {
	slog.Default().InfoContext(ctx, "starting pos insights manager")

	if a.c.DB.DSN != "" {
		db, err := store.New(ctx, a.c.DB)
		if err != nil {
			slog.Default().ErrorContext(ctx, "couldn't connect to mysql",
				slog.String("err", err.Error()))
			return err
		}
		a.db = db
	} else {
		slog.Default().WarnContext(ctx, "no mysql dsn configured, summary mirror disabled")
	}

	dayCache, err := cache.New(a.c.Cache)
	if err != nil {
		slog.Default().ErrorContext(ctx, "couldn't open day cache",
			slog.String("err", err.Error()))
		return err
	}
	a.cache = dayCache

	posClient := pos.New(&a.c.POS, dayCache)
	svc := report.New(&a.c.Report, posClient, a.db)

	a.hs = httpapi.New(&a.c.HTTP)
	if err := a.hs.Start(ctx, reports.New(svc)); err != nil {
		slog.Default().ErrorContext(ctx, "cannot start http server",
			slog.String("err", err.Error()))
		return err
	}

	go func() {
		<-a.hs.Done()
		close(a.done)
	}()
	return nil
}

// Stop stops the application and waits for all services to exit.
func (a *App) Stop(ctx context.Context) {
	if a.hs != nil {
		_ = a.hs.Stop(ctx)
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// Done returns a channel that is closed after the application has exited.
func (a *App) Done() chan struct{} {
	return a.done
}
