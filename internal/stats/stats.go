package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/propertyos/internal/models"
	"github.com/wolfeidau/propertyos/internal/store"
	"github.com/wolfeidau/propertyos/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Result is the dashboard summary, or the message of the first count that failed.
type Result struct {
	Data  *models.DashboardStats `json:"data"`
	Error string                 `json:"error,omitempty"`
}

// counter is one count-only query and the summary field it fills.
type counter struct {
	query store.Query
	field func(*models.DashboardStats) *int64
}

var counters = []counter{
	{
		query: store.From(store.TableProperties),
		field: func(s *models.DashboardStats) *int64 { return &s.Properties },
	},
	{
		// profiles stand in for tenants
		query: store.From(store.TableProfiles),
		field: func(s *models.DashboardStats) *int64 { return &s.Tenants },
	},
	{
		query: store.From(store.TableLeases).Where(store.Eq("status", "active")),
		field: func(s *models.DashboardStats) *int64 { return &s.ActiveLeases },
	},
	{
		query: store.From(store.TablePayments).Where(store.Eq("status", "pending")),
		field: func(s *models.DashboardStats) *int64 { return &s.PendingPayments },
	},
	{
		query: store.From(store.TableMaintenanceTickets).Where(store.Eq("status", "open")),
		field: func(s *models.DashboardStats) *int64 { return &s.OpenMaintenance },
	},
}

// Aggregator computes the dashboard summary.
type Aggregator struct {
	store store.Store
}

// New creates an aggregator over st.
func New(st store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// DashboardStats runs every count concurrently and waits for all of them.
// A count the backend does not report is zero. If any count fails the whole summary fails
// with that count's message and no partial data is returned.
func (a *Aggregator) DashboardStats(ctx context.Context, cred store.Credential) Result {
	metrics := telemetry.GetMetrics()
	start := time.Now()
	defer func() {
		metrics.StatsQueryDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()
	metrics.StatsQueriesTotal.Add(ctx, 1)

	// each goroutine writes a distinct slot
	counts := make([]int64, len(counters))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range counters {
		g.Go(func() error {
			n, err := a.store.Count(gctx, cred, c.query)
			if err != nil {
				return err
			}
			if n != nil {
				counts[i] = *n
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		metrics.StatsErrorsTotal.Add(ctx, 1)
		log.Ctx(ctx).Error().Err(err).Msg("Failed to fetch dashboard stats")
		return Result{Error: err.Error()}
	}

	summary := &models.DashboardStats{}
	for i, c := range counters {
		*c.field(summary) = counts[i]
	}

	return Result{Data: summary}
}
