package store

import (
	"context"
	"errors"
	"time"

	"github.com/wolfeidau/propertyos/internal/models"
	"github.com/wolfeidau/propertyos/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrumented wraps a Store and records operation counts and durations.
type Instrumented struct {
	next    Store
	backend string
}

// Instrument wraps next, labelling its metrics with backend.
func Instrument(next Store, backend string) *Instrumented {
	return &Instrumented{next: next, backend: backend}
}

func (s *Instrumented) User(ctx context.Context, cred Credential) (*models.Identity, error) {
	start := time.Now()
	identity, err := s.next.User(ctx, cred)
	if errors.Is(err, ErrNoUser) {
		s.observe(ctx, "user", "", start, nil)
	} else {
		s.observe(ctx, "user", "", start, err)
	}
	return identity, err
}

func (s *Instrumented) Select(ctx context.Context, cred Credential, q Query) ([]Row, error) {
	start := time.Now()
	rows, err := s.next.Select(ctx, cred, q)
	s.observe(ctx, "select", q.Table, start, err)
	return rows, err
}

func (s *Instrumented) Count(ctx context.Context, cred Credential, q Query) (*int64, error) {
	start := time.Now()
	n, err := s.next.Count(ctx, cred, q)
	s.observe(ctx, "count", q.Table, start, err)
	return n, err
}

func (s *Instrumented) Insert(ctx context.Context, cred Credential, table Table, row Row) (Row, error) {
	start := time.Now()
	stored, err := s.next.Insert(ctx, cred, table, row)
	s.observe(ctx, "insert", table, start, err)
	return stored, err
}

func (s *Instrumented) observe(ctx context.Context, op string, table Table, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String("backend", s.backend),
		attribute.String("op", op),
		attribute.String("table", string(table)),
		attribute.String("outcome", outcome),
	)

	metrics := telemetry.GetMetrics()
	metrics.StoreOperationsTotal.Add(ctx, 1, attrs)
	metrics.StoreOperationDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
}
