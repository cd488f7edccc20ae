package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	contactmetrics "identity-recon/internal/contact/metrics"
	contactservice "identity-recon/internal/contact/service"
	contactstore "identity-recon/internal/contact/store"
)

const (
	defaultContactTxTimeout = 5 * time.Second
	contactTxRetryBackoff   = 10 * time.Millisecond
)

type contactPostgresTx struct {
	store       *contactstore.PostgresStore
	timeout     time.Duration
	maxAttempts int
	metrics     *contactmetrics.Metrics
	logger      *slog.Logger
}

func newContactPostgresTx(store *contactstore.PostgresStore, timeout time.Duration, maxAttempts int, m *contactmetrics.Metrics, logger *slog.Logger) *contactPostgresTx {
	return &contactPostgresTx{store: store, timeout: timeout, maxAttempts: maxAttempts, metrics: m, logger: logger}
}

func (t *contactPostgresTx) RunInTx(ctx context.Context, fn func(store contactservice.Store) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultContactTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	opts := contactstore.TxOptions{
		MaxAttempts: t.maxAttempts,
		Backoff:     contactTxRetryBackoff,
		OnRetry: func(attempt int, err error) {
			t.metrics.IncrementTxRetry()
			t.logger.WarnContext(ctx, "retrying contact transaction",
				"attempt", attempt,
				"error", err,
			)
		},
	}
	return t.store.InTx(ctx, opts, func(_ context.Context, tx *contactstore.PostgresStore) error {
		return fn(tx)
	})
}
