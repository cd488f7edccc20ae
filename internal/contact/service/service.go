package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"identity-recon/internal/contact/metrics"
	"identity-recon/internal/contact/models"
	dErrors "identity-recon/pkg/domain-errors"
	"identity-recon/pkg/platform/sentinel"
	"identity-recon/pkg/requestcontext"
)

// maxStabilizePasses bounds how often the component may grow under us before
// the transaction gives up.
const maxStabilizePasses = 4

// Service reconciles contact submissions into consolidated identities.
type Service struct {
	tx       StoreTx
	reader   Reader
	locker   KeyLocker
	resolver Resolver
	engine   Engine
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLocker adds a cross-process lock taken before the transaction opens.
func WithLocker(locker KeyLocker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(tx StoreTx, reader Reader, opts ...Option) *Service {
	s := &Service{
		tx:     tx,
		reader: reader,
		logger: slog.Default(),
		tracer: otel.Tracer("identity-recon/contact"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Consolidate resolves the submission against existing contacts, merges any
// components it bridges and returns the resulting identity.
func (s *Service) Consolidate(ctx context.Context, email, phoneNumber string) (*models.ConsolidatedView, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "contact.Consolidate")
	defer span.End()

	sub := models.Submission{Email: email, PhoneNumber: phoneNumber}.Normalize()
	if sub.Empty() {
		err := dErrors.New(dErrors.CodeValidation, "email or phoneNumber is required")
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("has_email", sub.Email != ""),
		attribute.Bool("has_phone", sub.PhoneNumber != ""),
	)

	if s.locker != nil {
		lockStart := time.Now()
		release, err := s.locker.Acquire(ctx, sub.LockKeys())
		s.metrics.ObserveLockWait(lockStart)
		if err != nil {
			return nil, s.fail(ctx, span, start, dErrors.Wrap(err, dErrors.CodePersistence, "failed to acquire identity lock"))
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "failed to release identity lock",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
			}
		}()
	}

	var result *models.Result
	err := s.tx.RunInTx(ctx, func(store Store) error {
		component, err := s.lockComponent(ctx, store, sub)
		if err != nil {
			return err
		}
		result, err = s.engine.Reconcile(ctx, store, component, sub)
		return err
	})
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			err = dErrors.Wrap(err, dErrors.CodePersistence, "failed to reconcile contact")
		}
		return nil, s.fail(ctx, span, start, err)
	}

	s.metrics.ObserveReconcile(string(result.Outcome), len(result.Demoted), start)
	span.SetAttributes(
		attribute.Int64("primary_contact_id", result.View.PrimaryContactID),
		attribute.String("outcome", string(result.Outcome)),
		attribute.Int("demoted", len(result.Demoted)),
	)
	s.logger.InfoContext(ctx, "contact reconciled",
		"request_id", requestcontext.RequestID(ctx),
		"primary_contact_id", result.View.PrimaryContactID,
		"outcome", result.Outcome,
		"demoted", result.Demoted,
		"repointed", result.Repointed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result.View, nil
}

// lockComponent locks the submission's keys, then keeps locking the keys of
// the resolved component until resolving again yields nothing new. Once every
// key of the component is held no concurrent reconciliation can change it.
// A nil component means no contact matched.
func (s *Service) lockComponent(ctx context.Context, store Store, sub models.Submission) ([]*models.Contact, error) {
	held := make(map[string]struct{})
	lock := func(keys []string) (bool, error) {
		var fresh []string
		for _, k := range keys {
			if _, ok := held[k]; !ok {
				fresh = append(fresh, k)
				held[k] = struct{}{}
			}
		}
		if len(fresh) == 0 {
			return false, nil
		}
		if err := store.LockKeys(ctx, fresh); err != nil {
			return false, fmt.Errorf("lock keys: %w", err)
		}
		return true, nil
	}

	if _, err := lock(sub.LockKeys()); err != nil {
		return nil, err
	}
	for pass := 0; pass < maxStabilizePasses; pass++ {
		component, err := s.resolver.Resolve(ctx, store, sub)
		if errors.Is(err, sentinel.ErrNoMatch) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		grew, err := lock(models.ComponentKeys(component))
		if err != nil {
			return nil, err
		}
		if !grew {
			return component, nil
		}
	}
	return nil, fmt.Errorf("%w: component kept changing after %d passes", sentinel.ErrConflict, maxStabilizePasses)
}

func (s *Service) fail(ctx context.Context, span trace.Span, start time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	s.metrics.ObserveReconcile("error", 0, start)
	s.logger.ErrorContext(ctx, "contact reconciliation failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	return err
}

// List returns every stored contact ordered by id.
func (s *Service) List(ctx context.Context) ([]*models.Contact, error) {
	contacts, err := s.reader.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list contacts")
	}
	return contacts, nil
}

// Get returns the consolidated identity containing contact id without
// modifying anything.
func (s *Service) Get(ctx context.Context, id int64) (*models.ConsolidatedView, error) {
	contact, err := s.reader.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load contact")
	}

	primary := contact
	if !contact.IsPrimary() && contact.LinkedID != nil {
		primary, err = s.reader.FindByID(ctx, *contact.LinkedID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load primary contact")
		}
	}

	secondaries, err := s.reader.Find(ctx, models.And{
		models.PrecedenceIs(models.LinkPrecedenceSecondary),
		models.LinkedIDIn(primary.ID),
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load secondary contacts")
	}

	members := append([]*models.Contact{primary}, secondaries...)
	models.SortByCreation(members)
	return BuildView(members), nil
}
