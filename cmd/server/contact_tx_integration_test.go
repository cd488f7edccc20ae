//go:build integration

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	contactmetrics "identity-recon/internal/contact/metrics"
	"identity-recon/internal/contact/models"
	contactservice "identity-recon/internal/contact/service"
	contactstore "identity-recon/internal/contact/store"
	"identity-recon/pkg/testutil/containers"
)

type ContactTxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *contactstore.PostgresStore
	service  *contactservice.Service
}

func TestContactTxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ContactTxSuite))
}

func (s *ContactTxSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = contactstore.NewPostgres(s.postgres.DB)
}

func (s *ContactTxSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "contacts"))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := contactmetrics.New(prometheus.NewRegistry())
	tx := newContactPostgresTx(s.store, 0, 5, m, logger)
	s.service = contactservice.New(tx, s.store, contactservice.WithLogger(logger), contactservice.WithMetrics(m))
}

func (s *ContactTxSuite) TestConcurrentFirstSubmissionsCreateOnePrimary() {
	ctx := context.Background()
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, err := s.service.Consolidate(ctx, "same@x.com", "999")
			return err
		})
	}
	s.Require().NoError(g.Wait())

	contacts, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(contacts, 1)
}

func (s *ContactTxSuite) TestConcurrentBridgingSubmissionsKeepOnePrimary() {
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := s.service.Consolidate(ctx, fmt.Sprintf("u%d@x.com", i), fmt.Sprintf("%d00", i))
		s.Require().NoError(err)
	}

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		email := fmt.Sprintf("u%d@x.com", i)
		phone := fmt.Sprintf("%d00", (i+1)%4)
		g.Go(func() error {
			_, err := s.service.Consolidate(ctx, email, phone)
			return err
		})
	}
	s.Require().NoError(g.Wait())

	contacts, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(contacts, 4)
	s.True(contacts[0].IsPrimary())
	for _, c := range contacts[1:] {
		s.Equal(models.LinkPrecedenceSecondary, c.LinkPrecedence)
		s.Equal(contacts[0].ID, *c.LinkedID)
	}
}

func (s *ContactTxSuite) TestFailedReconciliationRollsBack() {
	ctx := context.Background()
	_, err := s.service.Consolidate(ctx, "a@x.com", "111")
	s.Require().NoError(err)
	_, err = s.service.Consolidate(ctx, "b@x.com", "222")
	s.Require().NoError(err)

	boom := fmt.Errorf("abort")
	tx := newContactPostgresTx(s.store, 0, 1, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err = tx.RunInTx(ctx, func(st contactservice.Store) error {
		if _, err := st.UpdateLinks(ctx, []int64{2}, models.LinkPrecedenceSecondary, ptr(int64(1))); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	contacts, err := s.store.List(ctx)
	s.Require().NoError(err)
	for _, c := range contacts {
		s.True(c.IsPrimary())
	}
}

func ptr[T any](v T) *T { return &v }
