package service

import (
	"context"
	"fmt"

	"identity-recon/internal/contact/models"
	"identity-recon/pkg/platform/sentinel"
)

// Resolver expands a submission into the connected component of contacts
// sharing its email or phone number. It never writes.
type Resolver struct{}

// Resolve returns the component ordered by creation, or sentinel.ErrNoMatch
// when nothing matches. Because secondaries always link straight to a primary,
// one expansion hop past the direct matches reaches the whole component: the
// secondaries of matched primaries, plus the primary and sibling secondaries
// of matched secondaries.
func (Resolver) Resolve(ctx context.Context, store Finder, sub models.Submission) ([]*models.Contact, error) {
	direct, err := store.Find(ctx, directMatch(sub))
	if err != nil {
		return nil, fmt.Errorf("find direct matches: %w", err)
	}
	if len(direct) == 0 {
		return nil, sentinel.ErrNoMatch
	}

	var primaryIDs, linkedIDs []int64
	for _, c := range direct {
		if c.IsPrimary() {
			primaryIDs = append(primaryIDs, c.ID)
		} else if c.LinkedID != nil {
			linkedIDs = append(linkedIDs, *c.LinkedID)
		}
	}

	component := direct
	if len(primaryIDs) > 0 || len(linkedIDs) > 0 {
		expanded, err := store.Find(ctx, models.And{
			models.Or{
				models.And{models.PrecedenceIs(models.LinkPrecedenceSecondary), models.LinkedIDIn(primaryIDs...)},
				models.And{models.PrecedenceIs(models.LinkPrecedencePrimary), models.IDIn(linkedIDs...)},
				models.And{models.PrecedenceIs(models.LinkPrecedenceSecondary), models.LinkedIDIn(linkedIDs...)},
			},
			models.Not{Filter: models.IDIn(models.IDs(direct)...)},
		})
		if err != nil {
			return nil, fmt.Errorf("expand component: %w", err)
		}
		component = append(component, expanded...)
	}

	models.SortByCreation(component)
	return component, nil
}

func directMatch(sub models.Submission) models.Filter {
	var or models.Or
	if sub.Email != "" {
		or = append(or, models.EmailIs(sub.Email))
	}
	if sub.PhoneNumber != "" {
		or = append(or, models.PhoneIs(sub.PhoneNumber))
	}
	return or
}
