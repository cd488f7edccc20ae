package service

import (
	"context"
	"fmt"
	"slices"

	"identity-recon/internal/contact/models"
	dErrors "identity-recon/pkg/domain-errors"
	"identity-recon/pkg/platform/strings"
)

// Engine applies primary selection, demotion and the new-information rule to
// a resolved component, issuing at most one bulk update and one insert.
type Engine struct{}

// Reconcile mutates store so the component has exactly one primary with every
// other member linked directly to it, and returns the consolidated view.
// An empty component creates a new primary.
func (Engine) Reconcile(ctx context.Context, store Store, component []*models.Contact, sub models.Submission) (*models.Result, error) {
	if len(component) == 0 {
		created, err := store.Create(ctx, models.NewContact{
			Email:          sub.EmailPtr(),
			PhoneNumber:    sub.PhonePtr(),
			LinkPrecedence: models.LinkPrecedencePrimary,
		})
		if err != nil {
			return nil, fmt.Errorf("create primary: %w", err)
		}
		return &models.Result{
			View:    BuildView([]*models.Contact{created}),
			Outcome: models.OutcomeNewPrimary,
			Created: created,
		}, nil
	}

	members := slices.Clone(component)
	models.SortByCreation(members)
	canonical := members[0]
	if !canonical.IsPrimary() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("earliest contact %d in component is not primary", canonical.ID))
	}

	members, demoted, repointed, err := demote(ctx, store, members, canonical.ID)
	if err != nil {
		return nil, err
	}

	result := &models.Result{
		Outcome:   models.OutcomeUnchanged,
		Demoted:   demoted,
		Repointed: repointed,
	}
	if len(demoted) > 0 {
		result.Outcome = models.OutcomeMerged
	}

	if hasNewInfo(members, sub) {
		primaryID := canonical.ID
		created, err := store.Create(ctx, models.NewContact{
			Email:          sub.EmailPtr(),
			PhoneNumber:    sub.PhonePtr(),
			LinkPrecedence: models.LinkPrecedenceSecondary,
			LinkedID:       &primaryID,
		})
		if err != nil {
			return nil, fmt.Errorf("create secondary: %w", err)
		}
		members = append(members, created)
		result.Created = created
		if result.Outcome == models.OutcomeUnchanged {
			result.Outcome = models.OutcomeNewSecondary
		}
	}

	result.View = BuildView(members)
	return result, nil
}

// demote turns every non-canonical primary into a secondary of primaryID and
// repoints every secondary linked to a demoted id, all in one bulk update.
// Secondaries of a demoted primary that were outside the component join it.
func demote(ctx context.Context, store Store, members []*models.Contact, primaryID int64) ([]*models.Contact, []int64, []int64, error) {
	var demoted []int64
	for _, c := range members[1:] {
		if c.IsPrimary() {
			demoted = append(demoted, c.ID)
		}
	}
	if len(demoted) == 0 {
		return members, nil, nil, nil
	}

	outside, err := store.Find(ctx, models.And{
		models.PrecedenceIs(models.LinkPrecedenceSecondary),
		models.LinkedIDIn(demoted...),
		models.Not{Filter: models.IDIn(models.IDs(members)...)},
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("find secondaries of demoted primaries: %w", err)
	}
	members = append(members, outside...)

	var repointed []int64
	for _, c := range members {
		if !c.IsPrimary() && c.LinkedID != nil && slices.Contains(demoted, *c.LinkedID) {
			repointed = append(repointed, c.ID)
		}
	}

	ids := append(slices.Clone(demoted), repointed...)
	if _, err := store.UpdateLinks(ctx, ids, models.LinkPrecedenceSecondary, &primaryID); err != nil {
		return nil, nil, nil, fmt.Errorf("demote primaries: %w", err)
	}

	for _, c := range members {
		if slices.Contains(ids, c.ID) {
			link := primaryID
			c.LinkPrecedence = models.LinkPrecedenceSecondary
			c.LinkedID = &link
		}
	}
	models.SortByCreation(members)
	return members, demoted, repointed, nil
}

func hasNewInfo(members []*models.Contact, sub models.Submission) bool {
	var emails, phones []string
	for _, c := range members {
		emails = append(emails, c.EmailValue())
		phones = append(phones, c.PhoneValue())
	}
	return (sub.Email != "" && !strings.Contains(emails, sub.Email)) ||
		(sub.PhoneNumber != "" && !strings.Contains(phones, sub.PhoneNumber))
}

// BuildView assembles the consolidated identity of members, which must be
// ordered by creation with the primary first. Values appear in that order,
// so the primary's email and phone lead their lists.
func BuildView(members []*models.Contact) *models.ConsolidatedView {
	primary := members[0]
	emails := make([]string, 0, len(members))
	phones := make([]string, 0, len(members))
	secondaries := make([]int64, 0, len(members)-1)
	for _, c := range members {
		emails = append(emails, c.EmailValue())
		phones = append(phones, c.PhoneValue())
		if c.ID != primary.ID {
			secondaries = append(secondaries, c.ID)
		}
	}
	return &models.ConsolidatedView{
		PrimaryContactID:    primary.ID,
		Emails:              strings.DedupeNonEmpty(emails),
		PhoneNumbers:        strings.DedupeNonEmpty(phones),
		SecondaryContactIDs: secondaries,
	}
}
