package models

// ConsolidatedView is the single identity assembled for a submission.
type ConsolidatedView struct {
	PrimaryContactID    int64
	Emails              []string
	PhoneNumbers        []string
	SecondaryContactIDs []int64
}

// Outcome classifies what a reconciliation did to the store.
type Outcome string

const (
	OutcomeNewPrimary   Outcome = "new_primary"
	OutcomeNewSecondary Outcome = "new_secondary"
	OutcomeMerged       Outcome = "merged"
	OutcomeUnchanged    Outcome = "unchanged"
)

// Result is a view plus what happened while producing it.
type Result struct {
	View    *ConsolidatedView
	Outcome Outcome
	// Demoted holds ids of former primaries turned secondary in this call.
	Demoted []int64
	// Repointed holds ids of secondaries whose link moved off a demoted primary.
	Repointed []int64
	// Created is the contact inserted by this call, if any.
	Created *Contact
}
