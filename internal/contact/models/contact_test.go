package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionNormalize(t *testing.T) {
	s := Submission{Email: "  Ada@Example.COM ", PhoneNumber: " 123456 "}.Normalize()

	assert.Equal(t, "ada@example.com", s.Email)
	assert.Equal(t, "123456", s.PhoneNumber)
	assert.False(t, s.Empty())
	assert.True(t, Submission{Email: "  "}.Normalize().Empty())
}

func TestSubmissionLockKeys(t *testing.T) {
	assert.Equal(t, []string{"email:a@x.com", "phone:111"}, Submission{Email: "a@x.com", PhoneNumber: "111"}.LockKeys())
	assert.Equal(t, []string{"phone:111"}, Submission{PhoneNumber: "111"}.LockKeys())
	assert.Nil(t, Submission{}.EmailPtr())
}

func TestComponentKeysDedupesAndSorts(t *testing.T) {
	contacts := []*Contact{
		{ID: 2, Email: ptr("b@x.com"), PhoneNumber: ptr("111")},
		{ID: 1, Email: ptr("a@x.com"), PhoneNumber: ptr("111")},
		{ID: 3},
	}
	assert.Equal(t, []string{"email:a@x.com", "email:b@x.com", "phone:111"}, ComponentKeys(contacts))
}

func TestSortByCreationUsesFullPrecisionThenID(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	contacts := []*Contact{
		// Same second, different milliseconds: must not be treated as a tie.
		{ID: 1, CreatedAt: base.Add(900 * time.Millisecond)},
		{ID: 3, CreatedAt: base.Add(100 * time.Millisecond)},
		{ID: 2, CreatedAt: base.Add(100 * time.Millisecond)},
	}
	SortByCreation(contacts)
	assert.Equal(t, []int64{2, 3, 1}, IDs(contacts))
}

func TestParseLinkPrecedence(t *testing.T) {
	p, err := ParseLinkPrecedence("secondary")
	require.NoError(t, err)
	assert.Equal(t, LinkPrecedenceSecondary, p)

	_, err = ParseLinkPrecedence("tertiary")
	assert.Error(t, err)
}

func TestCloneDoesNotAlias(t *testing.T) {
	c := &Contact{ID: 1, Email: ptr("a@x.com"), LinkedID: ptr(int64(9))}
	cp := c.Clone()
	*cp.Email = "changed"
	*cp.LinkedID = 10

	assert.Equal(t, "a@x.com", c.EmailValue())
	assert.Equal(t, int64(9), *c.LinkedID)
}
