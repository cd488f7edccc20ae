package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestFilterMatch(t *testing.T) {
	primary := &Contact{ID: 1, Email: ptr("a@x.com"), PhoneNumber: ptr("111"), LinkPrecedence: LinkPrecedencePrimary}
	secondary := &Contact{ID: 2, Email: ptr("b@x.com"), LinkPrecedence: LinkPrecedenceSecondary, LinkedID: ptr(int64(1))}

	tests := []struct {
		name   string
		filter Filter
		c      *Contact
		want   bool
	}{
		{"email equality", EmailIs("a@x.com"), primary, true},
		{"email mismatch", EmailIs("a@x.com"), secondary, false},
		{"absent phone never matches", PhoneIs("111"), secondary, false},
		{"not of absent field matches", Not{Filter: PhoneIs("111")}, secondary, true},
		{"id membership", IDIn(3, 2), secondary, true},
		{"empty id membership", IDIn(), secondary, false},
		{"linked id on primary", LinkedIDIn(1), primary, false},
		{"linked id on secondary", LinkedIDIn(1), secondary, true},
		{"precedence", PrecedenceIs(LinkPrecedenceSecondary), secondary, true},
		{"or of email and phone", Or{EmailIs("z@x.com"), PhoneIs("111")}, primary, true},
		{"empty or", Or{}, primary, false},
		{"empty and", And{}, primary, true},
		{
			"secondary of primary excluding seen ids",
			And{PrecedenceIs(LinkPrecedenceSecondary), LinkedIDIn(1), Not{Filter: IDIn(2)}},
			secondary,
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(tt.c))
		})
	}
}
