package models

// Field names a filterable contact column.
type Field string

const (
	FieldID             Field = "id"
	FieldEmail          Field = "email"
	FieldPhoneNumber    Field = "phoneNumber"
	FieldLinkedID       Field = "linkedId"
	FieldLinkPrecedence Field = "linkPrecedence"
)

// Filter is a boolean expression over contact fields. Match defines the
// semantics every store must reproduce: a comparison against an absent field
// is false, so its negation is true.
type Filter interface {
	Match(c *Contact) bool
}

// In matches when the field is present and equals one of Values.
// Values hold string for email, phone and precedence; int64 for id and linkedId.
type In struct {
	Field  Field
	Values []any
}

// And matches when every child matches. An empty And matches everything.
type And []Filter

// Or matches when any child matches. An empty Or matches nothing.
type Or []Filter

// Not inverts its child.
type Not struct {
	Filter Filter
}

func EmailIs(email string) In { return In{Field: FieldEmail, Values: []any{email}} }
func PhoneIs(phone string) In { return In{Field: FieldPhoneNumber, Values: []any{phone}} }
func IDIn(ids ...int64) In { return In{Field: FieldID, Values: int64s(ids)} }
func LinkedIDIn(ids ...int64) In { return In{Field: FieldLinkedID, Values: int64s(ids)} }
func PrecedenceIs(p LinkPrecedence) In {
	return In{Field: FieldLinkPrecedence, Values: []any{string(p)}}
}

func int64s(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func (f In) Match(c *Contact) bool {
	v, ok := fieldValue(c, f.Field)
	if !ok {
		return false
	}
	for _, want := range f.Values {
		if v == want {
			return true
		}
	}
	return false
}

func (f And) Match(c *Contact) bool {
	for _, child := range f {
		if !child.Match(c) {
			return false
		}
	}
	return true
}

func (f Or) Match(c *Contact) bool {
	for _, child := range f {
		if child.Match(c) {
			return true
		}
	}
	return false
}

func (f Not) Match(c *Contact) bool {
	return !f.Filter.Match(c)
}

func fieldValue(c *Contact, field Field) (any, bool) {
	switch field {
	case FieldID:
		return c.ID, true
	case FieldEmail:
		if c.Email == nil {
			return nil, false
		}
		return *c.Email, true
	case FieldPhoneNumber:
		if c.PhoneNumber == nil {
			return nil, false
		}
		return *c.PhoneNumber, true
	case FieldLinkedID:
		if c.LinkedID == nil {
			return nil, false
		}
		return *c.LinkedID, true
	case FieldLinkPrecedence:
		return string(c.LinkPrecedence), true
	default:
		return nil, false
	}
}
