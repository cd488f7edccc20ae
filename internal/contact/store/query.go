package store

import (
	"fmt"
	"strconv"
	"strings"

	"identity-recon/internal/contact/models"
)

const contactColumns = `id, email, phone_number, linked_id, link_precedence, created_at, updated_at`

var fieldColumns = map[models.Field]string{
	models.FieldID:             "id",
	models.FieldEmail:          "email",
	models.FieldPhoneNumber:    "phone_number",
	models.FieldLinkedID:       "linked_id",
	models.FieldLinkPrecedence: "link_precedence",
}

// filterCompiler turns a models.Filter into a parameterized WHERE clause.
// Comparisons are guarded with IS NOT NULL so SQL three-valued logic agrees
// with Filter.Match: an absent field compares false and its negation true.
type filterCompiler struct {
	args []any
}

func compileFilter(f models.Filter) (string, []any, error) {
	c := &filterCompiler{}
	where, err := c.compile(f)
	if err != nil {
		return "", nil, err
	}
	return where, c.args, nil
}

func (c *filterCompiler) compile(f models.Filter) (string, error) {
	switch f := f.(type) {
	case nil:
		return "TRUE", nil
	case models.In:
		return c.compileIn(f)
	case models.And:
		return c.compileJoin([]models.Filter(f), " AND ", "TRUE")
	case models.Or:
		return c.compileJoin([]models.Filter(f), " OR ", "FALSE")
	case models.Not:
		inner, err := c.compile(f.Filter)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	default:
		return "", fmt.Errorf("unsupported filter type %T", f)
	}
}

func (c *filterCompiler) compileIn(in models.In) (string, error) {
	col, ok := fieldColumns[in.Field]
	if !ok {
		return "", fmt.Errorf("unknown filter field %q", in.Field)
	}
	if len(in.Values) == 0 {
		return "FALSE", nil
	}
	placeholders := make([]string, len(in.Values))
	for i, v := range in.Values {
		c.args = append(c.args, v)
		placeholders[i] = "$" + strconv.Itoa(len(c.args))
	}
	return fmt.Sprintf("(%s IS NOT NULL AND %s IN (%s))", col, col, strings.Join(placeholders, ", ")), nil
}

func (c *filterCompiler) compileJoin(children []models.Filter, sep, empty string) (string, error) {
	if len(children) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(children))
	for _, child := range children {
		sql, err := c.compile(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// inClause renders "$n, $n+1, ..." for ids, appending them to args.
func inClause(args []any, ids []int64) (string, []any) {
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		args = append(args, id)
		placeholders[i] = "$" + strconv.Itoa(len(args))
	}
	return strings.Join(placeholders, ", "), args
}
