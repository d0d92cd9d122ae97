package filter

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
)

// Search folds a search term and a caller-supplied field list into a single
// disjunction: field1 ILIKE %term% OR field2 ILIKE %term% OR ...
//
// A blank term or an empty field list yields nil. Callers must treat a nil
// predicate as "match nothing" - the search never silently widens to all
// columns.
func Search(term string, fields []string) squirrel.Sqlizer {
	term = strings.TrimSpace(term)
	if term == "" || len(fields) == 0 {
		return nil
	}

	pattern := "%" + term + "%"
	or := make(squirrel.Or, 0, len(fields))
	for _, f := range fields {
		or = append(or, squirrel.ILike{f: pattern})
	}
	return or
}

// Predicate converts a single condition into a squirrel predicate.
// The field must already be validated against the repository's column
// whitelist; this function only translates operators.
func Predicate(c Condition) (squirrel.Sqlizer, error) {
	switch c.Operator {
	case Equal, InList:
		return squirrel.Eq{c.Field: c.Value}, nil
	case NotEqual, NotInList:
		return squirrel.NotEq{c.Field: c.Value}, nil
	case Less:
		return squirrel.Lt{c.Field: c.Value}, nil
	case LessOrEqual:
		return squirrel.LtOrEq{c.Field: c.Value}, nil
	case Greater:
		return squirrel.Gt{c.Field: c.Value}, nil
	case GreaterOrEqual:
		return squirrel.GtOrEq{c.Field: c.Value}, nil
	case Contains:
		return squirrel.ILike{c.Field: fmt.Sprintf("%%%v%%", c.Value)}, nil
	case NotContains:
		return squirrel.NotILike{c.Field: fmt.Sprintf("%%%v%%", c.Value)}, nil
	case IsNull:
		return squirrel.Eq{c.Field: nil}, nil
	case IsNotNull:
		return squirrel.NotEq{c.Field: nil}, nil
	default:
		return nil, fmt.Errorf("unknown filter operator: %s", c.Operator)
	}
}

// All combines conditions into one conjunction.
func All(conditions []Condition) (squirrel.Sqlizer, error) {
	if len(conditions) == 0 {
		return nil, nil
	}

	and := make(squirrel.And, 0, len(conditions))
	for _, c := range conditions {
		p, err := Predicate(c)
		if err != nil {
			return nil, err
		}
		and = append(and, p)
	}
	return and, nil
}
