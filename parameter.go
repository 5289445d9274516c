package arrowodbc

import "database/sql"

// Parameter is one positional input parameter of a query. Parameters bind
// in the order given, matching the placeholders of the statement.
type Parameter interface {
	arg() any
}

type textParameter struct {
	value sql.NullString
}

func (p textParameter) arg() any { return p.value }

// TextParameter binds a text value.
func TextParameter(value string) Parameter {
	return textParameter{value: sql.NullString{String: value, Valid: true}}
}

// NullParameter binds SQL NULL, typed as text.
func NullParameter() Parameter {
	return textParameter{}
}

func parameterArgs(params []Parameter) []any {
	if len(params) == 0 {
		return nil
	}

	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p.arg()
	}

	return args
}
