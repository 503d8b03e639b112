package postgres

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/logweave/internal/domain"
)

// buildWhere assembles the conjunctive WHERE clause and positional args for
// a log search filter. Returns an empty string when nothing is filtered.
func buildWhere(filter domain.LogFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.ClientID != "" {
		add("client_id = $%d", filter.ClientID)
	}
	if filter.Severity != "" {
		add("severity = $%d", filter.Severity)
	}
	if filter.TraceID != "" {
		add("trace_id = $%d", filter.TraceID)
	}
	if !filter.Start.IsZero() {
		add("timestamp >= $%d", filter.Start)
	}
	if !filter.End.IsZero() {
		add("timestamp <= $%d", filter.End)
	}
	if filter.BodySubstring != "" {
		add("body ILIKE $%d", "%"+escapeLike(filter.BodySubstring)+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike neutralizes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
