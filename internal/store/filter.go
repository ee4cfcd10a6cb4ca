package store

import (
	"fmt"
	"strings"
)

// Order selects the timestamp ordering of listed exchanges. Insertion
// order (the id column) breaks ties between equal timestamps.
type Order int

// Orderings accepted by List.
const (
	OrderDesc Order = iota
	OrderAsc
)

func (o Order) sql() string {
	if o == OrderAsc {
		return "ORDER BY timestamp ASC, id ASC"
	}
	return "ORDER BY timestamp DESC, id DESC"
}

// Filter is a composable predicate over captured exchanges. Zero fields
// are ignored; set fields combine with logical AND. Search forms an OR
// group over url, request body, and response body, ANDed with the rest.
type Filter struct {
	Host         string // substring match on host
	TargetDomain string // substring match on host, composes with Host
	Method       string // exact match
	Status       *int   // exact response status match
	Search       string // substring across url/request_body/response_body
	Analyzed     *bool
}

// IsZero reports whether no predicate is set.
func (f Filter) IsZero() bool {
	return f.Host == "" && f.TargetDomain == "" && f.Method == "" &&
		f.Status == nil && f.Search == "" && f.Analyzed == nil
}

// clause builds the parameterized WHERE clause for the filter. It returns
// an empty string when no predicate is set.
func (f Filter) clause() (string, []any) {
	var conds []string
	var args []any

	if f.Host != "" {
		conds = append(conds, "host LIKE ?")
		args = append(args, "%"+f.Host+"%")
	}
	if f.TargetDomain != "" {
		conds = append(conds, "host LIKE ?")
		args = append(args, "%"+f.TargetDomain+"%")
	}
	if f.Method != "" {
		conds = append(conds, "method = ?")
		args = append(args, f.Method)
	}
	if f.Status != nil {
		conds = append(conds, "response_status = ?")
		args = append(args, *f.Status)
	}
	if f.Search != "" {
		conds = append(conds, "(url LIKE ? OR request_body LIKE ? OR response_body LIKE ?)")
		needle := "%" + f.Search + "%"
		args = append(args, needle, needle, needle)
	}
	if f.Analyzed != nil {
		conds = append(conds, "analyzed = ?")
		if *f.Analyzed {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// aggregate columns allowed as GROUP BY keys.
const (
	GroupByMethod = "method"
	GroupByHost   = "host"
)

func validateGroupBy(groupBy string) error {
	switch groupBy {
	case GroupByMethod, GroupByHost:
		return nil
	default:
		return fmt.Errorf("invalid group-by column %q", groupBy)
	}
}
