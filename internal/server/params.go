package server

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"ouvidoria/internal/query"
)

// values returns every value of key, accepting both repeated parameters and
// comma-separated lists. Blank entries are dropped.
func values(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// parseCriteria reads year, state, category and limit. A missing year or
// state is not an error: the reader short-circuits on it. maxRows caps limit
// when positive.
func parseCriteria(q url.Values, maxRows int) (query.Criteria, error) {
	var c query.Criteria
	for _, y := range values(q, "year") {
		n, err := strconv.Atoi(y)
		if err != nil || n < 1 || n > 9999 {
			return c, fmt.Errorf("bad year %q", y)
		}
		c.Years = append(c.Years, n)
	}
	for _, s := range values(q, "state") {
		c.States = append(c.States, strings.ToLower(s))
	}
	c.Category = strings.ToLower(strings.TrimSpace(q.Get("category")))

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c, fmt.Errorf("bad limit %q", v)
		}
		c.Limit = n
	}
	if maxRows > 0 && (c.Limit == 0 || c.Limit > maxRows) {
		c.Limit = maxRows
	}
	return c, nil
}
