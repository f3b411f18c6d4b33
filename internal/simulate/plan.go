// Package simulate drives a progress tree with a synthetic, nested workload.
// It is what the progtree CLI runs to demonstrate how child progress rolls up.
package simulate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPlan is returned by ParsePlan for malformed plans.
var ErrInvalidPlan = errors.New("invalid plan")

// Plan lists division counts from the root down to the leaves. "3x4x10" is a
// root of 3 units, each split into 4 parts of 10 leaf steps.
type Plan []int

// ParsePlan parses the "AxBxC" notation. The root level must be at least 1;
// deeper levels may be 0, which models a part with nothing to do.
func ParsePlan(s string) (Plan, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPlan)
	}
	fields := strings.Split(strings.ToLower(s), "x")
	plan := make(Plan, 0, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("%w: level %d %q is not a number", ErrInvalidPlan, i+1, f)
		}
		if n < 0 || (i == 0 && n == 0) {
			return nil, fmt.Errorf("%w: level %d must be positive, got %d", ErrInvalidPlan, i+1, n)
		}
		plan = append(plan, n)
	}
	return plan, nil
}

// Steps returns the number of leaf steps the plan performs.
func (p Plan) Steps() int {
	if len(p) == 0 {
		return 0
	}
	total := 1
	for _, n := range p {
		total *= n
	}
	return total
}

// String renders the plan back in "AxBxC" form.
func (p Plan) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "x")
}
