package facts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrStoreUnavailable wraps every I/O failure reaching the fact or master store.
var ErrStoreUnavailable = errors.New("store unavailable")

// FactStore reads daily fact rows. Both date bounds are inclusive. A nil
// filter returns rows for every dimension.
type FactStore interface {
	Select(ctx context.Context, kind Kind, from, to time.Time, filter *Code) ([]DailyFact, error)
}

// MasterStore reads master data.
type MasterStore interface {
	// LookupActive returns active records ordered by seq.
	LookupActive(ctx context.Context, kind MasterKind) ([]MasterRecord, error)
	// LookupByCode returns nil, nil when no record carries the code.
	LookupByCode(ctx context.Context, kind MasterKind, code Code) (*MasterRecord, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// placeholder renders the n-th (1-based) bind parameter for a dialect.
type placeholder func(n int) string

func dollar(n int) string   { return fmt.Sprintf("$%d", n) }
func question(_ int) string { return "?" }

// selectFactsSQL composes the single read used for a fact query.
func selectFactsSQL(kind Kind, filtered bool, ph placeholder) (string, error) {
	spec, ok := tables[kind]
	if !ok {
		return "", fmt.Errorf("unknown dataset kind %q", kind)
	}

	cols := make([]string, 0, len(spec.Measures)+2)
	cols = append(cols, "date", spec.Dimension)
	for _, m := range spec.Measures {
		cols = append(cols, string(m))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE date BETWEEN %s AND %s",
		strings.Join(cols, ", "), spec.Table, ph(1), ph(2))
	if filtered {
		fmt.Fprintf(&b, " AND %s = %s", spec.Dimension, ph(3))
	}
	fmt.Fprintf(&b, " ORDER BY date, %s", spec.Dimension)
	return b.String(), nil
}

func masterColumns(spec masterSpec, nullInt string) string {
	capacity := nullInt
	if spec.Capacity != "" {
		capacity = spec.Capacity
	}
	return fmt.Sprintf("%s, %s, seq, valid, %s", spec.Code, spec.Name, capacity)
}

func selectActiveSQL(kind MasterKind, nullInt string) (string, error) {
	spec, ok := masters[kind]
	if !ok {
		return "", fmt.Errorf("unknown master kind %q", kind)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE valid = TRUE ORDER BY seq",
		masterColumns(spec, nullInt), spec.Table), nil
}

func selectByCodeSQL(kind MasterKind, nullInt string, ph placeholder) (string, error) {
	spec, ok := masters[kind]
	if !ok {
		return "", fmt.Errorf("unknown master kind %q", kind)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		masterColumns(spec, nullInt), spec.Table, spec.Code, ph(1)), nil
}

// codeArg converts a filter code into the bind value the column expects. A
// non-numeric code for an integer column cannot match any row.
func codeArg(intCodes bool, code Code) (interface{}, bool) {
	if !intCodes {
		return string(code), true
	}
	n, ok := code.Int()
	if !ok {
		return nil, false
	}
	return n, true
}

func masterIntCodes(kind MasterKind) bool {
	return kind == Departments || kind == Wards
}
