package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/shelf/internal/ir"
	"github.com/roach88/shelf/internal/store"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against st and returns a
// message per failure.
func EvaluateAssertions(ctx context.Context, st *store.Store, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertColumns:
			err = assertColumns(ctx, st, a)
		case AssertRowCount:
			err = assertRowCount(ctx, st, a)
		case AssertRecord:
			err = assertRecord(ctx, st, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func assertColumns(ctx context.Context, st *store.Store, a Assertion) error {
	name, err := ir.NormalizeCollection(a.Collection)
	if err != nil {
		return err
	}
	cols, err := st.Columns(ctx, name)
	if err != nil {
		return fmt.Errorf("reading columns of %s: %w", name, err)
	}
	if !slices.Equal(cols, a.Columns) {
		return &AssertionError{
			Type:     AssertColumns,
			Expected: fmt.Sprintf("%s columns %v", name, a.Columns),
			Actual:   fmt.Sprintf("%v", cols),
		}
	}
	return nil
}

func assertRowCount(ctx context.Context, st *store.Store, a Assertion) error {
	name, err := ir.NormalizeCollection(a.Collection)
	if err != nil {
		return err
	}
	n, err := countRows(ctx, st, name)
	if err != nil {
		return err
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s", a.Count, name),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

// countRows treats a missing table as empty.
func countRows(ctx context.Context, st *store.Store, name string) (int, error) {
	cols, err := st.Columns(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("reading columns of %s: %w", name, err)
	}
	if len(cols) == 0 {
		return 0, nil
	}
	m, err := st.Collection(name)
	if err != nil {
		return 0, err
	}
	rows, err := m.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", name, err)
	}
	return len(rows), nil
}

func assertRecord(ctx context.Context, st *store.Store, a Assertion) error {
	name, err := ir.NormalizeCollection(a.Collection)
	if err != nil {
		return err
	}
	m, err := st.Collection(name)
	if err != nil {
		return err
	}
	rec, err := m.Get(ctx, a.ID)
	if err != nil {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("row %d in %s", a.ID, name),
			Actual:   err.Error(),
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	var got any
	if err := json.Unmarshal(data, &got); err != nil {
		return err
	}
	want, err := nodeValue(&a.Expect)
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}
	if path, ok := matchSubset(got, want, name); !ok {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("%s matching %s", path, describe(want)),
			Actual:   string(data),
		}
	}
	return nil
}

// matchSubset reports whether got contains want. Objects match when every
// key of want matches; arrays match element-wise and must have equal
// length. On mismatch it returns the path of the first difference.
func matchSubset(got, want any, path string) (string, bool) {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return path, false
		}
		keys := make([]string, 0, len(w))
		for k := range w {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			gv, ok := g[k]
			if !ok {
				return path + "." + k, false
			}
			if p, ok := matchSubset(gv, w[k], path+"."+k); !ok {
				return p, false
			}
		}
		return "", true
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			return path, false
		}
		for i := range w {
			if p, ok := matchSubset(g[i], w[i], fmt.Sprintf("%s[%d]", path, i)); !ok {
				return p, false
			}
		}
		return "", true
	default:
		if reflect.DeepEqual(got, want) {
			return "", true
		}
		return path, false
	}
}

func describe(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
