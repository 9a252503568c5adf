package schema

import (
	"context"
	"strings"

	"github.com/roach88/shelf/internal/ir"
)

// Plan is the set of schema changes a write needs.
type Plan struct {
	Collection string

	// Absent is true when the table does not exist yet.
	Absent bool

	// Missing lists the columns to create, in the caller's order.
	Missing []string

	// Snapshot is the table state the plan was computed from.
	Snapshot Snapshot
}

// Empty reports whether the plan requires no schema change.
func (p Plan) Empty() bool {
	return !p.Absent && len(p.Missing) == 0
}

// Reconciler computes Plans from fresh snapshots.
type Reconciler struct {
	catalog Catalog
}

// NewReconciler creates a Reconciler reading from c.
func NewReconciler(c Catalog) *Reconciler {
	return &Reconciler{catalog: c}
}

// Reconcile compares desired field names with the collection's current
// columns. The identity column is never reported; duplicates in desired
// are collapsed to their first occurrence.
func (r *Reconciler) Reconcile(ctx context.Context, collection string, desired []string) (Plan, error) {
	snap, err := Take(ctx, r.catalog, collection)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Collection: collection,
		Absent:     !snap.Exists(),
		Missing:    missing(snap, desired),
		Snapshot:   snap,
	}, nil
}

// missing returns desired minus the snapshot's columns and the identity.
func missing(snap Snapshot, desired []string) []string {
	var out []string
	seen := make(map[string]bool, len(desired))
	for _, name := range desired {
		folded := strings.ToLower(name)
		if seen[folded] || ir.IsIdentity(name) || snap.Has(name) {
			continue
		}
		seen[folded] = true
		out = append(out, name)
	}
	return out
}
