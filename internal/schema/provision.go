package schema

import (
	"context"
	"log/slog"

	"github.com/roach88/shelf/internal/metrics"
)

// Migrator applies DDL to the store.
type Migrator interface {
	Catalog

	// CreateTable creates the table with an identity column and cols as
	// TEXT, if it does not exist.
	CreateTable(ctx context.Context, table string, cols []string) error

	// AddColumn adds one TEXT column.
	AddColumn(ctx context.Context, table, col string) error
}

// Changes reports the DDL a Provisioner issued.
type Changes struct {
	Created   bool
	Added     []string
	Tolerated []string

	// Version is the schema version once the changes were applied, or 0
	// when nothing changed or it could not be read.
	Version int64
}

func (c Changes) changed() bool {
	return c.Created || len(c.Added) > 0 || len(c.Tolerated) > 0
}

// Provisioner applies Plans.
type Provisioner struct {
	migrator Migrator
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewProvisioner creates a Provisioner. m may be nil.
func NewProvisioner(mig Migrator, m *metrics.Metrics, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{migrator: mig, metrics: m, logger: logger}
}

// Ensure makes the collection's table hold every column in plan.
//
// An absent table is created with all missing columns at once. Because a
// concurrent writer may have created it first with other columns, the
// table is re-read afterwards and any column still missing is added.
//
// Columns are added one at a time in plan order. When an addition fails
// and a re-read shows the column now exists, the failure is tolerated.
// Any other failure stops the remaining additions; those already applied
// persist.
func (p *Provisioner) Ensure(ctx context.Context, plan Plan) (Changes, error) {
	var changes Changes
	pending := plan.Missing

	if plan.Absent {
		if err := p.migrator.CreateTable(ctx, plan.Collection, plan.Missing); err != nil {
			return changes, &Error{Code: ErrCodeCreate, Collection: plan.Collection, Err: err}
		}
		changes.Created = true
		p.metrics.SchemaChange(metrics.ChangeCreate)
		p.logger.InfoContext(ctx, "created collection",
			"collection", plan.Collection,
			"columns", plan.Missing)

		snap, err := Take(ctx, p.migrator, plan.Collection)
		if err != nil {
			return changes, err
		}
		pending = missing(snap, plan.Missing)
	}

	for _, col := range pending {
		err := p.migrator.AddColumn(ctx, plan.Collection, col)
		if err == nil {
			changes.Added = append(changes.Added, col)
			p.metrics.SchemaChange(metrics.ChangeAdd)
			p.logger.InfoContext(ctx, "added column",
				"collection", plan.Collection,
				"column", col)
			continue
		}

		if p.existsNow(ctx, plan.Collection, col) {
			changes.Tolerated = append(changes.Tolerated, col)
			p.metrics.SchemaChange(metrics.ChangeTolerated)
			p.logger.DebugContext(ctx, "column added concurrently",
				"collection", plan.Collection,
				"column", col,
				"error", err)
			continue
		}

		return changes, &Error{Code: ErrCodeExtension, Collection: plan.Collection, Column: col, Err: err}
	}

	if changes.changed() {
		p.recordVersion(ctx, plan.Collection, &changes)
	}
	return changes, nil
}

// recordVersion stores the schema version reached by changes. The DDL has
// already been applied, so a failed read is only logged.
func (p *Provisioner) recordVersion(ctx context.Context, collection string, changes *Changes) {
	version, err := p.migrator.SchemaVersion(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "reading schema version",
			"collection", collection,
			"error", err)
		return
	}
	changes.Version = version
	p.logger.DebugContext(ctx, "schema provisioned",
		"collection", collection,
		"schema_version", version)
}

// existsNow re-reads the table and reports whether col is present.
// A failed re-read counts as absent.
func (p *Provisioner) existsNow(ctx context.Context, collection, col string) bool {
	snap, err := Take(ctx, p.migrator, collection)
	if err != nil {
		return false
	}
	return snap.Has(col)
}
