package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
)

// ExternalRef names a cross-collection foreign key that counts as a child
// element of a tree node even though it does not live in the tree's own
// table (catalogue items under a category, items under a system).
type ExternalRef struct {
	Table  string
	Column string
}

// TreeStore is the shared implementation behind §4.B: persist and query a
// rooted forest, with breadcrumbs and cycle-safe move validation. It is
// embedded by the catalogue-category and system repositories, each of
// which adds its own entity-specific columns on top of id/name/code/parent_id.
type TreeStore struct {
	Table        string
	ExternalRefs []ExternalRef
}

// TrailEntry is one node on a breadcrumb trail.
type TrailEntry struct {
	ID   ids.ID
	Name string
}

// Breadcrumbs is the root-to-node trail for one node, truncated at a
// configured maximum length.
type Breadcrumbs struct {
	Trail     []TrailEntry
	FullTrail bool
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Breadcrumbs walks ancestors of id up to maxTrail entries (self
// included). A parent link that is broken strictly after the first hop
// (i.e. anywhere above self) raises database-integrity rather than
// truncating; a missing starting node is missing-record.
func (t *TreeStore) Breadcrumbs(ctx context.Context, q querier, id ids.ID, maxTrail int) (Breadcrumbs, error) {
	if maxTrail < 2 {
		maxTrail = 2
	}

	query := fmt.Sprintf(`
		WITH RECURSIVE trail(id, name, parent_id, depth) AS (
			SELECT id, name, parent_id, 0 FROM %s WHERE id = ?
			UNION ALL
			SELECT p.id, p.name, p.parent_id, trail.depth + 1
			FROM %s p JOIN trail ON p.id = trail.parent_id
			WHERE trail.depth < ?
		)
		SELECT id, name, parent_id, depth FROM trail ORDER BY depth DESC
	`, t.Table, t.Table)

	rows, err := q.QueryContext(ctx, query, id.String(), maxTrail-1)
	if err != nil {
		return Breadcrumbs{}, fmt.Errorf("breadcrumbs query: %w", err)
	}
	defer rows.Close()

	type row struct {
		id       ids.ID
		name     string
		parentID *ids.ID
		depth    int
	}
	var got []row
	for rows.Next() {
		var idStr string
		var name string
		var parentID sql.NullString
		var depth int
		if err := rows.Scan(&idStr, &name, &parentID, &depth); err != nil {
			return Breadcrumbs{}, fmt.Errorf("scan breadcrumb row: %w", err)
		}
		parsed, err := ids.Parse(idStr)
		if err != nil {
			return Breadcrumbs{}, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
		}
		var pid *ids.ID
		if parentID.Valid {
			p, err := ids.Parse(parentID.String)
			if err != nil {
				return Breadcrumbs{}, kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored parent id", err)
			}
			pid = &p
		}
		got = append(got, row{id: parsed, name: name, parentID: pid, depth: depth})
	}
	if err := rows.Err(); err != nil {
		return Breadcrumbs{}, fmt.Errorf("iterate breadcrumb rows: %w", err)
	}

	if len(got) == 0 {
		return Breadcrumbs{}, kinderr.New(kinderr.KindMissingRecord, "record not found")
	}

	// got is ordered oldest-first (depth DESC); the last element (depth 0) is self.
	oldest := got[0]
	fullTrail := oldest.parentID == nil
	if !fullTrail && len(got) < maxTrail {
		// Recursion stopped before hitting the cap, yet the oldest
		// captured node still claims a parent: that parent does not
		// exist. This is only reachable beyond the first hop (self is
		// always present, having already been confirmed to exist).
		return Breadcrumbs{}, kinderr.New(kinderr.KindDatabaseIntegrity,
			fmt.Sprintf("orphaned parent link above node %s", oldest.id))
	}

	trail := make([]TrailEntry, 0, len(got))
	for _, r := range got {
		trail = append(trail, TrailEntry{ID: r.id, Name: r.name})
	}

	return Breadcrumbs{Trail: trail, FullTrail: fullTrail}, nil
}

// maxCycleWalk bounds the ancestor walk used for move-validity checking,
// guarding against runaway recursion if stored data already contains a
// cycle from outside this code path.
const maxCycleWalk = 100000

// CheckMoveValid graph-walks ancestors from newParentID upward; if
// movingID is encountered, the move would introduce a cycle.
func (t *TreeStore) CheckMoveValid(ctx context.Context, q querier, movingID, newParentID ids.ID) error {
	if movingID == newParentID {
		return kinderr.New(kinderr.KindInvalidAction, "cannot move a node under itself")
	}

	query := fmt.Sprintf(`
		WITH RECURSIVE ancestors(id, parent_id, depth) AS (
			SELECT id, parent_id, 0 FROM %s WHERE id = ?
			UNION ALL
			SELECT p.id, p.parent_id, ancestors.depth + 1
			FROM %s p JOIN ancestors ON p.id = ancestors.parent_id
			WHERE ancestors.depth < ?
		)
		SELECT id FROM ancestors
	`, t.Table, t.Table)

	rows, err := q.QueryContext(ctx, query, newParentID.String(), maxCycleWalk)
	if err != nil {
		return fmt.Errorf("move-check query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return fmt.Errorf("scan ancestor row: %w", err)
		}
		ancestorID, err := ids.Parse(idStr)
		if err != nil {
			return kinderr.Wrap(kinderr.KindDatabaseIntegrity, "malformed stored id", err)
		}
		if ancestorID == movingID {
			return kinderr.New(kinderr.KindInvalidAction, "move would create a cycle")
		}
	}
	return rows.Err()
}

// HasChildElements reports whether id has child nodes in its own tree, or
// any externally-referencing rows registered via ExternalRefs (catalogue
// items under a category, items under a system, child systems under a
// system).
func (t *TreeStore) HasChildElements(ctx context.Context, q querier, id ids.ID) (bool, error) {
	var count int
	childQuery := fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE parent_id = ?", t.Table)
	if err := q.QueryRowContext(ctx, childQuery, id.String()).Scan(&count); err != nil {
		return false, fmt.Errorf("count child nodes: %w", err)
	}
	if count > 0 {
		return true, nil
	}

	for _, ref := range t.ExternalRefs {
		refQuery := fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE %s = ?", ref.Table, ref.Column)
		if err := q.QueryRowContext(ctx, refQuery, id.String()).Scan(&count); err != nil {
			return false, fmt.Errorf("count external refs in %s: %w", ref.Table, err)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

// WriteLock performs a no-op self-update on id's row to acquire a
// document-level write lock. Callers must invoke this with a Transaction
// (not the bare *Store), and before reading any dependent data the
// subsequent recompute relies on, per §5.
func (t *TreeStore) WriteLock(ctx context.Context, q querier, id ids.ID) error {
	return WriteLockRow(ctx, q, t.Table, id)
}

// ParentExists reports whether parentID resolves to an existing row.
func (t *TreeStore) ParentExists(ctx context.Context, q querier, parentID ids.ID) (bool, error) {
	var one int
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", t.Table)
	err := q.QueryRowContext(ctx, query, parentID.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check parent exists: %w", err)
	}
	return true, nil
}

// IsUniqueConstraintErr reports whether err is a sqlite UNIQUE constraint
// violation, the trigger for translating a raw driver error into
// duplicate-record.
func IsUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	// ncruces/go-sqlite3 surfaces constraint violations with this
	// substring in the driver error text; there is no typed sentinel to
	// errors.As against across driver versions.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
