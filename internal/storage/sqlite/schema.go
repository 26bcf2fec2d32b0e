package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied idempotently (CREATE TABLE IF NOT EXISTS) on every
// Open, mirroring the teacher's embedded-schema-string migration style.
// Properties and stored-property lists are kept as JSON columns: SQLite
// has no native array/document type, and the property lists are always
// read and written whole by the propagation engine, never queried field
// by field.
const schema = `
CREATE TABLE IF NOT EXISTS catalogue_categories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	code TEXT NOT NULL,
	parent_id TEXT,
	is_leaf INTEGER NOT NULL,
	properties TEXT NOT NULL DEFAULT '[]'
);
-- SQLite treats NULL as distinct in a UNIQUE index, so a plain
-- UNIQUE(parent_id, code) lets every root (parent_id NULL) reuse the same
-- code. Indexing COALESCE(parent_id, '') instead folds all roots onto one
-- non-NULL key, so sibling-code uniqueness (I1) also holds among roots.
CREATE UNIQUE INDEX IF NOT EXISTS idx_catalogue_categories_sibling_code
	ON catalogue_categories(COALESCE(parent_id, ''), code);

CREATE TABLE IF NOT EXISTS catalogue_items (
	id TEXT PRIMARY KEY,
	catalogue_category_id TEXT NOT NULL,
	manufacturer_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT,
	cost_gbp REAL NOT NULL,
	days_to_replace INTEGER NOT NULL,
	obsolete INTEGER NOT NULL DEFAULT 0,
	obsolete_replacement_catalogue_item_id TEXT,
	properties TEXT NOT NULL DEFAULT '[]',
	number_of_spares INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_catalogue_items_category ON catalogue_items(catalogue_category_id);

CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	catalogue_item_id TEXT NOT NULL,
	system_id TEXT NOT NULL,
	usage_status_id TEXT NOT NULL,
	is_defective INTEGER NOT NULL DEFAULT 0,
	serial_number TEXT,
	warranty_end_date TEXT,
	properties TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_items_catalogue_item ON items(catalogue_item_id);
CREATE INDEX IF NOT EXISTS idx_items_system ON items(system_id);

CREATE TABLE IF NOT EXISTS systems (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	code TEXT NOT NULL,
	parent_id TEXT,
	type_id TEXT NOT NULL,
	description TEXT,
	location TEXT,
	owner TEXT,
	importance TEXT NOT NULL
);
-- See idx_catalogue_categories_sibling_code above: the same NULL-distinct
-- pitfall applies here, so roots are folded onto COALESCE(parent_id, '').
CREATE UNIQUE INDEX IF NOT EXISTS idx_systems_sibling_code
	ON systems(COALESCE(parent_id, ''), code);

CREATE TABLE IF NOT EXISTS system_types (
	id TEXT PRIMARY KEY,
	value TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS usage_statuses (
	id TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS units (
	id TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS manufacturers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE,
	url TEXT NOT NULL,
	address_line TEXT NOT NULL,
	town TEXT,
	county TEXT,
	postcode TEXT NOT NULL,
	country TEXT NOT NULL,
	telephone TEXT
);

CREATE TABLE IF NOT EXISTS rules (
	id TEXT PRIMARY KEY,
	src_system_type_id TEXT,
	dst_system_type_id TEXT,
	dst_usage_status_id TEXT
);

CREATE TABLE IF NOT EXISTS settings (
	id TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
