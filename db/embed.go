// Package db carries the embedded schema applied at startup.
package db

import _ "embed"

// Schema holds the idempotent DDL for every table, index, and constraint
// the engine relies on.
//
//go:embed migrations/001_schema.sql
var Schema string
