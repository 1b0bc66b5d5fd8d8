// Package store keeps run logs, aggregated tables and quality scores in a
// SQLite database.
package store
