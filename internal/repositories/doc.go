// Package repositories implements SQLite persistence for suggestion history.
//
// The suggestion store remembers which tracks have been suggested to which
// user so repeat suggestions can be filtered out. Rows are append-only;
// nothing is ever updated or deleted.
package repositories
