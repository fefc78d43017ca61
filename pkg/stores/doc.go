// Package stores persists resolved plans and execution runs. The
// SQLite implementation keeps history in a single file with embedded
// schema migrations.
package stores
