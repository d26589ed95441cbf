// Package postgres provides the PostgreSQL implementation of
// store.GuideStore. Guides are stored as JSONB documents alongside the
// columns needed to look them up, and the schema is managed with goose
// migrations embedded in the binary.
package postgres
