// Package service contains the application use cases. GuideService
// orchestrates text extraction, generation, persistence and archiving of
// study guides, and exposes the read, progress, replan and delete
// operations the API layer calls.
//
// The service depends on the ports declared here and in internal/store and
// internal/generation, never on a concrete platform adapter.
package service
