// Package gemini provides an implementation of the generation.Generator interface
// that uses Google's Gemini API for generating study guides, replans,
// motivational messages and media transcriptions.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the application's core to Google's external Gemini AI service.
// It translates between the application's domain models and the Gemini API
// without exposing the details of the external service to the core application.
//
// Key components:
//
// 1. Generator:
//   - Implements the generation.Generator interface
//   - Resolves the per-request API key, falling back to the configured key
//   - Caches one Gemini client per API key
//
// 2. Request pacing:
//   - Gates every upstream attempt through a token-bucket limiter
//   - Records request, retry and latency metrics
//
// 3. Error Handling:
//   - Retries rate-limit and unavailability errors with exponential backoff and jitter
//   - Translates rejected keys, safety blocks and terminal API errors into
//     the generation package's error taxonomy
//
// The package depends on Google's google.golang.org/genai client library
// for communicating with the Gemini API.
package gemini
