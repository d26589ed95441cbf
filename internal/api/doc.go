// Package api exposes the guide service over HTTP. Handlers resolve the
// caller's Gemini credential and owner, decode and validate request bodies,
// and translate service errors into status codes with client-safe messages.
// Route wiring lives in cmd/server.
package api
