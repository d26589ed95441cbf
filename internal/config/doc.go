// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional YAML file. It provides
// type-safe access to the settings of the HTTP server, the guide store
// backends, the cache, the source archive and the Gemini integration.
package config
