// Package generation defines the boundary between the guide lifecycle and
// the language model that writes study material.
//
// The Generator interface covers the four model interactions the service
// needs: generating a full guide from a transcript, regenerating the
// incomplete part of a schedule, writing a motivational nudge, and
// transcribing audio or video sources. Implementations live under
// internal/platform (see the gemini package).
//
// The package also owns the pieces that are independent of any provider:
// prompt templates, code-fence stripping, decoding and validating model
// output into domain types, and the error taxonomy callers branch on.
package generation
