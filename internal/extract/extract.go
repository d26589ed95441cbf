// Package extract turns uploaded study material into plain text.
//
// The format is chosen from the file extension; files without one are
// sniffed by content. PDF, DOCX and plain text are read locally. Audio and
// video are recognized but not decoded: Extract reports them as media so
// the caller can route the bytes to a transcriber.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnsupportedFormat is returned for files whose type cannot be handled.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// MIME types for the document formats read locally.
const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEText = "text/plain"
)

// Result is the outcome of an extraction.
type Result struct {
	// Text is the extracted plain text; empty for media.
	Text string
	// Media reports an audio or video input.
	Media bool
	// MIMEType is the detected or inferred content type.
	MIMEType string
}

type format int

const (
	formatUnknown format = iota
	formatPDF
	formatDOCX
	formatText
	formatMedia
)

var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".text":     true,
}

// mediaExtensions maps audio and video extensions to the MIME type sent
// upstream when content sniffing is inconclusive.
var mediaExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
}

// Extractor extracts plain text from uploaded files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text content of data, using filename's extension to
// pick the format.
func (e *Extractor) Extract(filename string, data []byte) (Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	kind, mimeType := classify(ext, data)

	switch kind {
	case formatPDF:
		text, err := extractPDF(data)
		return Result{Text: text, MIMEType: MIMEPDF}, err
	case formatDOCX:
		text, err := extractDOCX(data)
		return Result{Text: text, MIMEType: MIMEDOCX}, err
	case formatText:
		return Result{Text: extractPlain(data), MIMEType: MIMEText}, nil
	case formatMedia:
		return Result{Media: true, MIMEType: mimeType}, nil
	default:
		if ext == "" {
			return Result{}, fmt.Errorf("%w: undetected content type %s", ErrUnsupportedFormat, mimeType)
		}
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// classify resolves the format from the extension, falling back to content
// sniffing when there is none.
func classify(ext string, data []byte) (format, string) {
	switch {
	case ext == ".pdf":
		return formatPDF, MIMEPDF
	case ext == ".docx":
		return formatDOCX, MIMEDOCX
	case textExtensions[ext]:
		return formatText, MIMEText
	case mediaExtensions[ext] != "":
		return formatMedia, mediaType(data, mediaExtensions[ext])
	case ext != "":
		return formatUnknown, ""
	}

	detected := mimetype.Detect(data)
	switch {
	case detected.Is(MIMEPDF):
		return formatPDF, MIMEPDF
	case detected.Is(MIMEDOCX):
		return formatDOCX, MIMEDOCX
	case isMedia(detected.String()):
		return formatMedia, baseType(detected.String())
	}
	for m := detected; m != nil; m = m.Parent() {
		if baseType(m.String()) == MIMEText {
			return formatText, MIMEText
		}
	}
	return formatUnknown, detected.String()
}

// mediaType prefers the sniffed audio/video type over the extension default.
func mediaType(data []byte, fallback string) string {
	if len(data) == 0 {
		return fallback
	}
	if detected := baseType(mimetype.Detect(data).String()); isMedia(detected) {
		return detected
	}
	return fallback
}

func isMedia(mimeType string) bool {
	return strings.HasPrefix(mimeType, "audio/") || strings.HasPrefix(mimeType, "video/")
}

func baseType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		return strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

func extractPlain(data []byte) string {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	return strings.TrimSpace(strings.TrimPrefix(text, "\ufeff"))
}
