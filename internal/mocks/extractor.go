package mocks

import "github.com/phrazzld/studyguide-api/internal/extract"

// MockExtractor implements service.Extractor for testing.
type MockExtractor struct {
	ExtractFn func(filename string, data []byte) (extract.Result, error)

	// Result and Err are returned when ExtractFn is nil.
	Result extract.Result
	Err    error
}

// Extract returns ExtractFn's result, or Result and Err.
func (m *MockExtractor) Extract(filename string, data []byte) (extract.Result, error) {
	if m.ExtractFn != nil {
		return m.ExtractFn(filename, data)
	}
	return m.Result, m.Err
}

// NewMockExtractorWithText creates an extractor that returns text for every file.
func NewMockExtractorWithText(text string) *MockExtractor {
	return &MockExtractor{Result: extract.Result{Text: text, MIMEType: extract.MIMEText}}
}
