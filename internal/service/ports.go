package service

import (
	"context"

	"github.com/phrazzld/studyguide-api/internal/extract"
)

// Extractor turns an uploaded file into text. *extract.Extractor satisfies it.
type Extractor interface {
	Extract(filename string, data []byte) (extract.Result, error)
}

// Archive keeps a copy of uploaded sources next to their guide.
type Archive interface {
	Put(ctx context.Context, guideID, filename string, data []byte) error
	Delete(ctx context.Context, guideID string) error
}
