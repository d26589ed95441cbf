// Package mocks provides function-field test doubles for the service ports:
// GuideStore, Generator, Extractor and Archive.
//
// Each mock exposes one ...Fn field per method; a nil field falls back to a
// benign default so tests only set what they exercise:
//
//	gen := &mocks.MockGenerator{
//	    MotivateFn: func(ctx context.Context, req generation.MotivateRequest) (string, error) {
//	        return "Keep going!", nil
//	    },
//	}
package mocks
