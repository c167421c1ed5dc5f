package scriptload

import (
	"context"

	"github.com/goliatone/go-scriptload/archive"
	"github.com/goliatone/go-scriptload/ivalue"
)

// LegacyMarkerRecord marks an archive written in the pre-data.pkl layout.
const LegacyMarkerRecord = "model.json"

// LegacyRequest carries what a legacy loader needs.
type LegacyRequest struct {
	CU     *ivalue.CompilationUnit
	Reader archive.Reader
	Device *ivalue.Device
}

// LegacyLoader loads archives in the legacy layout. Its result is returned
// to the caller unchanged.
type LegacyLoader interface {
	LoadLegacy(ctx context.Context, req LegacyRequest) (*Module, error)
}

// LegacyLoaderFunc adapts a function to LegacyLoader.
type LegacyLoaderFunc func(ctx context.Context, req LegacyRequest) (*Module, error)

// LoadLegacy implements LegacyLoader.
func (f LegacyLoaderFunc) LoadLegacy(ctx context.Context, req LegacyRequest) (*Module, error) {
	return f(ctx, req)
}

type unsupportedLegacyLoader struct{}

func (unsupportedLegacyLoader) LoadLegacy(context.Context, LegacyRequest) (*Module, error) {
	return nil, ErrLegacyUnsupported
}

// WithLegacyLoader installs loader for archives carrying model.json.
func WithLegacyLoader(loader LegacyLoader) Option {
	return func(cfg *loadConfig) {
		cfg.legacy = loader
	}
}
