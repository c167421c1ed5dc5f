package scriptload

import (
	"context"
	"errors"
	"io"

	"github.com/goliatone/go-scriptload/archive"
)

// LoadFile loads the zip archive at path.
func LoadFile(ctx context.Context, path string, opts ...Option) (*Module, ExtraFiles, error) {
	cfg := applyOptions(opts)
	if cfg.configErr != nil {
		return nil, nil, cfg.configErr
	}
	reader, err := archive.OpenFile(path)
	if err != nil {
		return nil, nil, &ArchiveReadError{Archive: path, Err: err}
	}
	module, extra, err := importWith(ctx, reader, cfg)
	if closeErr := reader.Close(); closeErr != nil && err == nil {
		return nil, nil, &ArchiveReadError{Archive: reader.Name(), Err: closeErr}
	}
	return module, extra, err
}

// LoadStream buffers r and loads it as a zip archive.
func LoadStream(ctx context.Context, r io.Reader, opts ...Option) (*Module, ExtraFiles, error) {
	cfg := applyOptions(opts)
	if cfg.configErr != nil {
		return nil, nil, cfg.configErr
	}
	reader, err := archive.NewReader(r)
	if err != nil {
		return nil, nil, &ArchiveReadError{Err: err}
	}
	return importWith(ctx, reader, cfg)
}

// LoadReaderAt loads a zip archive of size bytes from ra.
func LoadReaderAt(ctx context.Context, ra io.ReaderAt, size int64, opts ...Option) (*Module, ExtraFiles, error) {
	cfg := applyOptions(opts)
	if cfg.configErr != nil {
		return nil, nil, cfg.configErr
	}
	reader, err := archive.NewReaderAt(ra, size)
	if err != nil {
		return nil, nil, &ArchiveReadError{Err: err}
	}
	return importWith(ctx, reader, cfg)
}

// Import loads from an already opened archive. Every entry point ends here.
// The reader must not be used by another load at the same time.
func Import(ctx context.Context, reader archive.Reader, opts ...Option) (*Module, ExtraFiles, error) {
	cfg := applyOptions(opts)
	if cfg.configErr != nil {
		return nil, nil, cfg.configErr
	}
	return importWith(ctx, reader, cfg)
}

func importWith(ctx context.Context, reader archive.Reader, cfg loadConfig) (*Module, ExtraFiles, error) {
	if reader == nil {
		return nil, nil, errors.New("scriptload: nil archive reader")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return newSession(reader, cfg).deserialize(ctx)
}
