package scriptload

import (
	"errors"
	"time"

	"github.com/goliatone/go-scriptload/ivalue"
)

// classResolver maps qualified names to strong types for one load. Each
// name reaches the importer at most once; later lookups are served from the
// cache and return the identical *StrongType.
type classResolver struct {
	cu       *ivalue.CompilationUnit
	importer SourceImporter
	cache    map[ivalue.QualifiedName]*ivalue.StrongType
	archive  string
	trace    func(LoadEvent)
}

func newClassResolver(cu *ivalue.CompilationUnit, importer SourceImporter, archive string, trace func(LoadEvent)) *classResolver {
	if trace == nil {
		trace = func(LoadEvent) {}
	}
	return &classResolver{
		cu:       cu,
		importer: importer,
		cache:    map[ivalue.QualifiedName]*ivalue.StrongType{},
		archive:  archive,
		trace:    trace,
	}
}

func (r *classResolver) resolve(name ivalue.QualifiedName) (*ivalue.StrongType, error) {
	if typ, ok := r.cache[name]; ok {
		return typ, nil
	}
	start := time.Now()
	cls, err := r.importer.LoadNamedType(name)
	if err == nil && cls == nil {
		err = errors.New("importer returned no class")
	}
	if err != nil {
		err = r.wrap(name, err)
		r.trace(LoadEvent{Stage: StageResolve, Class: string(name), Duration: time.Since(start), Err: err})
		return nil, err
	}
	typ := &ivalue.StrongType{CU: r.cu, Class: cls}
	r.cache[name] = typ
	r.trace(LoadEvent{Stage: StageResolve, Class: string(name), Duration: time.Since(start)})
	return typ, nil
}

func (r *classResolver) wrap(name ivalue.QualifiedName, err error) error {
	switch err.(type) {
	case *TypeResolutionError, *ArchiveReadError:
		return withArchive(r.archive, err)
	}
	return &TypeResolutionError{Archive: r.archive, Class: name, Err: err}
}

// resolvedCount reports how many distinct names were resolved.
func (r *classResolver) resolvedCount() int {
	return len(r.cache)
}
