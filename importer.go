package scriptload

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/goliatone/go-scriptload/archive"
	"github.com/goliatone/go-scriptload/ivalue"
)

// DefaultCodePrefix is where class sources live inside an archive.
const DefaultCodePrefix = "code/"

// SourceExtension is the file extension of a class source unit.
const SourceExtension = ".toml"

// SourceImporter loads class definitions on demand.
type SourceImporter interface {
	// LoadNamedType returns the definition of name, importing its source
	// unit into the compilation unit when needed.
	LoadNamedType(name ivalue.QualifiedName) (*ivalue.ClassType, error)
}

// ImportEnv is everything an importer may use during one load.
type ImportEnv struct {
	CU         *ivalue.CompilationUnit
	Reader     archive.Reader
	CodePrefix string
	Engines    map[string]MethodEngine
}

// Lookup finds the source unit for qualifier within the archive.
func (env ImportEnv) Lookup(qualifier string) (record string, ok bool) {
	return FindSource(env.Reader, env.CodePrefix, qualifier)
}

// ImporterFactory builds the importer for one load.
type ImporterFactory func(env ImportEnv) SourceImporter

// WithSourceImporter replaces the manifest importer.
func WithSourceImporter(factory ImporterFactory) Option {
	return func(cfg *loadConfig) {
		cfg.importer = factory
	}
}

// FindSource maps a dotted qualifier onto a source record. For "a.b.c" it
// tries <prefix>a/b/c.toml, then a/b.toml, then a.toml and returns the
// first record that exists, so the longest match wins.
func FindSource(reader archive.Reader, prefix, qualifier string) (string, bool) {
	if reader == nil || qualifier == "" {
		return "", false
	}
	atoms := strings.Split(qualifier, ".")
	for n := len(atoms); n > 0; n-- {
		record := prefix + strings.Join(atoms[:n], "/") + SourceExtension
		if reader.HasRecord(record) {
			return record, true
		}
	}
	return "", false
}

type unitManifest struct {
	Classes []classManifest `toml:"class"`
}

type classManifest struct {
	Name       string                    `toml:"name"`
	Attributes []attributeManifest       `toml:"attribute"`
	Methods    map[string]methodManifest `toml:"methods"`
}

type attributeManifest struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

type methodManifest struct {
	Engine  string `toml:"engine"`
	Param   string `toml:"param"`
	Returns string `toml:"returns"`
	Body    string `toml:"body"`
}

// ManifestImporter reads class manifests from the archive. Every class of a
// unit is defined the first time the unit is imported.
type ManifestImporter struct {
	env ImportEnv

	mu       sync.Mutex
	imported map[string]error
}

var _ SourceImporter = (*ManifestImporter)(nil)

// NewManifestImporter is the default ImporterFactory.
func NewManifestImporter(env ImportEnv) SourceImporter {
	if env.CodePrefix == "" {
		env.CodePrefix = DefaultCodePrefix
	}
	return &ManifestImporter{env: env, imported: map[string]error{}}
}

func (m *ManifestImporter) LoadNamedType(name ivalue.QualifiedName) (*ivalue.ClassType, error) {
	if cls, ok := m.env.CU.Class(name); ok {
		return cls, nil
	}
	qualifier := name.Prefix()
	if qualifier == "" {
		return nil, fmt.Errorf("class name has no module qualifier")
	}
	record, ok := m.env.Lookup(qualifier)
	if !ok {
		return nil, fmt.Errorf("no source unit for %s under %s", qualifier, m.env.CodePrefix)
	}
	if err := m.importUnit(record); err != nil {
		return nil, err
	}
	cls, ok := m.env.CU.Class(name)
	if !ok {
		return nil, fmt.Errorf("source unit %s does not define %s", record, name.Name())
	}
	return cls, nil
}

func (m *ManifestImporter) importUnit(record string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, done := m.imported[record]; done {
		return err
	}
	err := m.defineUnit(record)
	m.imported[record] = err
	return err
}

func (m *ManifestImporter) defineUnit(record string) error {
	data, err := m.env.Reader.GetRecord(record)
	if err != nil {
		return &ArchiveReadError{Archive: m.env.Reader.Name(), Record: record, Err: err}
	}
	var unit unitManifest
	meta, err := toml.Decode(string(data), &unit)
	if err != nil {
		return fmt.Errorf("parse %s: %w", record, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return fmt.Errorf("parse %s: unknown keys %s", record, strings.Join(keys, ", "))
	}
	module := strings.ReplaceAll(strings.TrimSuffix(strings.TrimPrefix(record, m.env.CodePrefix), SourceExtension), "/", ".")
	for _, manifest := range unit.Classes {
		name := ivalue.QualifiedName(module + "." + manifest.Name)
		if _, defined := m.env.CU.Class(name); defined {
			continue
		}
		cls, err := m.buildClass(name, manifest)
		if err != nil {
			return fmt.Errorf("%s: %w", record, err)
		}
		if err := m.env.CU.Define(cls); err != nil {
			return err
		}
	}
	return nil
}

func (m *ManifestImporter) buildClass(name ivalue.QualifiedName, manifest classManifest) (*ivalue.ClassType, error) {
	if manifest.Name == "" {
		return nil, errors.New("class without a name")
	}
	attrs := make([]ivalue.Attribute, 0, len(manifest.Attributes))
	for _, attr := range manifest.Attributes {
		typ, err := parseOptionalType(attr.Type)
		if err != nil {
			return nil, fmt.Errorf("class %s attribute %s: %w", name, attr.Name, err)
		}
		attrs = append(attrs, ivalue.Attribute{Name: attr.Name, Type: typ})
	}

	methodNames := make([]string, 0, len(manifest.Methods))
	for methodName := range manifest.Methods {
		methodNames = append(methodNames, methodName)
	}
	sort.Strings(methodNames)
	methods := make([]*ivalue.Method, 0, len(methodNames))
	for _, methodName := range methodNames {
		method, err := m.buildMethod(name, methodName, manifest.Methods[methodName])
		if err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}
	if err := checkStatePair(name, manifest.Methods); err != nil {
		return nil, err
	}
	return ivalue.NewClassType(name, attrs, methods...)
}

func (m *ManifestImporter) buildMethod(class ivalue.QualifiedName, name string, manifest methodManifest) (*ivalue.Method, error) {
	param, err := parseOptionalType(manifest.Param)
	if err != nil {
		return nil, fmt.Errorf("method %s.%s param: %w", class, name, err)
	}
	returns, err := parseOptionalType(manifest.Returns)
	if err != nil {
		return nil, fmt.Errorf("method %s.%s returns: %w", class, name, err)
	}
	engineName := strings.ToLower(strings.TrimSpace(manifest.Engine))
	if engineName == "" {
		engineName = EngineExpr
	}
	engine, ok := m.env.Engines[engineName]
	if !ok {
		return nil, fmt.Errorf("method %s.%s: unknown engine %q", class, name, manifest.Engine)
	}
	impl, err := engine.Compile(MethodSource{
		Class:   class,
		Method:  name,
		Body:    manifest.Body,
		Param:   param,
		Returns: returns,
	})
	if err != nil {
		return nil, fmt.Errorf("method %s.%s: %s: %w", class, name, engineName, err)
	}
	return &ivalue.Method{
		Name:    name,
		Param:   param,
		Returns: returns,
		Engine:  engineName,
		Impl:    impl,
	}, nil
}

// checkStatePair rejects classes whose __getstate__ result cannot feed
// their own __setstate__.
func checkStatePair(class ivalue.QualifiedName, methods map[string]methodManifest) error {
	get, hasGet := methods[ivalue.GetStateMethod]
	set, hasSet := methods[ivalue.SetStateMethod]
	if !hasGet || !hasSet || get.Returns == "" || set.Param == "" {
		return nil
	}
	returns, err := ivalue.ParseType(get.Returns)
	if err != nil {
		return err
	}
	param, err := ivalue.ParseType(set.Param)
	if err != nil {
		return err
	}
	if !returns.Equal(param) {
		return fmt.Errorf("class %s: __getstate__ returns %s but __setstate__ expects %s", class, returns, param)
	}
	return nil
}

func parseOptionalType(raw string) (*ivalue.Type, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return ivalue.ParseType(raw)
}
