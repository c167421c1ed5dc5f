package scriptload

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-scriptload/ivalue"
	"github.com/goliatone/go-scriptload/pkg/activity"
	"github.com/goliatone/go-scriptload/stream"
	"github.com/goliatone/go-scriptload/stream/cborstream"
)

// Option configures a load.
type Option func(*loadConfig)

type loadConfig struct {
	cu               *ivalue.CompilationUnit
	device           *ivalue.Device
	extraFiles       []string
	codePrefix       string
	decoder          stream.Decoder
	importer         ImporterFactory
	legacy           LegacyLoader
	logger           LoadLogger
	activityHooks    activity.Hooks
	functions        *FunctionRegistry
	programCache     ProgramCache
	engines          map[string]MethodEngine
	tracerProvider   trace.TracerProvider
	optimize         bool
	optimizeObserver OptimizeObserver
	configErr        error
}

func applyOptions(opts []Option) loadConfig {
	cfg := loadConfig{optimize: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.codePrefix == "" {
		cfg.codePrefix = DefaultCodePrefix
	}
	if cfg.decoder == nil {
		cfg.decoder = cborstream.Default()
	}
	if cfg.importer == nil {
		cfg.importer = NewManifestImporter
	}
	if cfg.legacy == nil {
		cfg.legacy = unsupportedLegacyLoader{}
	}
	if cfg.logger == nil {
		cfg.logger = noopLoadLogger{}
	}
	if cfg.programCache == nil {
		cfg.programCache = NewMapProgramCache()
	}
	return cfg
}

// methodEngines merges the built-in engines with the ones added through
// WithMethodEngine.
func (cfg loadConfig) methodEngines() map[string]MethodEngine {
	engines := defaultEngines(cfg.programCache, cfg.functions)
	for name, engine := range cfg.engines {
		engines[name] = engine
	}
	return engines
}

// WithDevice retags every decoded tensor with device.
func WithDevice(device ivalue.Device) Option {
	return func(cfg *loadConfig) {
		d := device
		cfg.device = &d
	}
}

// WithExtraFiles requests the side files extra/<key> for each key.
func WithExtraFiles(keys ...string) Option {
	return func(cfg *loadConfig) {
		cfg.extraFiles = append(cfg.extraFiles, keys...)
	}
}

// WithCodePrefix sets where class sources live; it defaults to "code/".
func WithCodePrefix(prefix string) Option {
	return func(cfg *loadConfig) {
		if prefix == "" {
			return
		}
		if prefix[len(prefix)-1] != '/' {
			prefix += "/"
		}
		cfg.codePrefix = prefix
	}
}

// WithDecoder replaces the CBOR value stream decoder.
func WithDecoder(decoder stream.Decoder) Option {
	return func(cfg *loadConfig) {
		cfg.decoder = decoder
	}
}

// WithCompilationUnit makes the load define classes into cu, so several
// loads can share class definitions.
func WithCompilationUnit(cu *ivalue.CompilationUnit) Option {
	return func(cfg *loadConfig) {
		cfg.cu = cu
	}
}

// WithTracerProvider sets the OpenTelemetry provider for load spans. The
// global provider is used otherwise.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *loadConfig) {
		cfg.tracerProvider = provider
	}
}

// WithActivityHooks attaches activity hooks notified when a load ends.
// Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *loadConfig) {
		cfg.activityHooks = normalized
	}
}

func withOptimize(enabled bool) Option {
	return func(cfg *loadConfig) {
		cfg.optimize = enabled
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
