package scriptload

import "time"

// LoadStage names the step of a load a LoadEvent describes.
type LoadStage string

const (
	StageLoad       LoadStage = "load"
	StageExtraFiles LoadStage = "extra_files"
	StageLegacy     LoadStage = "legacy"
	StageConstants  LoadStage = "constants"
	StageData       LoadStage = "data"
	StageResolve    LoadStage = "resolve"
	StageConstruct  LoadStage = "construct"
)

// LoadEvent describes one step of a load for logging.
type LoadEvent struct {
	SessionID string
	Archive   string
	Stage     LoadStage
	Record    string
	Class     string
	Duration  time.Duration
	Err       error
}

// LoadLogger records load events.
type LoadLogger interface {
	LogLoad(LoadEvent)
}

// LoadLoggerFunc adapts a function to LoadLogger.
type LoadLoggerFunc func(LoadEvent)

// LogLoad implements LoadLogger.
func (f LoadLoggerFunc) LogLoad(event LoadEvent) {
	if f != nil {
		f(event)
	}
}

type noopLoadLogger struct{}

func (noopLoadLogger) LogLoad(LoadEvent) {}

// WithLoadLogger attaches a logger to the load.
func WithLoadLogger(logger LoadLogger) Option {
	return func(cfg *loadConfig) {
		if logger == nil {
			cfg.logger = noopLoadLogger{}
			return
		}
		cfg.logger = logger
	}
}
