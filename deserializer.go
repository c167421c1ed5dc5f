package scriptload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-scriptload/archive"
	"github.com/goliatone/go-scriptload/ivalue"
	"github.com/goliatone/go-scriptload/pkg/activity"
	"github.com/goliatone/go-scriptload/stream"
)

// Top-level records of the modern layout.
const (
	ConstantsArchive = "constants"
	DataArchive      = "data"
	RecordExtension  = ".pkl"
	ExtraFilesPrefix = "extra/"
)

const tracerName = "github.com/goliatone/go-scriptload"

// session is one load. Nothing in it is shared with other loads unless the
// caller passed the same compilation unit.
type session struct {
	id       string
	cfg      loadConfig
	reader   archive.Reader
	cu       *ivalue.CompilationUnit
	exec     *ExecutionState
	resolver *classResolver
	recon    *reconstructor
	tracer   trace.Tracer

	constants []*ivalue.Tensor
	format    string
}

func newSession(reader archive.Reader, cfg loadConfig) *session {
	s := &session{
		id:     uuid.NewString(),
		cfg:    cfg,
		reader: reader,
		cu:     cfg.cu,
		exec:   newExecutionState(cfg.optimize, cfg.optimizeObserver),
	}
	if s.cu == nil {
		s.cu = ivalue.NewCompilationUnit()
	}
	provider := cfg.tracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	s.tracer = provider.Tracer(tracerName)

	importer := cfg.importer(ImportEnv{
		CU:         s.cu,
		Reader:     reader,
		CodePrefix: cfg.codePrefix,
		Engines:    cfg.methodEngines(),
	})
	s.resolver = newClassResolver(s.cu, importer, reader.Name(), s.log)
	s.recon = &reconstructor{exec: s.exec, archive: reader.Name(), trace: s.log}
	return s
}

func (s *session) log(event LoadEvent) {
	event.SessionID = s.id
	event.Archive = s.reader.Name()
	s.cfg.logger.LogLoad(event)
}

// deserialize runs the load: extra files, then the legacy check, then
// constants and finally the data record.
func (s *session) deserialize(ctx context.Context) (*Module, ExtraFiles, error) {
	ctx, span := s.tracer.Start(ctx, "scriptload.load", trace.WithAttributes(
		attribute.String("scriptload.session", s.id),
		attribute.String("scriptload.archive", s.reader.Name()),
	))
	defer span.End()

	start := time.Now()
	module, extra, err := s.run(ctx)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.String("scriptload.format", s.format),
		attribute.Int("scriptload.classes", s.resolver.resolvedCount()),
		attribute.Int("scriptload.constants", len(s.constants)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.log(LoadEvent{Stage: StageLoad, Duration: elapsed, Err: err})
	s.emit(ctx, elapsed, err)

	if err != nil {
		return nil, nil, err
	}
	return module, extra, nil
}

func (s *session) run(ctx context.Context) (*Module, ExtraFiles, error) {
	extra, err := s.readExtraFiles()
	if err != nil {
		return nil, nil, err
	}

	if s.reader.HasRecord(LegacyMarkerRecord) {
		s.format = "legacy"
		start := time.Now()
		module, err := s.cfg.legacy.LoadLegacy(ctx, LegacyRequest{CU: s.cu, Reader: s.reader, Device: s.cfg.device})
		s.log(LoadEvent{Stage: StageLegacy, Record: LegacyMarkerRecord, Duration: time.Since(start), Err: err})
		if err != nil {
			return nil, nil, err
		}
		if module == nil {
			return nil, nil, &MalformedArchiveError{
				Archive: s.reader.Name(),
				Record:  LegacyMarkerRecord,
				Reason:  "legacy loader returned no module",
			}
		}
		return module, extra, nil
	}
	s.format = "modern"

	if err := s.loadConstants(ctx); err != nil {
		return nil, nil, err
	}

	value, err := s.readArchive(ctx, DataArchive, StageData)
	if err != nil {
		return nil, nil, err
	}
	obj, ok := value.(*ivalue.Object)
	if !ok {
		return nil, nil, &MalformedArchiveError{
			Archive: s.reader.Name(),
			Record:  DataArchive + RecordExtension,
			Reason:  fmt.Sprintf("root value must be an object, got %s", describeValue(value)),
		}
	}
	return &Module{object: obj, exec: s.exec, sessionID: s.id, archive: s.reader.Name()}, extra, nil
}

func (s *session) readExtraFiles() (ExtraFiles, error) {
	extra := ExtraFiles{}
	start := time.Now()
	for _, key := range s.cfg.extraFiles {
		record := ExtraFilesPrefix + key
		if !s.reader.HasRecord(record) {
			continue
		}
		data, err := s.reader.GetRecord(record)
		if err != nil {
			err = &ArchiveReadError{Archive: s.reader.Name(), Record: record, Err: err}
			s.log(LoadEvent{Stage: StageExtraFiles, Record: record, Err: err})
			return nil, err
		}
		extra[key] = data
	}
	if len(s.cfg.extraFiles) > 0 {
		s.log(LoadEvent{Stage: StageExtraFiles, Duration: time.Since(start)})
	}
	return extra, nil
}

func (s *session) loadConstants(ctx context.Context) error {
	value, err := s.readArchive(ctx, ConstantsArchive, StageConstants)
	if err != nil {
		return err
	}
	tuple, ok := value.(*ivalue.Tuple)
	if !ok {
		return &MalformedArchiveError{
			Archive: s.reader.Name(),
			Record:  ConstantsArchive + RecordExtension,
			Reason:  fmt.Sprintf("constants must be a tuple, got %s", describeValue(value)),
		}
	}
	constants := make([]*ivalue.Tensor, len(tuple.Elems))
	for i, elem := range tuple.Elems {
		tensor, ok := elem.(*ivalue.Tensor)
		if !ok {
			return &MalformedArchiveError{
				Archive: s.reader.Name(),
				Record:  ConstantsArchive + RecordExtension,
				Reason:  fmt.Sprintf("constant %d must be a tensor, got %s", i, describeValue(elem)),
			}
		}
		constants[i] = tensor
	}
	s.constants = constants
	return nil
}

func (s *session) constant(index int) (*ivalue.Tensor, error) {
	if index < 0 || index >= len(s.constants) {
		return nil, &MalformedArchiveError{
			Archive: s.reader.Name(),
			Record:  DataArchive + RecordExtension,
			Reason:  fmt.Sprintf("constant index %d out of range (%d constants)", index, len(s.constants)),
		}
	}
	return s.constants[index], nil
}

// readArchive decodes the top-level record <name>.pkl. Blobs the stream
// asks for are read from <name>/<key>.
func (s *session) readArchive(ctx context.Context, name string, stage LoadStage) (any, error) {
	record := name + RecordExtension
	_, span := s.tracer.Start(ctx, "scriptload.read_archive", trace.WithAttributes(
		attribute.String("scriptload.record", record),
	))
	defer span.End()

	start := time.Now()
	value, err := s.decodeRecord(name, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.log(LoadEvent{Stage: stage, Record: record, Duration: time.Since(start), Err: err})
	return value, err
}

func (s *session) decodeRecord(name, record string) (any, error) {
	data, err := s.reader.GetRecord(record)
	if err != nil {
		return nil, &ArchiveReadError{Archive: s.reader.Name(), Record: record, Err: err}
	}
	s.recon.record = record
	value, err := s.cfg.decoder.Decode(stream.Request{
		Record:       record,
		Source:       bytes.NewReader(data),
		ResolveClass: s.resolver.resolve,
		LoadObject:   s.recon.construct,
		ReadRecord: func(key string) ([]byte, error) {
			blob := name + "/" + key
			data, err := s.reader.GetRecord(blob)
			if err != nil {
				return nil, &ArchiveReadError{Archive: s.reader.Name(), Record: blob, Err: err}
			}
			return data, nil
		},
		Constant: s.constant,
		Device:   s.cfg.device,
	})
	if err != nil {
		if errors.Is(err, stream.ErrMalformed) {
			var malformed *MalformedArchiveError
			if !errors.As(err, &malformed) {
				return nil, &MalformedArchiveError{Archive: s.reader.Name(), Record: record, Err: err}
			}
		}
		return nil, err
	}
	return value, nil
}

func (s *session) emit(ctx context.Context, elapsed time.Duration, err error) {
	emitter := activity.NewEmitter(s.cfg.activityHooks, activity.Config{Enabled: true})
	if !emitter.Enabled() {
		return
	}
	input := activity.LoadEventInput{
		SessionID: s.id,
		Archive:   s.reader.Name(),
		Format:    s.format,
		Classes:   s.resolver.resolvedCount(),
		Constants: len(s.constants),
		Duration:  elapsed,
		Err:       err,
	}
	event := activity.BuildArchiveLoadedEvent(input)
	if err != nil {
		event = activity.BuildArchiveLoadFailedEvent(input)
	}
	if notifyErr := emitter.Emit(ctx, event); notifyErr != nil {
		s.log(LoadEvent{Stage: StageLoad, Err: fmt.Errorf("scriptload: activity hooks: %w", notifyErr)})
	}
}
