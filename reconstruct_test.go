package scriptload

import (
	"errors"
	"testing"

	"github.com/goliatone/go-scriptload/ivalue"
)

func modelsType(t *testing.T, name string) *ivalue.StrongType {
	t.Helper()
	importer := newTestImporter(t, map[string]string{"code/__torch__/models.toml": modelsManifest})
	cls, err := importer.LoadNamedType(ivalue.QualifiedName("__torch__.models." + name))
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return &ivalue.StrongType{CU: importer.(*ManifestImporter).env.CU, Class: cls}
}

func newTestReconstructor(observer OptimizeObserver) *reconstructor {
	return &reconstructor{exec: newExecutionState(true, observer), archive: "test", record: "data.pkl"}
}

func TestSelectStrategy(t *testing.T) {
	if got := SelectStrategy(modelsType(t, "Linear").Class); got != StrategyReplay {
		t.Fatalf("expected replay for Linear, got %s", got)
	}
	if got := SelectStrategy(modelsType(t, "Net").Class); got != StrategyDirectMap {
		t.Fatalf("expected direct_map for Net, got %s", got)
	}
}

func TestReplayRunsSetStateWithOptimizationDisabled(t *testing.T) {
	var seen []bool
	r := newTestReconstructor(func(enabled bool) { seen = append(seen, enabled) })
	weight := &ivalue.Tensor{DType: "float32", Shape: []int64{2, 2}}

	obj, err := r.construct(modelsType(t, "Linear"), ivalue.NewTuple(weight, nil))
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if mustField(t, obj, "weight") != weight {
		t.Fatalf("expected weight restored from state")
	}
	if bias := mustField(t, obj, "bias"); bias != nil {
		t.Fatalf("expected empty optional bias, got %v", bias)
	}
	if len(seen) != 2 || seen[0] || !seen[1] {
		t.Fatalf("expected flag toggled off then restored, got %v", seen)
	}
	if !r.exec.Optimize() {
		t.Fatalf("expected optimize restored after __setstate__")
	}
}

func TestReplayRestoresFlagOnFailure(t *testing.T) {
	boom := errors.New("boom")
	cases := map[string]ivalue.CallableFunc{
		"error": func(ivalue.CallContext, *ivalue.Object, []any) (any, error) {
			return nil, boom
		},
		"panic": func(ivalue.CallContext, *ivalue.Object, []any) (any, error) {
			panic(boom)
		},
	}
	for name, impl := range cases {
		t.Run(name, func(t *testing.T) {
			var sawOptimize bool
			impl := impl
			wrapped := ivalue.CallableFunc(func(ctx ivalue.CallContext, self *ivalue.Object, args []any) (any, error) {
				sawOptimize = ctx.Optimize
				return impl(ctx, self, args)
			})
			cls, err := ivalue.NewClassType("m.Failing", []ivalue.Attribute{{Name: "x", Type: ivalue.IntType}},
				&ivalue.Method{Name: ivalue.GetStateMethod},
				&ivalue.Method{Name: ivalue.SetStateMethod, Impl: wrapped},
			)
			if err != nil {
				t.Fatalf("class: %v", err)
			}
			r := newTestReconstructor(nil)

			func() {
				defer func() {
					if recovered := recover(); recovered != nil && recovered != boom {
						t.Fatalf("unexpected panic %v", recovered)
					}
				}()
				_, err = r.construct(&ivalue.StrongType{CU: ivalue.NewCompilationUnit(), Class: cls}, int64(1))
			}()

			if name == "error" && !errors.Is(err, boom) {
				t.Fatalf("expected body error returned unchanged, got %v", err)
			}
			if sawOptimize {
				t.Fatalf("__setstate__ must run with optimization disabled")
			}
			if !r.exec.Optimize() {
				t.Fatalf("expected flag restored after %s", name)
			}
		})
	}
}

func TestReplayReportsUninitializedField(t *testing.T) {
	r := newTestReconstructor(nil)
	_, err := r.construct(modelsType(t, "Incomplete"), int64(7))
	uninit := expectErrorAs[*UninitializedFieldError](t, err)
	if uninit.Field != "b" || uninit.ExpectedType.String() != "int" {
		t.Fatalf("unexpected field report %+v", uninit)
	}
	want := "scriptload: class __torch__.models.Incomplete: field 'b' was left uninitialized after __setstate__, but expected a value of type 'int'"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestReplayConvertsScriptResults(t *testing.T) {
	r := newTestReconstructor(nil)
	counter, err := r.construct(modelsType(t, "Counter"), ivalue.NewTuple(int64(4), "steps"))
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if mustField(t, counter, "count") != int64(5) || mustField(t, counter, "label") != "steps" {
		t.Fatalf("unexpected counter fields %v", counter.Fields())
	}

	scaler, err := r.construct(modelsType(t, "Scaler"), 1.5)
	if err != nil {
		t.Fatalf("scaler: %v", err)
	}
	if mustField(t, scaler, "factor") != 3.0 {
		t.Fatalf("expected factor 3.0, got %v", mustField(t, scaler, "factor"))
	}
}

func TestApplyAssignmentsRejectsUndeclaredAttribute(t *testing.T) {
	obj := ivalue.NewObject(modelsType(t, "Scaler"))
	if err := applyAssignments(obj, map[string]any{"factor": 1.0, "extra": 2}); err == nil {
		t.Fatalf("expected undeclared attribute error")
	}
	if err := applyAssignments(obj, "nope"); err == nil {
		t.Fatalf("expected error for non-map result")
	}
	if err := applyAssignments(obj, nil); err != nil {
		t.Fatalf("nil result assigns nothing, got %v", err)
	}
}

func TestDirectMapCopiesDeclaredFields(t *testing.T) {
	typ := modelsType(t, "Scaler")
	cls, err := ivalue.NewClassType("m.Plain", typ.Class.Attributes())
	if err != nil {
		t.Fatalf("class: %v", err)
	}
	plain := &ivalue.StrongType{CU: typ.CU, Class: cls}
	r := newTestReconstructor(nil)

	state := ivalue.NewDict()
	_ = state.Set("factor", 2.5)
	_ = state.Set("ignored", true)
	obj, err := r.construct(plain, state)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if mustField(t, obj, "factor") != 2.5 {
		t.Fatalf("expected factor copied, got %v", obj.Fields())
	}

	missing, err := r.construct(plain, ivalue.NewDict())
	if missing != nil {
		t.Fatalf("expected no object on failure")
	}
	if field := expectErrorAs[*MissingFieldError](t, err); field.Field != "factor" {
		t.Fatalf("unexpected missing field %s", field.Field)
	}

	_, err = r.construct(plain, ivalue.NewTuple(2.5))
	malformed := expectErrorAs[*MalformedArchiveError](t, err)
	if malformed.Record != "data.pkl" || malformed.Archive != "test" {
		t.Fatalf("unexpected location %+v", malformed)
	}
}

func TestDirectMapLeavesOptimizeFlagAlone(t *testing.T) {
	var seen []bool
	r := newTestReconstructor(func(enabled bool) { seen = append(seen, enabled) })
	state := ivalue.NewDict()
	for name, value := range map[string]any{"fc1": nil, "fc2": nil, "scale": 1.0, "labels": ivalue.NewDict()} {
		_ = state.Set(name, value)
	}
	if _, err := r.construct(modelsType(t, "Net"), state); err != nil {
		t.Fatalf("construct: %v", err)
	}
	if len(seen) != 0 {
		t.Fatalf("direct map must not touch the optimize flag, got %v", seen)
	}
}

func TestConstructLogsStrategyEvents(t *testing.T) {
	var events []LoadEvent
	r := newTestReconstructor(nil)
	r.trace = func(event LoadEvent) { events = append(events, event) }
	if _, err := r.construct(modelsType(t, "Scaler"), 1.0); err != nil {
		t.Fatalf("construct: %v", err)
	}
	if len(events) != 1 || events[0].Stage != StageConstruct || events[0].Class != "__torch__.models.Scaler" {
		t.Fatalf("unexpected events %+v", events)
	}
}
