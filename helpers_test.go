package scriptload

import (
	"errors"
	"sync"
	"testing"

	"github.com/goliatone/go-scriptload/archive"
	"github.com/goliatone/go-scriptload/internal/testutil/fixture"
	"github.com/goliatone/go-scriptload/ivalue"
)

const modelsManifest = `
[[class]]
name = "Linear"

  [[class.attribute]]
  name = "weight"
  type = "Tensor"

  [[class.attribute]]
  name = "bias"
  type = "Optional[Tensor]"

  [class.methods.__getstate__]
  engine  = "expr"
  returns = "Tuple[Tensor, Optional[Tensor]]"
  body    = "[self.weight, self.bias]"

  [class.methods.__setstate__]
  engine = "js"
  param  = "Tuple[Tensor, Optional[Tensor]]"
  body   = "({weight: state[0], bias: state[1]})"

[[class]]
name = "Net"

  [[class.attribute]]
  name = "fc1"
  type = "__torch__.models.Linear"

  [[class.attribute]]
  name = "fc2"
  type = "__torch__.models.Linear"

  [[class.attribute]]
  name = "scale"
  type = "float"

  [[class.attribute]]
  name = "labels"
  type = "Dict[str, int]"

[[class]]
name = "Counter"

  [[class.attribute]]
  name = "count"
  type = "int"

  [[class.attribute]]
  name = "label"
  type = "str"

  [class.methods.__getstate__]
  engine  = "cel"
  returns = "Tuple[int, str]"
  body    = "[self.count, self.label]"

  [class.methods.__setstate__]
  engine = "cel"
  param  = "Tuple[int, str]"
  body   = "{'count': state[0] + 1, 'label': state[1]}"

[[class]]
name = "Scaler"

  [[class.attribute]]
  name = "factor"
  type = "float"

  [class.methods.__getstate__]
  returns = "float"
  body    = "self.factor / 2.0"

  [class.methods.__setstate__]
  param = "float"
  body  = "{'factor': state * 2.0}"

[[class]]
name = "Incomplete"

  [[class.attribute]]
  name = "a"
  type = "int"

  [[class.attribute]]
  name = "b"
  type = "int"

  [class.methods.__getstate__]
  body = "self.a"

  [class.methods.__setstate__]
  body = "{'a': state}"
`

// tensorBytes returns zeroed storage for n float32 values.
func tensorBytes(n int) []byte {
	return make([]byte, 4*n)
}

// netArchive is a complete modern archive whose root is a Net holding two
// Linear layers, one of which uses a constant.
func netArchive(t *testing.T) *fixture.Archive {
	t.Helper()
	return fixture.New(t).
		Source("__torch__/models.toml", modelsManifest).
		Pickle("constants", fixture.Tuple(fixture.Tensor("float32", []int{2}, "0"))).
		Storage("constants", "0", tensorBytes(2)).
		Pickle("data", fixture.Object("__torch__.models.Net", map[string]any{
			"fc1":    fixture.Object("__torch__.models.Linear", fixture.Tuple(fixture.Tensor("float32", []int{2, 2}, "0"), nil)),
			"fc2":    fixture.Object("__torch__.models.Linear", fixture.Tuple(fixture.Tensor("float32", []int{2}, "1"), fixture.Constant(0))),
			"scale":  0.5,
			"labels": map[string]any{"cat": 1, "dog": 2},
		})).
		Storage("data", "0", tensorBytes(4)).
		Storage("data", "1", tensorBytes(2))
}

// rootArchive wraps a single data value with an empty constants table.
func rootArchive(t *testing.T, data any) *archive.Memory {
	t.Helper()
	return fixture.New(t).
		Source("__torch__/models.toml", modelsManifest).
		Pickle("constants", fixture.Tuple()).
		Pickle("data", data).
		Memory("root")
}

type countingImporter struct {
	inner SourceImporter
	mu    sync.Mutex
	calls map[ivalue.QualifiedName]int
}

func (c *countingImporter) LoadNamedType(name ivalue.QualifiedName) (*ivalue.ClassType, error) {
	c.mu.Lock()
	c.calls[name]++
	c.mu.Unlock()
	return c.inner.LoadNamedType(name)
}

func countingFactory(counter **countingImporter) ImporterFactory {
	return func(env ImportEnv) SourceImporter {
		*counter = &countingImporter{inner: NewManifestImporter(env), calls: map[ivalue.QualifiedName]int{}}
		return *counter
	}
}

type recordingCache struct {
	*MapProgramCache
	mu   sync.Mutex
	gets int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{MapProgramCache: NewMapProgramCache()}
}

func (c *recordingCache) Get(key string) (any, bool) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.MapProgramCache.Get(key)
}

func (c *recordingCache) getCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets
}

func mustField(t *testing.T, obj *ivalue.Object, name string) any {
	t.Helper()
	value, ok := obj.Attr(name)
	if !ok {
		t.Fatalf("object %s has no attribute %s", obj.Class().Name, name)
	}
	return value
}

func expectErrorAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	if !errors.As(err, &target) {
		t.Fatalf("expected %T, got %v", target, err)
	}
	return target
}
