package scriptload

import (
	"strings"
	"testing"

	"github.com/goliatone/go-scriptload/archive"
	"github.com/goliatone/go-scriptload/ivalue"
)

func TestFindSourcePrefersLongestModulePath(t *testing.T) {
	reader := archive.NewMemory("m", map[string][]byte{
		"code/a.toml":     nil,
		"code/a/b.toml":   nil,
		"code/a/b/c.toml": nil,
		"code/x/y.toml":   nil,
	})
	cases := map[string]string{
		"a.b.c":   "code/a/b/c.toml",
		"a.b":     "code/a/b.toml",
		"a.b.z":   "code/a/b.toml",
		"a.q.r":   "code/a.toml",
		"x.y.z.w": "code/x/y.toml",
	}
	for qualifier, want := range cases {
		got, ok := FindSource(reader, "code/", qualifier)
		if !ok || got != want {
			t.Fatalf("%s: expected %s, got %s (found=%v)", qualifier, want, got, ok)
		}
	}
	if _, ok := FindSource(reader, "code/", "nope"); ok {
		t.Fatalf("expected no source for unknown qualifier")
	}
	if _, ok := FindSource(reader, "other/", "a.b"); ok {
		t.Fatalf("lookups must stay inside the prefix")
	}
}

func newTestImporter(t *testing.T, records map[string]string) SourceImporter {
	t.Helper()
	raw := make(map[string][]byte, len(records))
	for name, body := range records {
		raw[name] = []byte(body)
	}
	cfg := applyOptions(nil)
	return NewManifestImporter(ImportEnv{
		CU:      ivalue.NewCompilationUnit(),
		Reader:  archive.NewMemory("test", raw),
		Engines: cfg.methodEngines(),
	})
}

func TestManifestImporterDefinesWholeUnit(t *testing.T) {
	importer := newTestImporter(t, map[string]string{"code/__torch__/models.toml": modelsManifest})
	linear, err := importer.LoadNamedType("__torch__.models.Linear")
	if err != nil {
		t.Fatalf("load Linear: %v", err)
	}
	if linear.Name != "__torch__.models.Linear" || linear.NumAttributes() != 2 {
		t.Fatalf("unexpected class %s with %d attributes", linear.Name, linear.NumAttributes())
	}
	if !linear.HasStateCapability() {
		t.Fatalf("Linear declares both state methods")
	}
	setState, _ := linear.Method(ivalue.SetStateMethod)
	if setState.Engine != EngineJS || setState.Param.String() != "Tuple[Tensor, Optional[Tensor]]" {
		t.Fatalf("unexpected __setstate__ %+v", setState)
	}

	mi := importer.(*ManifestImporter)
	for _, name := range []ivalue.QualifiedName{"__torch__.models.Net", "__torch__.models.Counter", "__torch__.models.Scaler"} {
		if _, ok := mi.env.CU.Class(name); !ok {
			t.Fatalf("expected %s defined alongside Linear", name)
		}
	}
	again, err := importer.LoadNamedType("__torch__.models.Net")
	if err != nil {
		t.Fatalf("load Net: %v", err)
	}
	net, _ := mi.env.CU.Class("__torch__.models.Net")
	if again != net {
		t.Fatalf("expected the already defined class")
	}
}

func TestManifestImporterFailures(t *testing.T) {
	cases := []struct {
		name     string
		manifest string
		class    ivalue.QualifiedName
		contains string
	}{
		{
			name:     "missing unit",
			class:    "other.Thing",
			contains: "no source unit",
		},
		{
			name:     "class absent from unit",
			manifest: "[[class]]\nname = \"A\"\n",
			class:    "m.B",
			contains: "does not define B",
		},
		{
			name:     "unknown key",
			manifest: "[[class]]\nname = \"A\"\ncolour = \"red\"\n",
			class:    "m.A",
			contains: "unknown keys",
		},
		{
			name:     "bad attribute type",
			manifest: "[[class]]\nname = \"A\"\n[[class.attribute]]\nname = \"x\"\ntype = \"List[int\"\n",
			class:    "m.A",
			contains: "attribute x",
		},
		{
			name:     "unknown engine",
			manifest: "[[class]]\nname = \"A\"\n[class.methods.__setstate__]\nengine = \"lua\"\nbody = \"x\"\n",
			class:    "m.A",
			contains: "unknown engine",
		},
		{
			name:     "body does not compile",
			manifest: "[[class]]\nname = \"A\"\n[class.methods.__setstate__]\nengine = \"js\"\nbody = \"({\"\n",
			class:    "m.A",
			contains: "__setstate__",
		},
		{
			name:     "native function missing",
			manifest: "[[class]]\nname = \"A\"\n[class.methods.__setstate__]\nengine = \"native\"\nbody = \"restore_a\"\n",
			class:    "m.A",
			contains: "not registered",
		},
		{
			name: "state pair mismatch",
			manifest: "[[class]]\nname = \"A\"\n" +
				"[class.methods.__getstate__]\nreturns = \"int\"\nbody = \"1\"\n" +
				"[class.methods.__setstate__]\nparam = \"str\"\nbody = \"nil\"\n",
			class:    "m.A",
			contains: "__getstate__ returns int but __setstate__ expects str",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records := map[string]string{}
			if tc.manifest != "" {
				records["code/m.toml"] = tc.manifest
			}
			_, err := newTestImporter(t, records).LoadNamedType(tc.class)
			if err == nil || !strings.Contains(err.Error(), tc.contains) {
				t.Fatalf("expected error containing %q, got %v", tc.contains, err)
			}
		})
	}
}

func TestManifestImporterRemembersFailedUnits(t *testing.T) {
	importer := newTestImporter(t, map[string]string{"code/m.toml": "not = [valid"})
	_, first := importer.LoadNamedType("m.A")
	_, second := importer.LoadNamedType("m.B")
	if first == nil || second == nil || first.Error() != second.Error() {
		t.Fatalf("expected the same parse failure twice, got %v / %v", first, second)
	}
}
