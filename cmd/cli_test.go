package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-scriptload/internal/testutil/fixture"
)

const layersManifest = `
[[class]]
name = "Layer"

  [[class.attribute]]
  name = "weight"
  type = "Tensor"

  [class.methods.__getstate__]
  returns = "Tensor"
  body    = "self.weight"

  [class.methods.__setstate__]
  param = "Tensor"
  body  = "{'weight': state}"

[[class]]
name = "Model"

  [[class.attribute]]
  name = "layer"
  type = "app.layers.Layer"

  [[class.attribute]]
  name = "name"
  type = "str"
`

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeArchiveFixture(t *testing.T) string {
	t.Helper()
	data := fixture.New(t).
		Source("app/layers.toml", layersManifest).
		Record("version", []byte("3")).
		Record("extra/notes", []byte("hello")).
		Pickle("constants", fixture.Tuple()).
		Pickle("data", fixture.Object("app.layers.Model", map[string]any{
			"layer": fixture.Object("app.layers.Layer", fixture.Tensor("float32", []int{3}, "0")),
			"name":  "tiny",
		})).
		Storage("data", "0", make([]byte, 12)).
		Zip("tiny")
	path := filepath.Join(t.TempDir(), "tiny.pt")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRecordsListsArchiveContents(t *testing.T) {
	path := writeArchiveFixture(t)

	stdout, _, err := executeCLI(t, "records", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "archive: tiny (version 3)")
	assert.Contains(t, stdout, "data.pkl")
	assert.Contains(t, stdout, "code/app/layers.toml")
}

func TestLoadPrintsSummary(t *testing.T) {
	path := writeArchiveFixture(t)

	stdout, stderr, err := executeCLI(t, "load", path, "--extra", "notes,missing", "--device", "cuda:0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "root: app.layers.Model")
	assert.Contains(t, stdout, "classes: 2")
	assert.Contains(t, stdout, "layer: app.layers.Layer = <app.layers.Layer>")
	assert.Contains(t, stdout, `name: str = "tiny"`)
	assert.Contains(t, stdout, "notes (5 bytes)")
	assert.NotContains(t, stdout, "missing")
	assert.Contains(t, stderr, "stage=load")
	assert.NotContains(t, stderr, "stage=construct")
}

func TestLoadVerboseLogsEveryStep(t *testing.T) {
	path := writeArchiveFixture(t)

	_, stderr, err := executeCLI(t, "load", path, "-v")
	require.NoError(t, err)
	assert.Contains(t, stderr, "stage=resolve")
	assert.Contains(t, stderr, "stage=construct")
}

func TestLoadJSONOutput(t *testing.T) {
	path := writeArchiveFixture(t)

	stdout, _, err := executeCLI(t, "load", path, "--json")
	require.NoError(t, err)
	var summary loadSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, "tiny", summary.Archive)
	assert.Equal(t, []string{"app.layers.Layer", "app.layers.Model"}, summary.Classes)
	assert.NotEmpty(t, summary.Session)
}

func TestLoadRejectsInvalidDevice(t *testing.T) {
	path := writeArchiveFixture(t)

	_, _, err := executeCLI(t, "load", path, "--device", "cuda:x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device")
}

func TestLoadReadsConfigFile(t *testing.T) {
	path := writeArchiveFixture(t)
	configPath := filepath.Join(t.TempDir(), "scriptload.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("extra_files = [\"notes\"]\n"), 0o600))

	stdout, _, err := executeCLI(t, "load", path, "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "notes (5 bytes)")
}

func TestDescribePrintsOpenAPIDocument(t *testing.T) {
	path := writeArchiveFixture(t)

	stdout, _, err := executeCLI(t, "describe", path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, "3.1.0", doc["openapi"])
	schemas := doc["components"].(map[string]any)["schemas"].(map[string]any)
	assert.Contains(t, schemas, "app_layers_Model")
	assert.Contains(t, schemas, "app_layers_Layer")
	assert.Equal(t, "tiny", doc["info"].(map[string]any)["title"])
}

func TestLoadMissingArchive(t *testing.T) {
	_, _, err := executeCLI(t, "load", filepath.Join(t.TempDir(), "absent.pt"))
	require.Error(t, err)
}
