package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-scriptload"
	"github.com/goliatone/go-scriptload/pkg/logsink"
)

type loadFlags struct {
	configPath string
	device     string
	extra      []string
	codePrefix string
	noOptimize bool
	verbose    bool
}

func (f *loadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "TOML config file")
	cmd.Flags().StringVar(&f.device, "device", "", "retag every tensor with this device, e.g. cpu or cuda:0")
	cmd.Flags().StringSliceVar(&f.extra, "extra", nil, "extra file keys to read from extra/<key>")
	cmd.Flags().StringVar(&f.codePrefix, "code-prefix", "", "record prefix holding class sources")
	cmd.Flags().BoolVar(&f.noOptimize, "no-optimize", false, "evaluate method bodies from source on every call")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log every load step")
}

// config layers the file, then SCRIPTLOAD_* variables, then flags.
func (f *loadFlags) config() (scriptload.Config, error) {
	cfg := scriptload.DefaultConfig()
	if f.configPath != "" {
		loaded, err := scriptload.LoadConfigFile(f.configPath)
		if err != nil {
			return scriptload.Config{}, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return scriptload.Config{}, err
	}
	if f.device != "" {
		cfg.Device = f.device
	}
	if len(f.extra) > 0 {
		cfg.ExtraFiles = append(cfg.ExtraFiles, f.extra...)
	}
	if f.codePrefix != "" {
		cfg.CodePrefix = f.codePrefix
	}
	if f.noOptimize {
		cfg.Optimize = false
	}
	return cfg, nil
}

func (f *loadFlags) load(cmd *cobra.Command, path string) (*scriptload.Module, scriptload.ExtraFiles, error) {
	cfg, err := f.config()
	if err != nil {
		return nil, nil, err
	}
	level := zerolog.InfoLevel
	if f.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		Level(level).
		With().Timestamp().Logger()

	return scriptload.LoadFile(cmd.Context(), path,
		scriptload.WithConfig(cfg),
		scriptload.WithLoadLogger(logsink.New(logger)),
	)
}

type loadSummary struct {
	Archive    string            `json:"archive"`
	Session    string            `json:"session"`
	Root       string            `json:"root"`
	Classes    []string          `json:"classes"`
	Attributes []attributeReport `json:"attributes"`
	ExtraFiles map[string]int    `json:"extra_files,omitempty"`
}

type attributeReport struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

func newLoadCmd() *cobra.Command {
	var (
		flags  loadFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "load <archive>",
		Short: "Load an archive and summarize its root object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, extra, err := flags.load(cmd, args[0])
			if err != nil {
				return err
			}
			summary := summarize(module, extra)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return writeSummary(cmd.OutOrStdout(), summary)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func summarize(module *scriptload.Module, extra scriptload.ExtraFiles) loadSummary {
	summary := loadSummary{
		Archive: module.Archive(),
		Session: module.SessionID(),
		Root:    string(module.Type().Name),
	}
	if cu := module.CompilationUnit(); cu != nil {
		for _, name := range cu.Classes() {
			summary.Classes = append(summary.Classes, string(name))
		}
	}
	for _, attr := range module.Type().Attributes() {
		value, _ := module.Attr(attr.Name)
		summary.Attributes = append(summary.Attributes, attributeReport{
			Name:  attr.Name,
			Type:  attr.Type.String(),
			Value: formatValue(value),
		})
	}
	if len(extra) > 0 {
		summary.ExtraFiles = make(map[string]int, len(extra))
		for key, data := range extra {
			summary.ExtraFiles[key] = len(data)
		}
	}
	return summary
}

func writeSummary(w io.Writer, s loadSummary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "archive: %s\n", s.Archive)
	fmt.Fprintf(&b, "session: %s\n", s.Session)
	fmt.Fprintf(&b, "root: %s\n", s.Root)
	fmt.Fprintf(&b, "classes: %d\n", len(s.Classes))
	for _, name := range s.Classes {
		fmt.Fprintf(&b, "  %s\n", name)
	}
	b.WriteString("attributes:\n")
	for _, attr := range s.Attributes {
		fmt.Fprintf(&b, "  %s: %s = %s\n", attr.Name, attr.Type, attr.Value)
	}
	if len(s.ExtraFiles) > 0 {
		b.WriteString("extra files:\n")
		keys := make([]string, 0, len(s.ExtraFiles))
		for key := range s.ExtraFiles {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "  %s (%d bytes)\n", key, s.ExtraFiles[key])
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
