package supervisor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conductor-dev/conductor/internal/normalizer"
)

// EngineSpec is one row of the engine command table: how to turn a prompt
// and an optional resume token into the argv for a vendor agent CLI.
type EngineSpec struct {
	Binary           string   `yaml:"binary"`
	BaseArgs         []string `yaml:"baseArgs"`
	ResumeFlag       string   `yaml:"resumeFlag"`       // empty: engine has no resume support
	PromptFlag       string   `yaml:"promptFlag"`       // e.g. "--"; empty: prompt appended bare
	NormalizerEngine string   `yaml:"normalizerEngine"` // "codex", "claude", or "" for unrecognized stdout shape
	Aliases          []string `yaml:"aliases"`
}

// defaultEngines is the built-in engine command table, used whenever no
// engines.yaml override is configured or loading it fails.
func defaultEngines() map[string]EngineSpec {
	return map[string]EngineSpec{
		"claude": {
			Binary:           "claude",
			BaseArgs:         []string{"-p", "--output-format", "stream-json", "--verbose", "--dangerously-skip-permissions"},
			ResumeFlag:       "--resume",
			PromptFlag:       "--",
			NormalizerEngine: string(normalizer.EngineClaude),
			Aliases:          []string{"claude-code"},
		},
		"codex": {
			Binary:           "codex",
			BaseArgs:         []string{"--full-auto"},
			NormalizerEngine: string(normalizer.EngineCodex),
		},
		"gemini": {
			Binary:   "gemini",
			BaseArgs: []string{"-m", "gemini-3-pro-preview", "--yolo"},
		},
	}
}

// loadEngineTable returns the built-in engine table, optionally overridden
// by the declarative YAML file at path, so users can add or reconfigure
// engines without a rebuild. A missing or empty path is not an error; it
// simply selects the defaults.
func loadEngineTable(path string) (map[string]EngineSpec, error) {
	table := defaultEngines()
	if path == "" {
		return table, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return table, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read engines config: %w", err)
	}

	var override map[string]EngineSpec
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse engines config %s: %w", path, err)
	}
	for name, spec := range override {
		table[name] = spec
	}
	return table, nil
}

// resolveEngine finds engine in the table directly or via an alias.
func resolveEngine(table map[string]EngineSpec, engine string) (EngineSpec, bool) {
	if spec, ok := table[engine]; ok {
		return spec, true
	}
	for _, spec := range table {
		for _, alias := range spec.Aliases {
			if alias == engine {
				return spec, true
			}
		}
	}
	return EngineSpec{}, false
}

func (s EngineSpec) buildArgs(prompt, resumeToken string) []string {
	args := append([]string{}, s.BaseArgs...)
	if resumeToken != "" && s.ResumeFlag != "" {
		args = append(args, s.ResumeFlag, resumeToken)
	}
	if s.PromptFlag != "" {
		args = append(args, s.PromptFlag)
	}
	return append(args, prompt)
}
