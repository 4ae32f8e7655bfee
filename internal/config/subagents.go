package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conductor-ai/conductor/internal/orchestrator"
)

// subagentsFile is the on-disk shape of a subagent declaration file.
type subagentsFile struct {
	Subagents []orchestrator.SubagentSpec `yaml:"subagents"`
}

// LoadSubagentSpecs reads delegatable agent type declarations from a YAML
// file. Every spec must carry a unique, non-empty type name.
func LoadSubagentSpecs(path string) ([]orchestrator.SubagentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading subagents file: %w", err)
	}

	var file subagentsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(file.Subagents) == 0 {
		return nil, fmt.Errorf("%s declares no subagents", path)
	}

	seen := make(map[string]bool, len(file.Subagents))
	for i, spec := range file.Subagents {
		name := strings.TrimSpace(spec.Type)
		if name == "" {
			return nil, fmt.Errorf("%s: subagent %d has no type", path, i)
		}
		if seen[name] {
			return nil, fmt.Errorf("%s: duplicate subagent type %q", path, name)
		}
		seen[name] = true
	}

	return file.Subagents, nil
}

// DefaultSubagentSpecs returns the built-in delegatable agent types used
// when no subagents file is configured.
func DefaultSubagentSpecs() []orchestrator.SubagentSpec {
	return []orchestrator.SubagentSpec{
		{
			Type:        "researcher",
			Description: "Gathers and summarizes information relevant to a focused question.",
			SystemPrompt: "You are a research agent. Investigate the described topic, " +
				"record findings as artifacts, and finish with a concise summary.",
			Tools:         []string{"write_artifact", "read_artifact", "status_update"},
			MaxIterations: 25,
		},
		{
			Type:        "writer",
			Description: "Drafts or revises a document from gathered material.",
			SystemPrompt: "You are a writing agent. Read the provided artifacts, produce " +
				"the requested document as an artifact, and finish with a one-line summary.",
			Tools:         []string{"write_artifact", "read_artifact", "status_update"},
			MaxIterations: 25,
		},
		{
			Type:        "reviewer",
			Description: "Checks completed work against the original request and reports issues.",
			SystemPrompt: "You are a review agent. Compare the artifacts against the " +
				"described requirements and finish with a list of issues, or 'no issues found'.",
			Tools:          []string{"read_artifact", "status_update"},
			AllowQuestions: true,
			MaxIterations:  15,
		},
	}
}
