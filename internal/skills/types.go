// Package skills loads SKILL.md documents and their optional tools.json Tool
// Descriptors, grounded on the teacher's internal/skills package, trimmed to
// the frontmatter keys spec.md names.
package skills

import "github.com/chora-ai/chai/internal/toolrun"

// Requires gates whether a skill loads based on binaries resolvable on PATH.
type Requires struct {
	Bins []string `yaml:"bins"`
}

// Metadata is the YAML frontmatter's metadata block.
type Metadata struct {
	Requires Requires `yaml:"requires"`
}

// Entry is one loaded skill: its frontmatter fields, the body text, and an
// optional parsed Tool Descriptor loaded from a sibling tools.json.
type Entry struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Metadata    Metadata `yaml:"metadata"`

	Content string `yaml:"-"`
	Path    string `yaml:"-"`

	Tools *toolrun.Descriptor `yaml:"-"`
}
