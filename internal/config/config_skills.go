package config

// SkillsConfig configures skill discovery and the agent loop's system
// context assembly.
type SkillsConfig struct {
	// Directory is the primary skill root.
	Directory string `yaml:"directory"`

	// ExtraDirs are additional skill roots; entries here override entries
	// from Directory by name.
	ExtraDirs []string `yaml:"extraDirs"`

	// Enabled, if non-empty, restricts loaded skills to these names.
	Enabled []string `yaml:"enabled"`

	// ContextMode is "full" or "readOnDemand".
	ContextMode string `yaml:"contextMode"`

	// AllowScripts enables script-based tool argument resolvers.
	AllowScripts bool `yaml:"allowScripts"`

	// AgentContextPath, if set, names a file whose trimmed contents are
	// spliced into the system context after the date line (spec.md §4.13).
	// A missing file is treated as absent, not an error.
	AgentContextPath string `yaml:"agentContextPath"`
}
