// Package toolrun materializes argv from a JSON params object according to a
// skill's declarative Tool Descriptor, grounded on original_source's
// crates/lib/src/tools/generic.rs.
package toolrun

// ArgKind discriminates how an Argument Mapping contributes to argv.
type ArgKind string

const (
	KindPositional    ArgKind = "positional"
	KindFlag          ArgKind = "flag"
	KindFlagIfBoolean ArgKind = "flagIfBoolean"
)

// ResolveCommand describes a post-stringification value resolver: either an
// inline script (rooted in the skill's scripts/ directory) or an allowlisted
// (binary, subcommand) pair, invoked with Args where "$param" is substituted
// for the current value.
type ResolveCommand struct {
	Script    string   `json:"script,omitempty"`
	Binary    string   `json:"binary,omitempty"`
	Subcommand string  `json:"subcommand,omitempty"`
	Args      []string `json:"args,omitempty"`
}

// ArgMapping is one entry in an ExecutionSpec's ordered argument list.
type ArgMapping struct {
	Param             string          `json:"param"`
	Kind              ArgKind         `json:"kind"`
	Flag              string          `json:"flag,omitempty"`
	FlagIfTrue        string          `json:"flagIfTrue,omitempty"`
	FlagIfFalse       string          `json:"flagIfFalse,omitempty"`
	NormalizeNewlines bool            `json:"normalizeNewlines,omitempty"`
	ResolveCommand    *ResolveCommand `json:"resolveCommand,omitempty"`
}

// ExecutionSpec is the argv-construction plan for a single tool.
type ExecutionSpec struct {
	Tool       string       `json:"tool"`
	Binary     string       `json:"binary"`
	Subcommand string       `json:"subcommand"`
	Args       []ArgMapping `json:"args"`
}

// ToolSpec is the model-facing description of a tool: name, description, and
// JSON-schema parameters.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Descriptor is a skill's tools.json: tool specs, an allowlist map (binary ->
// permitted subcommands), and one execution spec per tool.
type Descriptor struct {
	Tools     []ToolSpec          `json:"tools"`
	Allowlist map[string][]string `json:"allowlist"`
	Execution []ExecutionSpec     `json:"execution"`
}
