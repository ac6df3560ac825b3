package agent

import (
	"context"
	"fmt"

	"github.com/chora-ai/chai/internal/llm"
	"github.com/chora-ai/chai/internal/model"
	"github.com/chora-ai/chai/internal/skills"
	"github.com/chora-ai/chai/internal/toolrun"
)

// BuildToolDefs flattens every loaded skill's declared tool specs into the
// backend-agnostic llm.ToolDef list the Loop passes to the model.
func BuildToolDefs(entries []*skills.Entry) []llm.ToolDef {
	var out []llm.ToolDef
	for _, entry := range entries {
		if entry.Tools == nil {
			continue
		}
		for _, tool := range entry.Tools.Tools {
			out = append(out, llm.ToolDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			})
		}
	}
	return out
}

// ToolMetrics receives a pass/fail notification for each tool execution.
// Implemented by *gateway.Metrics; kept as a narrow interface here so this
// package doesn't depend on the gateway package.
type ToolMetrics interface {
	RecordToolExecution(skill, status string)
}

// SkillToolExecutor implements ToolExecutor by looking up which loaded
// skill declares a tool by name and running it through the tool runtime.
type SkillToolExecutor struct {
	Entries []*skills.Entry
	Runtime *toolrun.Runtime
	Metrics ToolMetrics // optional
}

var _ ToolExecutor = (*SkillToolExecutor)(nil)

// ExecuteTool resolves call.Name against every loaded skill's tool
// descriptor and runs the first match.
func (e *SkillToolExecutor) ExecuteTool(ctx context.Context, call model.ToolCall) (string, error) {
	for _, entry := range e.Entries {
		if entry.Tools == nil {
			continue
		}
		for _, tool := range entry.Tools.Tools {
			if tool.Name != call.Name {
				continue
			}
			exec, ok := findExecution(entry.Tools, tool.Name)
			if !ok {
				e.recordOutcome(entry.Name, false)
				return "", fmt.Errorf("tool %q has no execution spec", call.Name)
			}
			out, err := e.Runtime.Execute(ctx, exec, call.Arguments, entry.Path)
			e.recordOutcome(entry.Name, err == nil)
			return out, err
		}
	}
	return "", fmt.Errorf("no loaded skill declares tool %q", call.Name)
}

func (e *SkillToolExecutor) recordOutcome(skill string, ok bool) {
	if e.Metrics == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	e.Metrics.RecordToolExecution(skill, status)
}

func findExecution(d *toolrun.Descriptor, toolName string) (toolrun.ExecutionSpec, bool) {
	for _, exec := range d.Execution {
		if exec.Tool == toolName {
			return exec, true
		}
	}
	return toolrun.ExecutionSpec{}, false
}

