package skills

import (
	"fmt"
	"strings"
	"time"
)

// ContextMode selects how the skills block of the system context is rendered.
type ContextMode string

const (
	ContextModeFull          ContextMode = "full"
	ContextModeReadOnDemand  ContextMode = "readOnDemand"
)

// BuildSystemContext assembles the per-turn system-context string: today's
// date, the trimmed workspace agent-context document (if any), then the
// skills block per mode. Grounded on original_source's build_system_context /
// build_skill_context / strip_skill_frontmatter.
func BuildSystemContext(now time.Time, agentCtx string, entries []*Entry, mode ContextMode) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Today's date: %s", now.Format("2006-01-02")))

	if trimmed := strings.TrimSpace(agentCtx); trimmed != "" {
		b.WriteString("\n\n")
		b.WriteString(trimmed)
	}

	skillsBlock := buildSkillsBlock(entries, mode)
	if strings.TrimSpace(skillsBlock) != "" {
		b.WriteString("\n\n")
		b.WriteString(skillsBlock)
	}

	return b.String()
}

// SkillsContext returns just the skills block a system context would embed
// for the given mode, without the date/agent-context preamble. Used by the
// gateway's status method to report the skills-context separately.
func SkillsContext(entries []*Entry, mode ContextMode) string {
	return buildSkillsBlock(entries, mode)
}

func buildSkillsBlock(entries []*Entry, mode ContextMode) string {
	if len(entries) == 0 {
		return ""
	}
	if mode == ContextModeReadOnDemand {
		return buildCompactSkillsList(entries)
	}
	return buildFullSkillsBlock(entries)
}

func buildFullSkillsBlock(entries []*Entry) string {
	var b strings.Builder
	b.WriteString("You have access to the following skills. Use them when relevant.\n\n")
	for _, e := range entries {
		b.WriteString("## ")
		b.WriteString(e.Name)
		b.WriteString("\n")
		if e.Description != "" {
			b.WriteString(e.Description)
			b.WriteString("\n\n")
		}
		b.WriteString(StripFrontmatter(e.Content))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ReadSkillToolName is the tool name the read-on-demand skills list tells the
// model to call. No tool definition or executor is registered under this
// name: agent.BuildToolDefs and agent.SkillToolExecutor cover only the tools
// declared in skills' tools.json files.
const ReadSkillToolName = "read_skill"

func buildCompactSkillsList(entries []*Entry) string {
	var b strings.Builder
	b.WriteString("You have access to the following skills. Call the ")
	b.WriteString(ReadSkillToolName)
	b.WriteString(" tool with the skill name to read its full documentation.\n\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("- %s: %s\n", e.Name, e.Description))
	}
	return strings.TrimRight(b.String(), "\n")
}

// ReadSkillContent resolves name to its frontmatter-stripped SKILL.md body.
// Nothing else in the module calls it; no read_skill executor exists.
func ReadSkillContent(entries []*Entry, name string) (string, bool) {
	for _, e := range entries {
		if e.Name == name {
			return StripFrontmatter(e.Content), true
		}
	}
	return "", false
}
