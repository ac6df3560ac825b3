package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Filename is the expected name for a skill's definition file.
	Filename = "SKILL.md"

	frontmatterDelimiter = "---"
)

// ParseFile parses a SKILL.md file at path and returns an Entry.
func ParseFile(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse parses SKILL.md content (frontmatter + body) and returns an Entry.
func Parse(data []byte, skillPath string) (*Entry, error) {
	frontmatter, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("split frontmatter: %w", err)
	}

	var entry Entry
	if err := yaml.Unmarshal(frontmatter, &entry); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if entry.Name == "" {
		entry.Name = filepath.Base(skillPath)
	}
	if entry.Description == "" {
		return nil, fmt.Errorf("skill description is required")
	}

	entry.Content = strings.TrimSpace(string(body))
	entry.Path = skillPath
	return &entry, nil
}

// splitFrontmatter separates one leading YAML frontmatter block (delimited
// by "---" lines) from the remaining markdown body.
func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("empty file")
	}
	if strings.TrimSpace(scanner.Text()) != frontmatterDelimiter {
		return nil, nil, fmt.Errorf("missing opening frontmatter delimiter")
	}

	var frontmatterLines []string
	foundClosing := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontmatterDelimiter {
			foundClosing = true
			break
		}
		frontmatterLines = append(frontmatterLines, line)
	}
	if !foundClosing {
		return nil, nil, fmt.Errorf("missing closing frontmatter delimiter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scanner error: %w", err)
	}

	frontmatter := []byte(strings.Join(frontmatterLines, "\n"))
	body := []byte(strings.Join(bodyLines, "\n"))
	return frontmatter, body, nil
}

// StripFrontmatter removes leading YAML frontmatter blocks from content,
// including consecutive blocks, returning the remaining body trimmed of
// leading whitespace. Used by System-Context Assembly (spec.md §4.13).
func StripFrontmatter(content string) string {
	rest := content
	for {
		trimmed := strings.TrimLeft(rest, " \t\r\n")
		if !strings.HasPrefix(trimmed, frontmatterDelimiter) {
			return trimmed
		}
		afterOpen := trimmed[len(frontmatterDelimiter):]
		idx := strings.Index(afterOpen, "\n"+frontmatterDelimiter)
		if idx < 0 {
			return trimmed
		}
		closeEnd := idx + len("\n"+frontmatterDelimiter)
		rest = afterOpen[closeEnd:]
	}
}
