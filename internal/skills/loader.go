package skills

import (
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/chora-ai/chai/internal/toolrun"
)

const toolsFilename = "tools.json"

// Load enumerates primary and extraRoots, in order, loading every
// first-level subdirectory that contains a SKILL.md. Later roots override
// earlier roots by skill name. Skills whose required binaries are not
// resolvable on PATH are skipped, as are subdirectories whose SKILL.md fails
// to parse (logged as a warning).
func Load(logger *slog.Logger, primary string, extraRoots []string) ([]*Entry, error) {
	byName := make(map[string]*Entry)
	var order []string

	roots := append([]string{primary}, extraRoots...)
	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		dirEntries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, de := range dirEntries {
			if !de.IsDir() {
				continue
			}
			skillDir := filepath.Join(root, de.Name())
			skillFile := filepath.Join(skillDir, Filename)
			if _, err := os.Stat(skillFile); err != nil {
				continue
			}

			entry, err := ParseFile(skillFile)
			if err != nil {
				logger.Warn("skipping skill with unparseable SKILL.md", "dir", skillDir, "error", err)
				continue
			}
			if !binsAvailable(entry.Metadata.Requires.Bins) {
				logger.Debug("skipping skill: required binaries not on PATH", "skill", entry.Name)
				continue
			}

			if err := loadToolDescriptor(entry); err != nil {
				logger.Warn("skipping tool descriptor: parse failure, keeping skill without tools", "skill", entry.Name, "error", err)
			}

			if _, exists := byName[entry.Name]; !exists {
				order = append(order, entry.Name)
			}
			byName[entry.Name] = entry
		}
	}

	out := make([]*Entry, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
}

func loadToolDescriptor(entry *Entry) error {
	toolsPath := filepath.Join(entry.Path, toolsFilename)
	data, err := os.ReadFile(toolsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var desc toolrun.Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return err
	}
	entry.Tools = &desc
	return nil
}

// binsAvailable reports whether every name in bins resolves on PATH,
// trying a ".exe" suffix on Windows.
func binsAvailable(bins []string) bool {
	for _, bin := range bins {
		if _, err := exec.LookPath(bin); err == nil {
			continue
		}
		if runtime.GOOS == "windows" {
			if _, err := exec.LookPath(bin + ".exe"); err == nil {
				continue
			}
		}
		return false
	}
	return true
}

// Filter returns only the entries whose name appears in enabled.
func Filter(entries []*Entry, enabled []string) []*Entry {
	allow := make(map[string]struct{}, len(enabled))
	for _, name := range enabled {
		allow[name] = struct{}{}
	}
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := allow[e.Name]; ok {
			out = append(out, e)
		}
	}
	return out
}
