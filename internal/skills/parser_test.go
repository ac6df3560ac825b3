package skills

import "testing"

import "github.com/stretchr/testify/require"

func TestParseExtractsFrontmatterAndBody(t *testing.T) {
	data := []byte("---\nname: notes\ndescription: search notes\n---\n# Notes\n\nBody text.\n")
	entry, err := Parse(data, "/skills/notes")
	require.NoError(t, err)
	require.Equal(t, "notes", entry.Name)
	require.Equal(t, "search notes", entry.Description)
	require.Equal(t, "# Notes\n\nBody text.", entry.Content)
}

func TestParseRequiresDescription(t *testing.T) {
	data := []byte("---\nname: notes\n---\nbody\n")
	_, err := Parse(data, "/skills/notes")
	require.Error(t, err)
}

func TestParseDefaultsNameToDirectory(t *testing.T) {
	data := []byte("---\ndescription: x\n---\nbody\n")
	entry, err := Parse(data, "/skills/my-skill")
	require.NoError(t, err)
	require.Equal(t, "my-skill", entry.Name)
}

func TestStripFrontmatterRemovesSingleBlock(t *testing.T) {
	content := "---\nname: x\n---\nBody here."
	require.Equal(t, "Body here.", StripFrontmatter(content))
}

func TestStripFrontmatterRemovesConsecutiveBlocks(t *testing.T) {
	content := "---\nname: x\n---\n---\nother: y\n---\nBody here."
	require.Equal(t, "Body here.", StripFrontmatter(content))
}

func TestStripFrontmatterNoFrontmatterIsNoop(t *testing.T) {
	content := "Just a body, no frontmatter."
	require.Equal(t, content, StripFrontmatter(content))
}
