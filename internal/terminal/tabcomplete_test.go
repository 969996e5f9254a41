package terminal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCompletionDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"alpha.txt", "alphabet.md", "beta.txt", ".alpha-hidden"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "alpine"), 0o755))
	return dir
}

func TestCompletePrefixMatch(t *testing.T) {
	dir := setupCompletionDir(t)
	text := "cat " + dir + "/alph"

	completions, token := Complete(text, len(text))
	assert.Equal(t, dir+"/alph", token)
	assert.ElementsMatch(t, []string{
		dir + "/alpha.txt",
		dir + "/alphabet.md",
	}, completions)
}

func TestCompleteDirectorySuffix(t *testing.T) {
	dir := setupCompletionDir(t)
	text := "ls " + dir + "/alpi"

	completions, _ := Complete(text, len(text))
	assert.Equal(t, []string{dir + "/alpine/"}, completions)
}

// Hidden entries only appear when the prefix asks for them.
func TestCompleteHiddenFiles(t *testing.T) {
	dir := setupCompletionDir(t)

	text := "cat " + dir + "/"
	completions, _ := Complete(text, len(text))
	for _, c := range completions {
		assert.NotContains(t, c, "/.alpha-hidden")
	}

	text = "cat " + dir + "/.alp"
	completions, _ = Complete(text, len(text))
	assert.Equal(t, []string{dir + "/.alpha-hidden"}, completions)
}

func TestCompleteEmptyToken(t *testing.T) {
	completions, token := Complete("ls ", 3)
	assert.Nil(t, completions)
	assert.Empty(t, token)
}

func TestCompleteNoMatch(t *testing.T) {
	dir := setupCompletionDir(t)
	text := "cat " + dir + "/zzz"

	completions, token := Complete(text, len(text))
	assert.Empty(t, completions)
	assert.Equal(t, dir+"/zzz", token)
}

// Only the text left of the cursor participates.
func TestCompleteCursorPosition(t *testing.T) {
	dir := setupCompletionDir(t)
	head := "cat " + dir + "/alph"
	text := head + " trailing"

	completions, _ := Complete(text, len(head))
	assert.Len(t, completions, 2)
}
