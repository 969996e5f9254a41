package terminal

import (
	"os"
	"path/filepath"
	"strings"
)

// Complete performs a local filesystem-prefix lookup on the token under the
// cursor. It is independent of the PTY: the shell never sees the request.
func Complete(text string, cursor int) ([]string, string) {
	if cursor < 0 || cursor > len(text) {
		cursor = len(text)
	}
	head := text[:cursor]

	// The token being completed is everything after the last whitespace.
	start := strings.LastIndexAny(head, " \t")
	token := head[start+1:]
	if token == "" {
		return nil, ""
	}

	dir, prefix := filepath.Split(token)
	searchDir := dir
	if searchDir == "" {
		searchDir = "."
	} else if strings.HasPrefix(searchDir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			searchDir = filepath.Join(home, searchDir[2:])
		}
	}

	entries, err := os.ReadDir(searchDir)
	if err != nil {
		return nil, token
	}

	var completions []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if prefix == "" && strings.HasPrefix(name, ".") {
			continue
		}
		candidate := dir + name
		if entry.IsDir() {
			candidate += "/"
		}
		completions = append(completions, candidate)
	}
	return completions, token
}
