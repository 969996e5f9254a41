// Package validate provides input validation for the REST and WebSocket
// surfaces. Session ids become file names and map keys, so they are held to a
// strict character set.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Input size limits (bytes).
const (
	MaxIDLength         = 128
	MaxCommandLength    = 16 * 1024
	MaxWorkingDirLength = 4096
)

// safeIDPattern allows alphanumeric, hyphens, underscores.
var safeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// SessionID validates a client-supplied session id.
func SessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("session id must not exceed %d characters", MaxIDLength)
	}
	if !safeIDPattern.MatchString(id) {
		return fmt.Errorf("session id contains invalid characters (only alphanumeric, hyphens, and underscores allowed)")
	}
	return nil
}

// Command validates a command string before it enters the pipeline. Risk
// assessment happens later; this only rejects payloads that are not a
// plausible command at all.
func Command(command string) error {
	if command == "" {
		return fmt.Errorf("command is required")
	}
	if len(command) > MaxCommandLength {
		return fmt.Errorf("command must not exceed %d bytes", MaxCommandLength)
	}
	if strings.Contains(command, "\x00") {
		return fmt.Errorf("command contains invalid characters")
	}
	return nil
}

// WorkingDir validates an optional working directory path.
func WorkingDir(dir string) error {
	if dir == "" {
		return nil
	}
	if len(dir) > MaxWorkingDirLength {
		return fmt.Errorf("working_dir must not exceed %d bytes", MaxWorkingDirLength)
	}
	if strings.Contains(dir, "\x00") {
		return fmt.Errorf("working_dir contains invalid characters")
	}
	return nil
}
