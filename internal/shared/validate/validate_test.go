package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionID(t *testing.T) {
	assert.NoError(t, SessionID("sess_01ARZ3NDEKTSV4RRFFQ69G5FAV"))
	assert.NoError(t, SessionID("abc-123"))

	assert.Error(t, SessionID(""))
	assert.Error(t, SessionID("../etc/passwd"))
	assert.Error(t, SessionID("has space"))
	assert.Error(t, SessionID(strings.Repeat("a", MaxIDLength+1)))
}

func TestCommand(t *testing.T) {
	assert.NoError(t, Command("echo hi"))

	assert.Error(t, Command(""))
	assert.Error(t, Command("echo \x00 hidden"))
	assert.Error(t, Command(strings.Repeat("x", MaxCommandLength+1)))
}

func TestWorkingDir(t *testing.T) {
	assert.NoError(t, WorkingDir(""))
	assert.NoError(t, WorkingDir("/home/user/project"))

	assert.Error(t, WorkingDir("/tmp/\x00"))
	assert.Error(t, WorkingDir(strings.Repeat("p", MaxWorkingDirLength+1)))
}
