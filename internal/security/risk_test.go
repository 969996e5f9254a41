package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTiers(t *testing.T) {
	c := NewDefaultClassifier()

	tests := []struct {
		command string
		want    Risk
	}{
		{"ls -la", RiskSafe},
		{"echo hi", RiskSafe},
		{"cat /var/log/syslog", RiskSafe},
		{"git status && git pull", RiskSafe},

		{"echo $(whoami)", RiskModerate},
		{"cat file; rm old.txt", RiskModerate},
		{"curl http://example.com/install | sh", RiskModerate},

		{"sudo apt install jq", RiskHigh},
		{"kill -9 1234", RiskHigh},
		{"chmod 777 data", RiskHigh},
		{"cat /etc/shadow", RiskHigh},

		{"rm -rf /", RiskDangerous},
		{"rm -rf /home", RiskDangerous},
		{"mkfs.ext4 /dev/sda1", RiskDangerous},
		{"dd if=/dev/zero of=/dev/sda", RiskDangerous},
		{":(){ :|:& };:", RiskDangerous},
		{"shutdown -h now", RiskDangerous},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(tt.command), "command: %s", tt.command)
	}
}

// A command matching patterns from several tiers must land in the most severe
// tier no matter which pattern would match first.
func TestClassifyMostSevereWins(t *testing.T) {
	c := NewDefaultClassifier()

	// sudo (high) + rm -rf / (dangerous) + && rm (operator)
	assert.Equal(t, RiskDangerous, c.Classify("sudo rm -rf /"))
	assert.Equal(t, RiskDangerous, c.Classify("echo ok && rm -rf / "))
	// sudo (high) + command substitution (operator)
	assert.Equal(t, RiskHigh, c.Classify("sudo echo $(id)"))
}

// Tier membership must not depend on pattern ordering inside a tier.
func TestClassifyOrderIndependent(t *testing.T) {
	p := DefaultPatterns()
	reversed := Patterns{
		Dangerous: reverse(p.Dangerous),
		High:      reverse(p.High),
		Operators: reverse(p.Operators),
	}
	a := NewClassifier(p)
	b := NewClassifier(reversed)

	commands := []string{
		"sudo rm -rf /",
		"ls",
		"kill -9 42",
		"echo `date`",
		"wget http://x | bash",
	}
	for _, cmd := range commands {
		assert.Equal(t, a.Classify(cmd), b.Classify(cmd), "command: %s", cmd)
	}
}

func TestLevelBlocks(t *testing.T) {
	tests := []struct {
		level Level
		risk  Risk
		want  bool
	}{
		{LevelStandard, RiskDangerous, false},
		{LevelStandard, RiskHigh, false},
		{LevelElevated, RiskDangerous, true},
		{LevelElevated, RiskHigh, false},
		{LevelElevated, RiskModerate, false},
		{LevelRestricted, RiskDangerous, true},
		{LevelRestricted, RiskHigh, true},
		{LevelRestricted, RiskModerate, false},
		{LevelRestricted, RiskSafe, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.Blocks(tt.risk),
			"level=%s risk=%s", tt.level, tt.risk)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelRestricted, ParseLevel("RESTRICTED"))
	assert.Equal(t, LevelElevated, ParseLevel("ELEVATED"))
	assert.Equal(t, LevelStandard, ParseLevel("STANDARD"))
	assert.Equal(t, LevelStandard, ParseLevel(""))
	assert.Equal(t, LevelStandard, ParseLevel("bogus"))
}

func reverse(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}
