// Package security classifies shell commands into risk tiers and decides
// whether a session's security level blocks them.
package security

import "regexp"

// Risk is the severity class assigned to a command string.
type Risk int

const (
	RiskSafe Risk = iota
	RiskModerate
	RiskHigh
	RiskDangerous
)

func (r Risk) String() string {
	switch r {
	case RiskDangerous:
		return "DANGEROUS"
	case RiskHigh:
		return "HIGH"
	case RiskModerate:
		return "MODERATE"
	default:
		return "SAFE"
	}
}

// Level is a session's security posture.
type Level string

const (
	LevelStandard   Level = "STANDARD"
	LevelElevated   Level = "ELEVATED"
	LevelRestricted Level = "RESTRICTED"
)

// ParseLevel maps a string to a Level, defaulting to STANDARD.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelElevated:
		return LevelElevated
	case LevelRestricted:
		return LevelRestricted
	default:
		return LevelStandard
	}
}

// Blocks reports whether a command of the given risk is vetoed at this level.
// STANDARD blocks nothing (commands are still logged), ELEVATED blocks only
// DANGEROUS, RESTRICTED blocks HIGH and DANGEROUS.
func (l Level) Blocks(r Risk) bool {
	switch l {
	case LevelRestricted:
		return r >= RiskHigh
	case LevelElevated:
		return r >= RiskDangerous
	default:
		return false
	}
}

// Classifier tests commands against three ordered pattern tiers. The most
// severe tier is checked first and the first tier with a match wins, so the
// result does not depend on iteration order within a tier.
type Classifier struct {
	dangerous []*regexp.Regexp
	high      []*regexp.Regexp
	operators []*regexp.Regexp
}

// NewClassifier compiles a classifier from the given pattern source.
func NewClassifier(p Patterns) *Classifier {
	return &Classifier{
		dangerous: compileAll(p.Dangerous),
		high:      compileAll(p.High),
		operators: compileAll(p.Operators),
	}
}

// NewDefaultClassifier compiles a classifier from the built-in pattern lists.
func NewDefaultClassifier() *Classifier {
	return NewClassifier(DefaultPatterns())
}

// Classify assigns a risk tier to a raw command string.
func (c *Classifier) Classify(command string) Risk {
	if matchAny(c.dangerous, command) {
		return RiskDangerous
	}
	if matchAny(c.high, command) {
		return RiskHigh
	}
	if matchAny(c.operators, command) {
		return RiskModerate
	}
	return RiskSafe
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
