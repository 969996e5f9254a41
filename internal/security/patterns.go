package security

// Patterns is the injectable risk-pattern source: three ordered tiers of
// regular expressions, most severe first.
type Patterns struct {
	Dangerous []string
	High      []string
	Operators []string
}

// DefaultPatterns returns the built-in pattern lists.
func DefaultPatterns() Patterns {
	return Patterns{
		Dangerous: []string{
			`rm\s+(-[a-zA-Z]*[rf][a-zA-Z]*\s+)+/(\s|$)`,
			`rm\s+-[a-zA-Z]*[rf][a-zA-Z]*\s+/\S*`,
			`mkfs(\.\w+)?\s`,
			`dd\s+.*of=/dev/(sd|hd|nvme|vd)`,
			`:\(\)\s*\{.*\};\s*:`,
			`>\s*/dev/(sd|hd|nvme|vd)`,
			`shred\s+.*/dev/`,
			`chmod\s+(-R\s+)?0?777\s+/(\s|$)`,
			`wipefs\s`,
			`\bhalt\b|\bpoweroff\b|shutdown\s`,
		},
		High: []string{
			`\bsudo\b`,
			`\bsu\s+(-\s*)?root\b`,
			`chmod\s+(-[a-zA-Z]+\s+)?[0-7]*77[0-7]?\s`,
			`chown\s+(-R\s+)?root\b`,
			`kill\s+-9\b|\bpkill\b|\bkillall\b`,
			`\b(apt|apt-get|yum|dnf|pacman|zypper)\s+(remove|purge|autoremove)\b`,
			`systemctl\s+(stop|disable|mask)\b`,
			`iptables\s|nft\s+`,
			`\bmount\b|\bumount\b`,
			`/etc/(passwd|shadow|sudoers)`,
		},
		Operators: []string{
			"\\$\\(.*\\)",
			"`.*`",
			`\|\s*(ba|z|da)?sh\b`,
			`>\s*/etc/`,
			`>>?\s*/(boot|sys|proc)/`,
			`;\s*rm\s`,
			`&&\s*rm\s`,
			`\bcurl\b.*\|\s*\w*sh`,
			`\bwget\b.*\|\s*\w*sh`,
		},
	}
}
