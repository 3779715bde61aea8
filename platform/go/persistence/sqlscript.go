package persistence

import (
	"regexp"
	"strings"
)

var createTablePattern = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?"?([a-z_][a-z0-9_]*)"?`)

// SplitStatements breaks a SQL script into statements. Lines starting with "--" are dropped
// and statements are split on ";". Scripts must not contain semicolons inside literals or
// function bodies.
func SplitStatements(script string) []string {
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	parts := strings.Split(b.String(), ";")
	statements := make([]string, 0, len(parts))
	for _, raw := range parts {
		if stmt := strings.TrimSpace(raw); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// TemplateTables lists the tables a script creates, in order of appearance.
func TemplateTables(script string) []string {
	var tables []string
	for _, stmt := range SplitStatements(script) {
		if m := createTablePattern.FindStringSubmatch(stmt); m != nil {
			tables = append(tables, strings.ToLower(m[1]))
		}
	}
	return tables
}
