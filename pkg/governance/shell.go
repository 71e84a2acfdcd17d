package governance

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrShellSyntax is returned for command substitution attempts.
	ErrShellSyntax = errors.New("disallowed shell syntax")
	// ErrCommandNotAllowed is returned when a segment's executable is
	// not on the allowlist.
	ErrCommandNotAllowed = errors.New("command not allowed")
)

// ValidateShellCommand applies the shell policy: command substitution
// is always rejected; the command is split on pipe, and, or, and
// semicolon operators; and when an allowlist is configured every
// segment's first token must appear on it. Segments with no
// executable are skipped.
func ValidateShellCommand(command string, allowlist []string) error {
	if strings.Contains(command, "$(") || strings.Contains(command, "`") {
		return fmt.Errorf("%w: command substitution", ErrShellSyntax)
	}

	if len(allowlist) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(allowlist))
	for _, cmd := range allowlist {
		allowed[cmd] = struct{}{}
	}

	for _, segment := range splitSegments(command) {
		fields := strings.Fields(segment)
		if len(fields) == 0 {
			continue
		}
		if _, ok := allowed[fields[0]]; !ok {
			return fmt.Errorf("%w: %q", ErrCommandNotAllowed, fields[0])
		}
	}
	return nil
}

// splitSegments breaks a command line on |, &&, || and ;. The
// two-character operators are collapsed first so they do not leave
// empty artifacts behind.
func splitSegments(command string) []string {
	s := strings.ReplaceAll(command, "&&", ";")
	s = strings.ReplaceAll(s, "||", ";")
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ';'
	})
}
