package config

import (
	"fmt"
	"strings"
	"unicode"
)

// splitCommand turns a configured capture command line into its argv form.
// Quoting follows shell conventions: single or double quotes group words and
// a backslash escapes the next rune. A blank line or a line starting with #
// yields no argv, which disables the command. Commands are executed directly,
// never through a shell.
func splitCommand(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	var (
		argv    []string
		word    strings.Builder
		quote   rune
		escaped bool
	)

	endWord := func() {
		if word.Len() > 0 {
			argv = append(argv, word.String())
			word.Reset()
		}
	}

	for _, r := range line {
		switch {
		case escaped:
			word.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				word.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
		case unicode.IsSpace(r):
			endWord()
		default:
			word.WriteRune(r)
		}
	}

	switch {
	case escaped:
		return nil, fmt.Errorf("capture command %q ends with an unterminated escape", line)
	case quote != 0:
		return nil, fmt.Errorf("capture command %q has an unterminated quote", line)
	}

	endWord()
	return argv, nil
}

// mustSplitCommand parses a built-in default command. An invalid default is a
// programming error, so it panics.
func mustSplitCommand(line string) []string {
	argv, err := splitCommand(line)
	if err != nil {
		panic(err)
	}
	return argv
}
