package rules

import (
	"regexp"
	"strings"
	"sync"
)

// Rule patterns and exclusions use case-sensitive shell-style globs:
// '*' matches any run of characters (including '/'), '?' matches any
// single character, and '[...]' matches a character class ('[!...]'
// negates). Unlike path.Match, '*' is not stopped by path separators;
// metric paths are matched as whole strings.

var (
	globMu    sync.Mutex
	globCache = make(map[string]*regexp.Regexp)
)

// matchGlob reports whether name matches the glob pattern.
func matchGlob(name, pattern string) bool {
	globMu.Lock()
	re, ok := globCache[pattern]
	if !ok {
		re = regexp.MustCompile(translateGlob(pattern))
		globCache[pattern] = re
	}
	globMu.Unlock()
	return re.MatchString(name)
}

// translateGlob converts a shell-style glob into an anchored regular
// expression. The translation is total: malformed classes (an unclosed
// '[') are treated as literal characters, so the result always compiles.
func translateGlob(pattern string) string {
	var b strings.Builder
	b.WriteString(`\A`)
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			end := classEnd(runes, i)
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := string(runes[i+1 : end])
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			// escape regex metacharacters that are not class syntax
			class = strings.ReplaceAll(class, `\`, `\\`)
			b.WriteString("[" + class + "]")
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`\z`)
	return b.String()
}

// classEnd returns the index of the closing ']' for a class opened at
// start, or -1 when the class is unterminated. A ']' immediately after
// the opening '[' (or after '[!') is part of the class.
func classEnd(runes []rune, start int) int {
	i := start + 1
	if i < len(runes) && runes[i] == '!' {
		i++
	}
	if i < len(runes) && runes[i] == ']' {
		i++
	}
	for ; i < len(runes); i++ {
		if runes[i] == ']' {
			return i
		}
	}
	return -1
}
