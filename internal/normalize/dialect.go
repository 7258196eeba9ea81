package normalize

import (
	"strings"
	"unicode"
)

var literals = map[string]string{
	"True":  "true",
	"False": "false",
	"None":  "null",
}

// FixDialect rewrites Python-style literals into JSON. Outside of strings,
// True/False/None become true/false/null. Single-quoted strings become
// double-quoted strings. Double-quoted strings are copied untouched.
//
// A quote inside a single-quoted string only closes it when the next
// non-space character is a JSON delimiter, so 'Sainsbury's' survives.
func FixDialect(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	rs := []rune(s)
	for i := 0; i < len(rs); {
		c := rs[i]
		switch {
		case c == '"':
			j := scanDouble(rs, i)
			b.WriteString(string(rs[i:j]))
			i = j
		case c == '\'':
			i = writeSingle(&b, rs, i)
		case isIdentStart(c):
			j := i
			for j < len(rs) && isIdent(rs[j]) {
				j++
			}
			word := string(rs[i:j])
			if lit, ok := literals[word]; ok {
				word = lit
			}
			b.WriteString(word)
			i = j
		default:
			b.WriteRune(c)
			i++
		}
	}
	return b.String()
}

// scanDouble returns the index just past the double-quoted string at i.
func scanDouble(rs []rune, i int) int {
	j := i + 1
	for j < len(rs) {
		switch rs[j] {
		case '\\':
			j += 2
			continue
		case '"':
			return j + 1
		}
		j++
	}
	return len(rs)
}

// writeSingle converts the single-quoted string at i and returns the index
// just past it.
func writeSingle(b *strings.Builder, rs []rune, i int) int {
	b.WriteByte('"')
	j := i + 1
	for j < len(rs) {
		c := rs[j]
		switch {
		case c == '\\' && j+1 < len(rs):
			if rs[j+1] == '\'' {
				b.WriteRune('\'')
			} else {
				b.WriteRune(c)
				b.WriteRune(rs[j+1])
			}
			j += 2
			continue
		case c == '\'' && closesString(rs, j+1):
			b.WriteByte('"')
			return j + 1
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(c)
		}
		j++
	}
	b.WriteByte('"')
	return len(rs)
}

func closesString(rs []rune, k int) bool {
	for k < len(rs) && unicode.IsSpace(rs[k]) {
		k++
	}
	if k == len(rs) {
		return true
	}
	switch rs[k] {
	case ',', ':', '}', ']':
		return true
	}
	return false
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdent(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
