package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// HumanizeCode turns a machine code like "foo_bar-baz" into "Foo Bar Baz".
func HumanizeCode(code string) string {
	fields := strings.FieldsFunc(code, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})
	for i, f := range fields {
		fields[i] = CapitalizeFirst(f)
	}
	return strings.Join(fields, " ")
}

// CapitalizeFirst upper-cases the first rune and leaves the rest untouched.
func CapitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
