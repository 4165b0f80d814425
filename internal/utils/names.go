package utils

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D+`)

// NormalizeName trims a person name and collapses inner whitespace runs to one space.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// OnlyDigits drops every character that is not an ASCII digit.
func OnlyDigits(s string) string {
	return nonDigits.ReplaceAllString(strings.TrimSpace(s), "")
}

func IsDigits(s string) bool {
	return s != "" && OnlyDigits(s) == s
}
