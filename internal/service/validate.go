package service

import (
	"strings"
	"unicode/utf8"
)

const (
	handleMinLen         = 3
	handleMaxLen         = 24
	loginSecretMinLen    = 1
	registerSecretMinLen = 8
	secretMaxLen         = 72
	messageMaxLen        = 500
	roomNameMinLen       = 2
	roomNameMaxLen       = 40
	roomTagMaxLen        = 24
	replyNameMaxLen      = 60
)

// textField trims s and checks its length in runes.
func textField(field, s string, min, max int) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n < min || n > max {
		return "", invalid(field, "must be %d-%d characters", min, max)
	}
	return s, nil
}

func secretField(field, s string, min int) error {
	n := utf8.RuneCountInString(s)
	if n < min || n > secretMaxLen {
		return invalid(field, "must be %d-%d characters", min, secretMaxLen)
	}
	return nil
}
