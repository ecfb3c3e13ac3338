package service

import (
	"fmt"
	"unicode/utf8"

	"github.com/Tyrowin/livechat/internal/apperrors"
	"github.com/Tyrowin/livechat/internal/auth"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 50
	PasswordMinLength = 8
	MessageMinLength  = 1
	MessageMaxLength  = 1000
)

// validator collects field errors and converts them into one validation error.
type validator struct {
	err *apperrors.Error
}

func (v *validator) add(field, message string) {
	if v.err == nil {
		v.err = apperrors.Validation("Validation error")
	}
	v.err.WithField(field, message)
}

func (v *validator) length(field, value string, minLen, maxLen int) {
	n := utf8.RuneCountInString(value)
	switch {
	case n < minLen:
		v.add(field, fmt.Sprintf("must be at least %d characters", minLen))
	case maxLen > 0 && n > maxLen:
		v.add(field, fmt.Sprintf("must be at most %d characters", maxLen))
	}
}

func (v *validator) password(field, value string) {
	v.length(field, value, PasswordMinLength, 0)
	if len(value) > auth.MaxPasswordBytes {
		v.add(field, fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes))
	}
}

func (v *validator) required(field, value string) {
	if value == "" {
		v.add(field, "is required")
	}
}

// result returns nil when every check passed.
func (v *validator) result() error {
	if v.err == nil {
		return nil
	}
	return v.err
}
