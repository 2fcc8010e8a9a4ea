package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidEmail   = errors.New("invalid email")
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrMissingField   = errors.New("missing required field")
)

var (
	emailRegex  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	walletRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateWalletAddress accepts Ethereum style addresses.
func ValidateWalletAddress(address string) error {
	if !walletRegex.MatchString(strings.TrimSpace(address)) {
		return ErrInvalidAddress
	}
	return nil
}

func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return nil
}
