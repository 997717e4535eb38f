package capture

import (
	"errors"
	"fmt"
	"math"
	netUrl "net/url"
	"strconv"
	"strings"
)

var (
	// ErrInvalidInput marks request errors. They are never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBackendFailure marks browser and storage errors.
	ErrBackendFailure = errors.New("backend failure")
)

const (
	MsgNoURL        = "No url query specified."
	MsgInvalidURL   = "Invalid url query specified."
	MsgInvalidRatio = "Invalid ratio query specified."
)

// InputError carries the message that is returned to the caller as is.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func backendFailure(stage string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBackendFailure, stage, err)
}

// ValidateURL accepts absolute urls with a scheme and a host.
func ValidateURL(raw string) error {
	if raw == "" {
		return &InputError{Msg: MsgNoURL}
	}
	u, err := netUrl.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &InputError{Msg: MsgInvalidURL}
	}
	return nil
}

// ParseRatio parses the device pixel ratio. Empty means 1.
func ParseRatio(raw string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 1, nil
	}
	r, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, &InputError{Msg: MsgInvalidRatio}
	}
	return r, nil
}

// ParseForce treats strconv.ParseBool values literally and any other non-empty
// value as true.
func ParseForce(raw string) bool {
	if raw == "" {
		return false
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return true
}
