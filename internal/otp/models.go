// Package otp holds the challenge model for the disclosure gate and the
// stores over it. Codes are never persisted in clear; only the bcrypt hash
// is stored.
package otp

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	dErrors "github.com/Coritp27/sysga-sub001/pkg/domain-errors"
)

// Method is the dispatch channel a challenge was sent through.
type Method string

const (
	MethodSMS   Method = "sms"
	MethodEmail Method = "email"
)

// Challenge is one issued verification code, scoped to a card number.
// At most one live (unused, unexpired) challenge exists per card number;
// issuing a new one deletes all prior rows first.
type Challenge struct {
	ID          int64
	CardNumber  string
	Destination string
	Method      Method
	CodeHash    string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Attempts    int
	MaxAttempts int
	Used        bool
}

// Live reports whether the challenge can still be redeemed at the given time.
func (c *Challenge) Live(now time.Time) bool {
	return !c.Used && now.Before(c.ExpiresAt)
}

// E.164-ish: a plus sign followed by 1 to 14 digits.
var phonePattern = regexp.MustCompile(`^\+[0-9]{1,14}$`)

// ParseDestination classifies a destination as phone or email and rejects
// anything else. Phone wins when both shapes could apply, since a phone
// number can never contain '@'.
func ParseDestination(raw string) (string, Method, error) {
	destination := strings.TrimSpace(raw)
	if destination == "" {
		return "", "", dErrors.New(dErrors.CodeInvalidDestination, "destination is required")
	}

	if phonePattern.MatchString(destination) {
		return destination, MethodSMS, nil
	}

	if strings.Contains(destination, "@") {
		addr, err := mail.ParseAddress(destination)
		if err != nil || addr.Address != destination {
			return "", "", dErrors.Newf(dErrors.CodeInvalidDestination,
				"%q is not a valid email address", destination)
		}
		return destination, MethodEmail, nil
	}

	return "", "", dErrors.Newf(dErrors.CodeInvalidDestination,
		"%q is neither a phone number (+ followed by digits) nor an email address", destination)
}
