// Package profile gates the chat on a stored user profile and validates
// first-run setup input.
package profile

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/sxlabs/sxconsole/internal/api"
	"github.com/sxlabs/sxconsole/internal/log"
)

// Field length limits.
const (
	MaxNameLen     = 80
	MaxLocationLen = 120
	DOBLayout      = "2006-01-02"
)

// Client is the part of the API client used here.
type Client interface {
	Profile(ctx context.Context) (*api.ProfileStatus, error)
	SaveProfile(ctx context.Context, p api.Profile) error
}

// FieldError describes one invalid profile field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// HasProfile reports whether the backend has a profile for the user. An
// unreachable backend does not block the user.
func HasProfile(ctx context.Context, c Client, logger *log.Logger) bool {
	st, err := c.Profile(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("profile check failed, continuing")
		return true
	}
	return st != nil && st.Exists
}

// Normalize trims every field.
func Normalize(p api.Profile) api.Profile {
	return api.Profile{
		Name:     strings.TrimSpace(p.Name),
		DOB:      strings.TrimSpace(p.DOB),
		Location: strings.TrimSpace(p.Location),
	}
}

// Validate checks a normalized profile and returns the first *FieldError.
func Validate(p api.Profile) error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if err := ValidateDOB(p.DOB); err != nil {
		return err
	}
	return ValidateLocation(p.Location)
}

// ValidateName checks the name field.
func ValidateName(s string) error {
	return checkLength("name", strings.TrimSpace(s), MaxNameLen)
}

// ValidateLocation checks the location field.
func ValidateLocation(s string) error {
	return checkLength("location", strings.TrimSpace(s), MaxLocationLen)
}

// ValidateDOB checks that s is a past calendar date in YYYY-MM-DD form.
func ValidateDOB(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return &FieldError{Field: "dob", Message: "is required"}
	}
	d, err := time.Parse(DOBLayout, s)
	if err != nil {
		return &FieldError{Field: "dob", Message: "must be YYYY-MM-DD"}
	}
	if d.After(time.Now()) {
		return &FieldError{Field: "dob", Message: "must not be in the future"}
	}
	return nil
}

func checkLength(field, s string, max int) error {
	n := utf8.RuneCountInString(s)
	switch {
	case n == 0:
		return &FieldError{Field: field, Message: "is required"}
	case n > max:
		return &FieldError{Field: field, Message: "is too long"}
	}
	return nil
}

// Save validates p and stores it on the backend.
func Save(ctx context.Context, c Client, p api.Profile) error {
	p = Normalize(p)
	if err := Validate(p); err != nil {
		return err
	}
	if err := c.SaveProfile(ctx, p); err != nil {
		return errors.Wrap(err, "save profile")
	}
	return nil
}
