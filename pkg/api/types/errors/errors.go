package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorResponse is the body the service sends with non-2xx statuses.
type ErrorResponse struct {
	Message ErrorMessage `json:"message"`
}

// ErrorMessage explains a failure to the caller. Reason says what went
// wrong, Advice what to do about it, See where to read more.
type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`
	See    string `json:"see,omitempty"`
	Cause  error  `json:"-"`
}

// Reasonf builds an ErrorMessage from a format string.
func Reasonf(format string, args ...any) ErrorMessage {
	return ErrorMessage{Reason: fmt.Sprintf(format, args...)}
}

// CausedBy returns a copy of the message wrapping err.
func (em ErrorMessage) CausedBy(err error) ErrorMessage {
	em.Cause = err
	return em
}

func (em *ErrorMessage) UnmarshalJSON(bytes []byte) error {
	f := new(struct {
		Reason *string `json:"reason"`
		Advice *string `json:"advice,omitempty"`
		See    *string `json:"see,omitempty"`
	})
	if err := json.Unmarshal(bytes, f); err != nil {
		return err
	}

	if f.Reason == nil {
		return fmt.Errorf(`required field missing: "reason"`)
	}
	em.Reason = *f.Reason

	if f.Advice != nil {
		em.Advice = *f.Advice
	}
	if f.See != nil {
		em.See = *f.See
	}

	return nil
}

func (em ErrorMessage) String() string {
	lines := []string{em.Reason}
	if em.Advice != "" {
		lines = append(lines, em.Advice)
	}
	if em.See != "" {
		lines = append(lines, "see: "+em.See)
	}
	if em.Cause != nil {
		lines = append(lines, " caused by:"+em.Cause.Error())
	}
	return strings.Join(lines, "\n")
}

func (em ErrorMessage) Error() string {
	return em.String()
}

func (em ErrorMessage) Unwrap() error {
	return em.Cause
}
