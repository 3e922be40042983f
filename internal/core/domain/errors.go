package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrControlDenied is returned when the controller refuses a control claim.
	ErrControlDenied = errors.New("control denied")
	// ErrNotRegistered is returned when control is requested before broadcast registration.
	ErrNotRegistered = errors.New("not registered for broadcast")
	// ErrPeerDead marks a controller that answered with an unavailable transport status.
	ErrPeerDead = errors.New("controller is dead")
	// ErrSequenceConsumed is yielded when a single-pass sequence is ranged twice.
	ErrSequenceConsumed = errors.New("sequence already consumed")
)

type ConfigurationTypeNotSupportedError struct {
	Type ConfType
}

func (e *ConfigurationTypeNotSupportedError) Error() string {
	return fmt.Sprintf("%s is not supported by this process manager", e.Type)
}

// TemplateError reports a placeholder that could not be substituted.
type TemplateError struct {
	Template string
	Field    string
	Reason   string
}

func (e *TemplateError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("template %q: %s %q", e.Template, e.Reason, e.Field)
	}
	return fmt.Sprintf("template %q: %s", e.Template, e.Reason)
}
