package merge

import "fmt"

// InvalidParameterError reports a merge request that cannot be executed:
// identical ids, or an id that resolves to no patient. Nothing has been
// written when it is returned.
type InvalidParameterError struct {
	msg string
}

func (e *InvalidParameterError) Error() string { return e.msg }

func invalidParamf(format string, args ...interface{}) *InvalidParameterError {
	return &InvalidParameterError{msg: fmt.Sprintf(format, args...)}
}

// IntegrityError reports a caller bug: reconciliation invoked for a patient
// with no additional-data rows at all.
type IntegrityError struct {
	msg string
}

func (e *IntegrityError) Error() string { return e.msg }

func integrityf(format string, args ...interface{}) *IntegrityError {
	return &IntegrityError{msg: fmt.Sprintf(format, args...)}
}
