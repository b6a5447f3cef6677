// File: internal/classify/errors.go
package classify

import "fmt"

// TimeoutError reports that the browser layer gave up waiting for a
// navigation or an element.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("timeout during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("timeout during %s", e.Op)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ElementNotFoundError reports that a selector matched nothing on the page.
type ElementNotFoundError struct {
	Selector string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s", e.Selector)
}

// DriverError wraps a low-level failure from the browser driver whose
// cause is only known from its message text.
type DriverError struct {
	Message string
	Err     error
}

func (e *DriverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("driver error: %s: %v", e.Message, e.Err)
	}
	return "driver error: " + e.Message
}

func (e *DriverError) Unwrap() error { return e.Err }
