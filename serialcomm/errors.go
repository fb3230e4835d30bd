// serialcomm/errors.go
package serialcomm

import (
	"errors"
	"fmt"
)

// ErrorClass groups bridge failures by how far they reach.
type ErrorClass int

const (
	// ClassSetup covers device open and configuration writes; the bridge
	// never starts.
	ClassSetup ErrorClass = iota
	// ClassDeviceIO covers reads and writes after setup; the bridge stops.
	ClassDeviceIO
	// ClassSink covers the statistics file; only statistics capture stops.
	ClassSink
	// ClassChannel covers a producer finding its consumer gone.
	ClassChannel
)

func (c ErrorClass) String() string {
	switch c {
	case ClassSetup:
		return "setup"
	case ClassDeviceIO:
		return "device_io"
	case ClassSink:
		return "sink"
	case ClassChannel:
		return "channel"
	default:
		return "unknown"
	}
}

var (
	ErrDispatcherGone = errors.New("outbound dispatcher gone")
	ErrSinkGone       = errors.New("statistics sink gone")
	ErrLinkClosed     = errors.New("device link closed")
)

// LinkError records which bridge component failed and during what.
type LinkError struct {
	Class     ErrorClass
	Component string
	Op        string
	Err       error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Op, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

func newLinkError(class ErrorClass, component, op string, err error) *LinkError {
	return &LinkError{Class: class, Component: component, Op: op, Err: err}
}

// Class returns the class of the outermost LinkError in err's chain.
func Class(err error) (ErrorClass, bool) {
	var le *LinkError
	if errors.As(err, &le) {
		return le.Class, true
	}
	return 0, false
}

func IsSetup(err error) bool {
	c, ok := Class(err)
	return ok && c == ClassSetup
}

func IsDeviceIO(err error) bool {
	c, ok := Class(err)
	return ok && c == ClassDeviceIO
}

func IsSink(err error) bool {
	c, ok := Class(err)
	return ok && c == ClassSink
}
