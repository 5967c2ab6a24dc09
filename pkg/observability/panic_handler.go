package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// PanicError is a recovered panic converted to an error
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// RecoverToError converts a recovered panic value into a *PanicError carrying the stack
// of the panicking goroutine. It returns nil when r is nil.
//
// Usage:
//
//	func run() (err error) {
//	    defer func() {
//	        if perr := observability.RecoverToError(recover()); perr != nil {
//	            err = perr
//	        }
//	    }()
//	    ...
//	}
func RecoverToError(r any) *PanicError {
	if r == nil {
		return nil
	}
	return &PanicError{Value: r, Stack: string(debug.Stack())}
}

// RecoverPanic recovers from a panic and logs it with the stack trace. It must be called
// directly in a defer statement; the panic is not re-raised.
func RecoverPanic(logger *logrus.Logger, context string) {
	if r := recover(); r != nil {
		if logger == nil {
			logger = logrus.StandardLogger()
		}
		logger.WithFields(logrus.Fields{
			"panic":   r,
			"stack":   string(debug.Stack()),
			"context": context,
		}).Error("PANIC recovered")
	}
}
