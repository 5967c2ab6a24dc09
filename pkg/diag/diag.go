package diag

import (
	"fmt"
	"strconv"
)

// Kind is the severity of a diagnostic
type Kind int

const (
	Error Kind = iota
	Warning
)

func (k Kind) String() string {
	switch k {
	case Error:
		return "ERROR"
	case Warning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// Location identifies where a diagnostic or configuration value came from
type Location interface {
	DisplayString() string
}

// SimpleLocation is a file position. Line and Column are 1-based; zero means absent.
type SimpleLocation struct {
	File   string
	Line   int
	Column int
}

// DisplayString renders file:line:column, omitting absent parts
func (l SimpleLocation) DisplayString() string {
	s := l.File
	if s == "" {
		s = "<input>"
	}
	if l.Line > 0 {
		s += ":" + strconv.Itoa(l.Line)
		if l.Column > 0 {
			s += ":" + strconv.Itoa(l.Column)
		}
	}
	return s
}

type unknownLocation struct{}

func (unknownLocation) DisplayString() string { return "<unknown>" }

// UnknownLocation is returned whenever no location was recorded
var UnknownLocation Location = unknownLocation{}

// Diag is a single error or warning. The zero value is not useful; use Errorf or Warningf.
type Diag struct {
	kind     Kind
	location Location
	message  string
}

// New creates a diagnostic of the given kind
func New(kind Kind, loc Location, message string) Diag {
	if loc == nil {
		loc = UnknownLocation
	}
	return Diag{kind: kind, location: loc, message: message}
}

// Errorf creates an error diagnostic
func Errorf(loc Location, format string, args ...interface{}) Diag {
	return New(Error, loc, fmt.Sprintf(format, args...))
}

// Warningf creates a warning diagnostic
func Warningf(loc Location, format string, args ...interface{}) Diag {
	return New(Warning, loc, fmt.Sprintf(format, args...))
}

func (d Diag) Kind() Kind { return d.kind }

func (d Diag) Location() Location {
	if d.location == nil {
		return UnknownLocation
	}
	return d.location
}

func (d Diag) Message() string { return d.message }

// String renders "KIND: location: message"
func (d Diag) String() string {
	return fmt.Sprintf("%s: %s: %s", d.kind, d.Location().DisplayString(), d.message)
}
