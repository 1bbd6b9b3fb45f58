package types

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindNoDevice   ErrKind = iota // minor device number out of range
	ErrKindInvalid                   // bad argument, wrong device for the operation
	ErrKindPermission                // refused by policy (RAM disk already created, grant access)
	ErrKindNoMemory                  // physical allocation failed
	ErrKindNotTTY                    // control code not understood by this device
	ErrKindFatal                     // broken invariant; the driver process must terminate
)

// String returns the short name of the kind.
func (k ErrKind) String() string {
	switch k {
	case ErrKindNoDevice:
		return "no-device"
	case ErrKindInvalid:
		return "invalid"
	case ErrKindPermission:
		return "permission"
	case ErrKindNoMemory:
		return "no-memory"
	case ErrKindNotTTY:
		return "not-tty"
	case ErrKindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so a detailed error satisfies
// errors.Is against the sentinel of its category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels commonly returned by implementations.
var (
	// ErrNoDevice indicates a minor device number outside the registry.
	ErrNoDevice = &Error{Kind: ErrKindNoDevice, Msg: "no such device"}
	// ErrInvalid indicates an invalid argument or an operation on the wrong device.
	ErrInvalid = &Error{Kind: ErrKindInvalid, Msg: "invalid argument"}
	// ErrPermission indicates the operation is refused by policy.
	ErrPermission = &Error{Kind: ErrKindPermission, Msg: "permission denied"}
	// ErrNoMemory indicates the physical memory allocator could not satisfy a request.
	ErrNoMemory = &Error{Kind: ErrKindNoMemory, Msg: "out of memory"}
	// ErrNotTTY indicates a control code the device does not implement.
	ErrNotTTY = &Error{Kind: ErrKindNotTTY, Msg: "inappropriate ioctl for device"}
	// ErrFatal indicates a broken invariant the driver cannot continue past.
	ErrFatal = &Error{Kind: ErrKindFatal, Msg: "fatal driver error"}
)

// Errorf builds an error of the given kind with a formatted message.
// A %w verb in format keeps its operand in the chain.
func Errorf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Fatal marks cause as a process-terminating failure.
func Fatal(msg string, cause error) *Error {
	return &Error{Kind: ErrKindFatal, Msg: msg, Err: cause}
}

// IsFatal reports whether err (or anything it wraps) is a fatal driver error.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrKind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return 0, false
}

// -----------------------------------------------------------------------------
// Wire status codes
// -----------------------------------------------------------------------------

// Errno is the status carried in a reply message. Zero is success; failures
// are negative, following the microkernel's convention.
type Errno int32

const (
	OK     Errno = 0
	EPERM  Errno = -1
	EIO    Errno = -5
	ENXIO  Errno = -6
	ENOMEM Errno = -12
	EINVAL Errno = -22
	ENOTTY Errno = -25
)

// String returns the symbolic name of the status.
func (e Errno) String() string {
	switch e {
	case OK:
		return "OK"
	case EPERM:
		return "EPERM"
	case EIO:
		return "EIO"
	case ENXIO:
		return "ENXIO"
	case ENOMEM:
		return "ENOMEM"
	case EINVAL:
		return "EINVAL"
	case ENOTTY:
		return "ENOTTY"
	default:
		return fmt.Sprintf("errno(%d)", int32(e))
	}
}

// ErrnoOf maps an error to the status reported to the caller. Errors outside
// the typed hierarchy report EIO.
func ErrnoOf(err error) Errno {
	if err == nil {
		return OK
	}
	kind, ok := KindOf(err)
	if !ok {
		return EIO
	}
	switch kind {
	case ErrKindNoDevice:
		return ENXIO
	case ErrKindInvalid:
		return EINVAL
	case ErrKindPermission:
		return EPERM
	case ErrKindNoMemory:
		return ENOMEM
	case ErrKindNotTTY:
		return ENOTTY
	default:
		return EIO
	}
}
