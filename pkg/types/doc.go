// Package types defines the value types shared by the memory driver core,
// its request framework and the kernel collaborators: minor device numbers,
// scatter/gather requests, control payloads, and the typed error model.
//
// Errors carry a stable ErrKind so callers branch on category rather than
// text. Every kind except ErrKindFatal is returned to the requesting process
// as an Errno; a fatal error means a broken invariant and the serving loop
// terminates the driver.
//
//	if errors.Is(err, types.ErrNoDevice) {
//	    // reply ENXIO
//	}
package types
