// Package privatefile refuses to load secrets from files that other users on
// a shared host can read.
package privatefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// worldReadable is the "other" read permission bit.
const worldReadable = 0o004

const unknownName = "<unknown>"

// ErrWorldReadable matches every WorldReadableError via errors.Is.
var ErrWorldReadable = errors.New("private file is world-readable")

// WorldReadableError reports a private file readable by "others".
type WorldReadableError struct {
	Name string
}

func (e *WorldReadableError) Error() string {
	return fmt.Sprintf("%s is world-readable; run chmod o-r on it", e.Name)
}

// Is reports whether target is ErrWorldReadable.
func (e *WorldReadableError) Is(target error) bool {
	return target == ErrWorldReadable
}

// Loader reads a value from a stream.
type Loader[T any] func(r io.Reader) (T, error)

// Decoder reads a stream into v.
type Decoder func(r io.Reader, v any) error

type fileDescriptor interface {
	Fd() uintptr
}

type named interface {
	Name() string
}

// Guard wraps load so that it refuses world-readable files. Streams without a
// file descriptor are passed through unchecked.
func Guard[T any](load Loader[T]) Loader[T] {
	return func(r io.Reader) (T, error) {
		if err := Check(r); err != nil {
			var zero T
			return zero, err
		}
		return load(r)
	}
}

// GuardDecoder is Guard for decoders that fill a destination value.
func GuardDecoder(decode Decoder) Decoder {
	return func(r io.Reader, v any) error {
		if err := Check(r); err != nil {
			return err
		}
		return decode(r, v)
	}
}

// Check returns a WorldReadableError if r is backed by a world-readable file.
// Values that expose no valid file descriptor are not checked.
func Check(r any) error {
	mode, ok, err := statMode(r)
	if !ok {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", displayName(r), err)
	}
	if mode&worldReadable != 0 {
		return &WorldReadableError{Name: displayName(r)}
	}
	return nil
}

// statMode returns the permission bits of the file behind r. ok is false
// when r exposes no valid descriptor. The descriptor is borrowed through
// SyscallConn when available, since Fd puts the file into blocking mode.
func statMode(r any) (mode uint32, ok bool, err error) {
	f, isFile := r.(fileDescriptor)
	if !isFile {
		return 0, false, nil
	}

	if sc, isConn := r.(syscall.Conn); isConn {
		if raw, rawErr := sc.SyscallConn(); rawErr == nil {
			ctrlErr := raw.Control(func(fd uintptr) {
				mode, err = fileMode(r, fd)
			})
			if ctrlErr == nil {
				return mode, true, err
			}
		}
	}

	fd := f.Fd()
	if fd == ^uintptr(0) {
		return 0, false, nil
	}
	mode, err = fileMode(r, fd)
	return mode, true, err
}

// LoadFile opens path and loads it with the guarded loader.
func LoadFile[T any](path string, load Loader[T]) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()

	return Guard(load)(f)
}

func displayName(r any) string {
	if n, ok := r.(named); ok && n.Name() != "" {
		return n.Name()
	}
	return unknownName
}
