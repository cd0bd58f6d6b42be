package flowmap

import "errors"

var (
	// ErrConfiguration is returned for invalid buffer sizes or parameter
	// values. The wrapped message names the offending option.
	ErrConfiguration = errors.New("flowmap: invalid configuration")

	// ErrDevice is returned when an accelerator cannot initialize or cannot
	// attach to the provided GPU device.
	ErrDevice = errors.New("flowmap: device unavailable")

	// ErrClosed is returned by operations on a closed Flowmap.
	ErrClosed = errors.New("flowmap: closed")
)
