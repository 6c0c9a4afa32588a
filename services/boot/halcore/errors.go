package halcore

import "errors"

// ErrOutOfRange is returned for flash accesses outside the device.
var ErrOutOfRange = errors.New("out_of_range")
