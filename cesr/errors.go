package cesr

import "errors"

var (
	ErrMalformedFrame = errors.New("cesr: malformed frame")
	ErrSizeMismatch   = errors.New("cesr: frame size field does not match the data")
	ErrUnknownFamily  = errors.New("cesr: unknown version family")
	ErrBadSaid        = errors.New("cesr: said verification failed")
	ErrUnknownCode    = errors.New("cesr: unknown primitive code")
	ErrBadPrimitive   = errors.New("cesr: primitive is not valid qualified base64")
	ErrBadAttachment  = errors.New("cesr: malformed attachment section")
	ErrBadIndex       = errors.New("cesr: signing index out of range")
)
