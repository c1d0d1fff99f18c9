package event

import "errors"

var (
	ErrBadJSON          = errors.New("event: body is not valid JSON")
	ErrUnknownEventType = errors.New("event: unknown event type")
	ErrBadSequence      = errors.New("event: sequence number is not lowercase hex")
	ErrSchemaConflict   = errors.New("event: schema does not follow the $id said convention")
	ErrBadEdge          = errors.New("event: malformed edge section")
)
