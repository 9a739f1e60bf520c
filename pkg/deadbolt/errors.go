package deadbolt

import "errors"

// Configuration errors. These surface while wiring handlers, composites and
// annotations; they are never produced by a request evaluation.
var (
	ErrNoDefaultHandler   = errors.New("deadbolt: no default handler configured")
	ErrUnknownHandler     = errors.New("deadbolt: unknown handler key")
	ErrDuplicateHandler   = errors.New("deadbolt: duplicate handler key")
	ErrUnknownComposite   = errors.New("deadbolt: unknown composite constraint")
	ErrDuplicateComposite = errors.New("deadbolt: duplicate composite constraint")
	ErrInvalidAnnotation  = errors.New("deadbolt: invalid constraint annotation")
)

// Evaluation errors. Constraint evaluation reduces all of these to deny.
var (
	ErrInvalidPattern     = errors.New("deadbolt: invalid pattern")
	ErrUnknownPatternType = errors.New("deadbolt: unknown pattern type")
	ErrConstraintPanic    = errors.New("deadbolt: constraint panicked")
)
