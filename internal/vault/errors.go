package vault

import "errors"

// ErrValidation indicates a request was rejected before touching storage,
// typically because a required field is missing. The workflow error node
// keys off this to produce a corrective hint.
var ErrValidation = errors.New("validation error")
