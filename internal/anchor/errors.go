package anchor

import "errors"

var (
	// ErrDuplicateAnchor indicates a registration against an existing id.
	ErrDuplicateAnchor = errors.New("anchor: already registered")
	// ErrNotFound indicates an unknown anchor id.
	ErrNotFound = errors.New("anchor: not found")
	// ErrInvalidAttribute indicates an attribute outside its documented range.
	ErrInvalidAttribute = errors.New("anchor: invalid attribute")
	// ErrInvalidQuote indicates a malformed quote submission.
	ErrInvalidQuote = errors.New("anchor: invalid quote")
	// ErrInvalidStrategyWeights indicates unusable custom strategy weights.
	ErrInvalidStrategyWeights = errors.New("anchor: invalid strategy weights")
	// ErrNoEligibleAnchor is the recoverable outcome of filtering away every
	// candidate; callers surface it or retry later, never treat it as fatal.
	ErrNoEligibleAnchor = errors.New("anchor: no eligible anchor")
)
