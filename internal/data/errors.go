package data

import "errors"

// Mutation failure taxonomy. Stores wrap these with context via %w; the
// HTTP layer maps them with errors.Is. List/query operations return empty
// results for absent data, never these errors.
var (
	// ErrNotFound: a referenced conversation, message or user is absent.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: the actor lacks the required admin/ownership role.
	ErrForbidden = errors.New("forbidden")

	// ErrNotAMember: the actor is not part of the conversation.
	ErrNotAMember = errors.New("not a member")

	// ErrInvalidState: the mutation would break a structural invariant,
	// e.g. removing the last admin of a group.
	ErrInvalidState = errors.New("invalid state")
)
