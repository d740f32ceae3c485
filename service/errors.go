package service

import "errors"

var (
	// ErrNotFound covers both a missing row and a row owned by someone
	// else; the two are deliberately indistinguishable on device paths.
	ErrNotFound = errors.New("recording not found")

	ErrForbidden = errors.New("forbidden")

	ErrEmptyFile = errors.New("empty file")

	// ErrEmptyPatch means no allow-listed field survived the patch.
	ErrEmptyPatch = errors.New("no valid fields to update")

	ErrNotLinked = errors.New("github not linked")

	// ErrNonRetryable marks a dispatch failure that retrying cannot fix,
	// such as a user with no repository selected.
	ErrNonRetryable = errors.New("non-retryable error")
)
