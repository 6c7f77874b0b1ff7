// Package tachyon implements the persistence and consistency core of a
// multi-user IMAP-style mail store.
package tachyon

import (
	"errors"

	"github.com/tachyon-mail/tachyon/store"
)

// IsMailboxNotFound returns true if the error is store.ErrMailboxNotFound.
func IsMailboxNotFound(err error) bool {
	return errors.Is(err, store.ErrMailboxNotFound)
}

// IsMailboxExists returns true if the error is store.ErrMailboxExists.
func IsMailboxExists(err error) bool {
	return errors.Is(err, store.ErrMailboxExists)
}

// IsMessageNotFound returns true if the error is store.ErrMessageNotFound.
func IsMessageNotFound(err error) bool {
	return errors.Is(err, store.ErrMessageNotFound)
}

// IsAttachmentNotFound returns true if the error is store.ErrAttachmentNotFound.
func IsAttachmentNotFound(err error) bool {
	return errors.Is(err, store.ErrAttachmentNotFound)
}

// IsInvalidArgument returns true if the error is store.ErrInvalidArgument.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, store.ErrInvalidArgument)
}
