package store

import "errors"

var (
	ErrMailboxNotFound    = errors.New("no such mailbox")
	ErrMailboxExists      = errors.New("a mailbox with that path already exists")
	ErrMessageNotFound    = errors.New("no such message")
	ErrAttachmentNotFound = errors.New("no such attachment")
	ErrInvalidArgument    = errors.New("invalid argument")
)

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrMailboxNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrAttachmentNotFound)
}
