package limits

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/tachyon-mail/tachyon/imap"
)

// Storage contains configurable upper bounds that can be enforced by the
// storage engine.
type Storage struct {
	maxMailboxCount           int64
	maxMessageCountPerMailbox int64
	maxUIDValidity            int64
	maxUID                    int64
}

func (s Storage) CheckMailboxCount(mailboxCount int) error {
	if int64(mailboxCount) >= s.maxMailboxCount {
		return ErrMaxMailboxCountReached
	}

	return nil
}

func (s Storage) CheckMailboxMessageCount(existingCount int, newCount int) error {
	nextMessageCount := int64(existingCount) + int64(newCount)

	if nextMessageCount > s.maxMessageCountPerMailbox || nextMessageCount < int64(existingCount) {
		return ErrMaxMailboxMessageCountReached
	}

	return nil
}

func (s Storage) CheckUIDCount(existingUID imap.UID, newCount int) error {
	nextUIDCount := int64(existingUID) + int64(newCount)

	if nextUIDCount > s.maxUID || nextUIDCount < int64(existingUID) {
		return ErrMaxUIDReached
	}

	return nil
}

func (s Storage) CheckUIDValidity(value imap.UIDValidity) error {
	if int64(value) >= s.maxUIDValidity {
		return ErrMaxUIDValidityReached
	}

	return nil
}

func DefaultLimits() Storage {
	var maxInt int64
	if bits.UintSize == 64 {
		maxInt = math.MaxUint32
	} else {
		maxInt = math.MaxInt32
	}

	return Storage{
		maxMailboxCount:           maxInt,
		maxMessageCountPerMailbox: maxInt,
		maxUIDValidity:            maxInt,
		maxUID:                    maxInt,
	}
}

func NewStorageLimits(maxMailboxCount uint32, maxMessageCount uint32, maxUID imap.UID, maxUIDValidity imap.UIDValidity) Storage {
	return Storage{
		maxMailboxCount:           int64(maxMailboxCount),
		maxMessageCountPerMailbox: int64(maxMessageCount),
		maxUIDValidity:            int64(maxUIDValidity),
		maxUID:                    int64(maxUID),
	}
}

var ErrMaxMailboxCountReached = fmt.Errorf("max mailbox count reached")
var ErrMaxMailboxMessageCountReached = fmt.Errorf("max mailbox message count reached")
var ErrMaxUIDReached = fmt.Errorf("max UID value reached")
var ErrMaxUIDValidityReached = fmt.Errorf("max UIDValidity value reached")

func IsLimitErr(err error) bool {
	return errors.Is(err, ErrMaxUIDValidityReached) ||
		errors.Is(err, ErrMaxMailboxCountReached) ||
		errors.Is(err, ErrMaxUIDReached) ||
		errors.Is(err, ErrMaxMailboxMessageCountReached)
}
