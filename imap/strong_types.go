package imap

import (
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
	"github.com/tachyon-mail/tachyon/internal/hash"
)

// InternalMailboxID identifies a mailbox for its whole lifetime. It is
// assigned by the directory on creation and never reused.
type InternalMailboxID uint64

func (i InternalMailboxID) String() string {
	return strconv.FormatUint(uint64(i), 10)
}

// MessageID is the mailbox-independent identity shared by all projections of
// the same message across mailboxes.
type MessageID string

// NewMessageID returns a new random message ID. For debugging purposes, the ID
// starts with the 'msg-' prefix.
func NewMessageID() MessageID {
	return MessageID("msg-" + uuid.NewString())
}

func (m MessageID) ShortID() string {
	const l = 12

	if len(m) < l {
		return string(m)
	}

	return string(m[0:l]) + "..."
}

// AttachmentID is the content address of an attachment payload.
type AttachmentID string

// NewAttachmentID derives the attachment identity from the payload bytes.
// Identical payloads always map to the same ID.
func NewAttachmentID(payload []byte) AttachmentID {
	return AttachmentID(hex.EncodeToString(hash.SHA256(payload)))
}

// UID is a per-mailbox message identifier. UIDs are assigned once, strictly
// increase within a mailbox and are never reused, even after expunge.
type UID uint32

func (u UID) Add(v uint32) UID {
	return UID(uint32(u) + v)
}

// ModSeq is a per-mailbox modification sequence. It strictly increases with
// every mutation of a message projection. Zero is the sentinel reported for
// an empty mailbox and is never assigned.
type ModSeq uint64

func (m ModSeq) Add(v uint64) ModSeq {
	return ModSeq(uint64(m) + v)
}

// UIDValidity is the mailbox generation number. It is bumped whenever UID
// continuity cannot be guaranteed.
type UIDValidity uint32
