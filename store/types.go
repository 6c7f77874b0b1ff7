package store

import (
	"time"

	"github.com/tachyon-mail/tachyon/imap"
)

// Mailbox is a directory entry. The ID is assigned on creation and stable
// for the mailbox's lifetime; the path is unique within the directory.
type Mailbox struct {
	ID          imap.InternalMailboxID
	Path        imap.MailboxPath
	UIDValidity imap.UIDValidity
	ACL         imap.ACL
}

// Property is one structural message property. Duplicates are allowed and
// insertion order is kept.
type Property struct {
	Namespace string
	LocalName string
	Value     string
}

// MessageAttachment references an attachment from within a message.
type MessageAttachment struct {
	ID        imap.AttachmentID
	ContentID string
	Inline    bool
}

// MailboxMessage is one occurrence of a message inside one mailbox. It is
// exclusively owned by its mailbox; the mailbox-independent identity is
// carried by MessageID. Header, Body and Attachments are hydrated according
// to the fetch type used to load the message.
type MailboxMessage struct {
	MailboxID imap.InternalMailboxID
	UID       imap.UID
	ModSeq    imap.ModSeq
	MessageID imap.MessageID

	Flags        imap.FlagSet
	InternalDate time.Time
	BodyOctets   uint64
	FullOctets   uint64
	MediaType    string
	SubType      string

	Properties  []Property
	Attachments []MessageAttachment

	Header []byte
	Body   []byte
}

// Metadata returns the metadata snapshot of the message, as reported by Add,
// Copy, Move and Expunge.
func (m *MailboxMessage) Metadata() MessageMetadata {
	return MessageMetadata{
		UID:          m.UID,
		ModSeq:       m.ModSeq,
		InternalDate: m.InternalDate,
		BodyOctets:   m.BodyOctets,
		FullOctets:   m.FullOctets,
	}
}

// MessageMetadata is the per-mailbox metadata snapshot of a message.
type MessageMetadata struct {
	UID          imap.UID
	ModSeq       imap.ModSeq
	InternalDate time.Time
	BodyOctets   uint64
	FullOctets   uint64
}

// Attachment is a content-addressed payload. The ID is always derived from
// the payload bytes, so identical payloads share one stored attachment.
type Attachment struct {
	ID        imap.AttachmentID
	MediaType string
	Payload   []byte
}

func NewAttachment(mediaType string, payload []byte) *Attachment {
	return &Attachment{
		ID:        imap.NewAttachmentID(payload),
		MediaType: mediaType,
		Payload:   payload,
	}
}

// Size is derived from the payload; it is never independently settable.
func (a *Attachment) Size() int {
	return len(a.Payload)
}
