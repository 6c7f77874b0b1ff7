// Package events defines the event stream emitted by the storage engine.
// Watchers receive events asynchronously; the engine never blocks on a slow
// consumer.
package events

import "github.com/tachyon-mail/tachyon/imap"

type Event interface {
	_isEvent()
}

type eventBase struct{}

func (eventBase) _isEvent() {}

type MailboxCreated struct {
	eventBase

	MailboxID imap.InternalMailboxID
	Path      imap.MailboxPath
}

type MailboxDeleted struct {
	eventBase

	MailboxID imap.InternalMailboxID
}

type MessageAdded struct {
	eventBase

	MailboxID imap.InternalMailboxID
	MessageID imap.MessageID
	UID       imap.UID
}

type MessagesExpunged struct {
	eventBase

	MailboxID imap.InternalMailboxID
	UIDs      []imap.UID
}

type FlagsUpdated struct {
	eventBase

	MailboxID imap.InternalMailboxID
	UID       imap.UID
	ModSeq    imap.ModSeq
}
