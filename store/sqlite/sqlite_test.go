package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
	"github.com/tachyon-mail/tachyon/storetest"
)

func TestSQLiteStoreConformance(t *testing.T) {
	storetest.RunAll(t, func(t *testing.T) store.Store {
		s, err := Open(filepath.Join(t.TempDir(), "store.db"))
		require.NoError(t, err)

		t.Cleanup(func() {
			require.NoError(t, s.Close())
		})

		return s
	})
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	s, err := Open(path)
	require.NoError(t, err)

	mbox := &store.Mailbox{Path: imap.PersonalPath("alice", imap.Inbox)}
	require.NoError(t, s.Mailboxes().Create(ctx, mbox))

	msg := &store.MailboxMessage{
		MessageID: imap.NewMessageID(),
		Flags:     imap.NewFlagSet(imap.FlagSeen),
		MediaType: "text",
		SubType:   "plain",
		Header:    []byte("Subject: persisted\r\n\r\n"),
		Body:      []byte("still here"),
	}

	metadata, err := s.Messages().Add(ctx, mbox.ID, msg)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	found, err := s.Mailboxes().FindByPath(ctx, mbox.Path)
	require.NoError(t, err)
	require.Equal(t, mbox.ID, found.ID)
	require.Equal(t, mbox.UIDValidity, found.UIDValidity)

	messages, err := s.Messages().FindInMailbox(ctx, found.ID, imap.AllUIDs(), imap.FetchFull, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, metadata.UID, messages[0].UID)
	require.Equal(t, []byte("still here"), messages[0].Body)
	require.True(t, messages[0].Flags.ContainsUnchecked(imap.FlagSeenLowerCase))

	// Counters survive too: a new message continues the sequence.
	next, err := s.Messages().Add(ctx, found.ID, &store.MailboxMessage{MediaType: "text", SubType: "plain"})
	require.NoError(t, err)
	require.Greater(t, next.UID, metadata.UID)
}

func TestSQLiteSetFlagsKeepsCommittedUpdatesOnError(t *testing.T) {
	ctx := context.Background()

	s, err := Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	mbox := &store.Mailbox{Path: imap.PersonalPath("alice", imap.Inbox)}
	require.NoError(t, s.Mailboxes().Create(ctx, mbox))

	msg := &store.MailboxMessage{MessageID: imap.NewMessageID(), MediaType: "text", SubType: "plain"}
	metadata, err := s.Messages().Add(ctx, mbox.ID, msg)
	require.NoError(t, err)

	// Plant a projection row whose mailbox row is missing so the second
	// mailbox fails after the first one already committed.
	const orphan = imap.InternalMailboxID(4242)

	_, err = s.db.Exec("PRAGMA foreign_keys = OFF")
	require.NoError(t, err)

	_, err = s.db.Exec(
		"INSERT INTO messages (mailbox_id, uid, modseq, message_id, internal_date, body_octets, full_octets, media_type, sub_type) VALUES (?, 1, 1, ?, ?, 0, 0, 'text', 'plain')",
		orphan, msg.MessageID, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	_, err = s.db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	updates, err := s.MessageIDs().SetFlags(ctx, msg.MessageID, []imap.InternalMailboxID{mbox.ID, orphan}, imap.NewFlagSet(imap.FlagSeen), imap.FlagsAdd)
	require.ErrorIs(t, err, store.ErrMailboxNotFound)

	// The first mailbox committed before the failure; its update is in the
	// result and durable in the store.
	require.Contains(t, updates, mbox.ID)
	require.True(t, updates[mbox.ID].Changed())
	require.Equal(t, metadata.UID, updates[mbox.ID].UID)

	messages, err := s.Messages().FindInMailbox(ctx, mbox.ID, imap.SingleUID(metadata.UID), imap.FetchMetadata, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.True(t, messages[0].Flags.ContainsUnchecked(imap.FlagSeenLowerCase))
}
