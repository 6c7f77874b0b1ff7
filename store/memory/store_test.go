package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tachyon-mail/tachyon/events"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/limits"
	"github.com/tachyon-mail/tachyon/store"
	"github.com/tachyon-mail/tachyon/storetest"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemoryStoreConformance(t *testing.T) {
	storetest.RunAll(t, func(t *testing.T) store.Store {
		s := New()

		t.Cleanup(func() {
			require.NoError(t, s.Close())
		})

		return s
	})
}

func TestMemoryStoreCapabilities(t *testing.T) {
	s := New()
	defer func() { require.NoError(t, s.Close()) }()

	require.True(t, s.Supports(store.CapabilityConcurrentFlagUpdates))
	require.True(t, s.Supports(store.CapabilityPartialFetch))
	require.True(t, s.Supports(store.CapabilityAttachmentOwners))
}

func TestMemoryStoreEvents(t *testing.T) {
	ctx := context.Background()

	s := New()
	defer func() { require.NoError(t, s.Close()) }()

	eventCh := s.AddWatcher(events.MailboxCreated{}, events.MessageAdded{})

	mbox := &store.Mailbox{Path: imap.PersonalPath("alice", imap.Inbox)}
	require.NoError(t, s.Mailboxes().Create(ctx, mbox))

	created, ok := (<-eventCh).(events.MailboxCreated)
	require.True(t, ok)
	require.Equal(t, mbox.ID, created.MailboxID)
	require.Equal(t, mbox.Path, created.Path)

	msg := &store.MailboxMessage{MediaType: "text", SubType: "plain"}

	metadata, err := s.Messages().Add(ctx, mbox.ID, msg)
	require.NoError(t, err)

	added, ok := (<-eventCh).(events.MessageAdded)
	require.True(t, ok)
	require.Equal(t, metadata.UID, added.UID)
	require.Equal(t, msg.MessageID, added.MessageID)

	// The watcher only receives the subscribed types: deleting the mailbox
	// emits MailboxDeleted, which this channel never sees.
	require.NoError(t, s.Mailboxes().Delete(ctx, mbox))

	select {
	case event := <-eventCh:
		t.Fatalf("unexpected event %T", event)

	default:
	}
}

func TestMemoryStoreLimits(t *testing.T) {
	ctx := context.Background()

	s := New(
		WithLimits(limits.NewStorageLimits(1, 2, 100, 100)),
		WithUIDValidityGenerator(imap.NewFixedUIDValidityGenerator(1)),
	)
	defer func() { require.NoError(t, s.Close()) }()

	mbox := &store.Mailbox{Path: imap.PersonalPath("alice", imap.Inbox)}
	require.NoError(t, s.Mailboxes().Create(ctx, mbox))

	err := s.Mailboxes().Create(ctx, &store.Mailbox{Path: imap.PersonalPath("alice", "Archive")})
	require.ErrorIs(t, err, limits.ErrMaxMailboxCountReached)
	require.True(t, limits.IsLimitErr(err))

	for i := 0; i < 2; i++ {
		_, err := s.Messages().Add(ctx, mbox.ID, &store.MailboxMessage{MediaType: "text", SubType: "plain"})
		require.NoError(t, err)
	}

	_, err = s.Messages().Add(ctx, mbox.ID, &store.MailboxMessage{MediaType: "text", SubType: "plain"})
	require.ErrorIs(t, err, limits.ErrMaxMailboxMessageCountReached)

	// The index mapper enforces the same bounds on its insert path.
	err = s.MessageIDs().Save(ctx, &store.MailboxMessage{
		MailboxID: mbox.ID,
		MessageID: imap.NewMessageID(),
		MediaType: "text",
		SubType:   "plain",
	})
	require.ErrorIs(t, err, limits.ErrMaxMailboxMessageCountReached)
}

func TestMemoryStoreUIDValidityGenerator(t *testing.T) {
	ctx := context.Background()

	s := New(WithUIDValidityGenerator(imap.NewFixedUIDValidityGenerator(7)))
	defer func() { require.NoError(t, s.Close()) }()

	mbox := &store.Mailbox{Path: imap.PersonalPath("alice", imap.Inbox)}
	require.NoError(t, s.Mailboxes().Create(ctx, mbox))
	require.Equal(t, imap.UIDValidity(7), mbox.UIDValidity)
}
