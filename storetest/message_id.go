package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
)

// RunMessageIDMapperTests exercises the cross-mailbox index contract.
func RunMessageIDMapperTests(t *testing.T, factory Factory) {
	ctx := context.Background()

	t.Run("SaveAssignsIdentityInMailbox", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		msg := newTestMessage()
		msg.MailboxID = mbox.ID

		require.NoError(t, s.MessageIDs().Save(ctx, msg))
		require.NotZero(t, msg.UID)
		require.NotZero(t, msg.ModSeq)

		mailboxes, err := s.MessageIDs().FindMailboxes(ctx, msg.MessageID)
		require.NoError(t, err)
		require.Equal(t, []imap.InternalMailboxID{mbox.ID}, mailboxes)
	})

	t.Run("SaveFailsOnUnknownMailbox", func(t *testing.T) {
		s := factory(t)

		msg := newTestMessage()
		msg.MailboxID = 4242

		require.ErrorIs(t, s.MessageIDs().Save(ctx, msg), store.ErrMailboxNotFound)
	})

	t.Run("SaveUpsertsExistingProjection", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		msg := newTestMessage()
		msg.MailboxID = mbox.ID
		require.NoError(t, s.MessageIDs().Save(ctx, msg))

		firstUID, firstModSeq := msg.UID, msg.ModSeq

		msg.Flags = imap.NewFlagSet(imap.FlagSeen)
		require.NoError(t, s.MessageIDs().Save(ctx, msg))

		// Same identity in the same mailbox keeps its UID.
		require.Equal(t, firstUID, msg.UID)
		require.Greater(t, msg.ModSeq, firstModSeq)

		count, err := s.Messages().CountMessages(ctx, mbox.ID)
		require.NoError(t, err)
		require.Equal(t, 1, count)

		found, err := s.MessageIDs().Find(ctx, []imap.MessageID{msg.MessageID}, imap.FetchMetadata)
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.True(t, found[0].Flags.ContainsUnchecked(imap.FlagSeenLowerCase))
	})

	t.Run("SaveConcurrentlyUpsertsOnce", func(t *testing.T) {
		s := factory(t)

		if !s.Supports(store.CapabilityConcurrentFlagUpdates) {
			t.Skip("store does not support concurrent flag updates")
		}

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		messageID := imap.NewMessageID()

		const workers = 8

		start := make(chan struct{})

		var wg sync.WaitGroup

		for i := 0; i < workers; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()

				msg := newTestMessage()
				msg.MessageID = messageID
				msg.MailboxID = mbox.ID

				<-start

				require.NoError(t, s.MessageIDs().Save(ctx, msg))
			}()
		}

		close(start)
		wg.Wait()

		// Every save targets the same (identity, mailbox) pair; exactly one
		// projection may survive.
		count, err := s.Messages().CountMessages(ctx, mbox.ID)
		require.NoError(t, err)
		require.Equal(t, 1, count)

		mailboxes, err := s.MessageIDs().FindMailboxes(ctx, messageID)
		require.NoError(t, err)
		require.Equal(t, []imap.InternalMailboxID{mbox.ID}, mailboxes)
	})

	t.Run("CopyInMailbox", func(t *testing.T) {
		s := factory(t)

		src := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))
		dst := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "Archive"))

		msg := newTestMessage()
		mustAdd(t, ctx, s, src.ID, msg)

		copied, err := s.MessageIDs().CopyInMailbox(ctx, dst.ID, msg)
		require.NoError(t, err)
		require.Equal(t, msg.MessageID, copied.MessageID)
		require.True(t, copied.Flags.ContainsUnchecked(imap.FlagRecentLowerCase))

		mailboxes, err := s.MessageIDs().FindMailboxes(ctx, msg.MessageID)
		require.NoError(t, err)
		require.Equal(t, []imap.InternalMailboxID{src.ID, dst.ID}, mailboxes)

		_, err = s.MessageIDs().CopyInMailbox(ctx, 4242, msg)
		require.ErrorIs(t, err, store.ErrMailboxNotFound)
	})

	t.Run("FindReturnsAllProjections", func(t *testing.T) {
		s := factory(t)

		first := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))
		second := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "Archive"))

		msg := newTestMessage()
		mustAdd(t, ctx, s, first.ID, msg)

		_, err := s.MessageIDs().CopyInMailbox(ctx, second.ID, msg)
		require.NoError(t, err)

		other := newTestMessage()
		mustAdd(t, ctx, s, first.ID, other)

		found, err := s.MessageIDs().Find(ctx, []imap.MessageID{msg.MessageID, other.MessageID}, imap.FetchFull)
		require.NoError(t, err)
		require.Len(t, found, 3)

		for _, projection := range found {
			require.NotEmpty(t, projection.Body)
		}

		// Unknown identities simply contribute nothing.
		found, err = s.MessageIDs().Find(ctx, []imap.MessageID{imap.NewMessageID()}, imap.FetchMetadata)
		require.NoError(t, err)
		require.Empty(t, found)
	})

	t.Run("DeleteScopes", func(t *testing.T) {
		s := factory(t)

		first := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))
		second := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "Archive"))

		msg := newTestMessage()
		mustAdd(t, ctx, s, first.ID, msg)

		_, err := s.MessageIDs().CopyInMailbox(ctx, second.ID, msg)
		require.NoError(t, err)

		// Scoped removal leaves the other projection alone.
		require.NoError(t, s.MessageIDs().DeleteIn(ctx, msg.MessageID, []imap.InternalMailboxID{first.ID}))

		mailboxes, err := s.MessageIDs().FindMailboxes(ctx, msg.MessageID)
		require.NoError(t, err)
		require.Equal(t, []imap.InternalMailboxID{second.ID}, mailboxes)

		// Unscoped removal clears the identity everywhere.
		require.NoError(t, s.MessageIDs().Delete(ctx, msg.MessageID))

		mailboxes, err = s.MessageIDs().FindMailboxes(ctx, msg.MessageID)
		require.NoError(t, err)
		require.Empty(t, mailboxes)

		// Unknown identities are a no-op.
		require.NoError(t, s.MessageIDs().Delete(ctx, imap.NewMessageID()))
	})

	t.Run("DeleteAll", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		first := newTestMessage()
		mustAdd(t, ctx, s, mbox.ID, first)

		second := newTestMessage()
		mustAdd(t, ctx, s, mbox.ID, second)

		require.NoError(t, s.MessageIDs().DeleteAll(ctx, map[imap.MessageID][]imap.InternalMailboxID{
			first.MessageID:  {mbox.ID},
			second.MessageID: {mbox.ID},
		}))

		count, err := s.Messages().CountMessages(ctx, mbox.ID)
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("SetFlagsPerMailbox", func(t *testing.T) {
		s := factory(t)

		first := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))
		second := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "Archive"))

		msg := newTestMessage()
		mustAdd(t, ctx, s, first.ID, msg)

		copied, err := s.MessageIDs().CopyInMailbox(ctx, second.ID, msg)
		require.NoError(t, err)

		// Mark the second projection seen so the same command is a change in
		// one mailbox and a no-op in the other.
		_, err = s.MessageIDs().SetFlags(ctx, msg.MessageID, []imap.InternalMailboxID{second.ID}, imap.NewFlagSet(imap.FlagSeen), imap.FlagsAdd)
		require.NoError(t, err)

		seenModSeq, err := s.Messages().GetHighestModSeq(ctx, second.ID)
		require.NoError(t, err)

		updates, err := s.MessageIDs().SetFlags(ctx, msg.MessageID, []imap.InternalMailboxID{first.ID, second.ID}, imap.NewFlagSet(imap.FlagSeen), imap.FlagsAdd)
		require.NoError(t, err)
		require.Len(t, updates, 2)

		require.True(t, updates[first.ID].Changed())
		require.False(t, updates[second.ID].Changed())
		require.Equal(t, seenModSeq, updates[second.ID].ModSeq)
		require.Equal(t, copied.UID, updates[second.ID].UID)

		// An empty mailbox list is a no-op.
		updates, err = s.MessageIDs().SetFlags(ctx, msg.MessageID, nil, imap.NewFlagSet(imap.FlagDraft), imap.FlagsAdd)
		require.NoError(t, err)
		require.Empty(t, updates)
	})

	t.Run("ConcurrentSetFlagsLosesNoUpdates", func(t *testing.T) {
		s := factory(t)

		if !s.Supports(store.CapabilityConcurrentFlagUpdates) {
			t.Skip("store does not support concurrent flag updates")
		}

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		msg := newTestMessage()
		mustAdd(t, ctx, s, mbox.ID, msg)

		const workers = 16

		var wg sync.WaitGroup

		for i := 0; i < workers; i++ {
			wg.Add(1)

			go func(i int) {
				defer wg.Done()

				keyword := imap.NewFlagSet(fmt.Sprintf("$keyword%02d", i))

				_, err := s.MessageIDs().SetFlags(ctx, msg.MessageID, []imap.InternalMailboxID{mbox.ID}, keyword, imap.FlagsAdd)
				require.NoError(t, err)
			}(i)
		}

		wg.Wait()

		found, err := s.MessageIDs().Find(ctx, []imap.MessageID{msg.MessageID}, imap.FetchMetadata)
		require.NoError(t, err)
		require.Len(t, found, 1)

		for i := 0; i < workers; i++ {
			require.True(t, found[0].Flags.Contains(fmt.Sprintf("$keyword%02d", i)))
		}
	})
}
