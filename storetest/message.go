package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
)

// RunMessageMapperTests exercises the per-mailbox message collection contract.
func RunMessageMapperTests(t *testing.T, factory Factory) {
	ctx := context.Background()

	t.Run("AddAssignsMonotonicUIDs", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		first := mustAdd(t, ctx, s, mbox.ID, newTestMessage())
		second := mustAdd(t, ctx, s, mbox.ID, newTestMessage())
		require.Greater(t, second.UID, first.UID)
		require.Greater(t, second.ModSeq, first.ModSeq)

		// Expunging the last message must not let its UID be reused.
		_, err := s.Messages().UpdateFlags(ctx, mbox.ID, imap.SingleUID(second.UID), imap.NewFlagSet(imap.FlagDeleted), imap.FlagsAdd)
		require.NoError(t, err)

		expunged, err := s.Messages().Expunge(ctx, mbox.ID, imap.SingleUID(second.UID))
		require.NoError(t, err)
		require.Len(t, expunged, 1)

		third := mustAdd(t, ctx, s, mbox.ID, newTestMessage())
		require.Greater(t, third.UID, second.UID)
	})

	t.Run("AddForcesRecentAndCountsUnseen", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		mustAdd(t, ctx, s, mbox.ID, newTestMessage())
		mustAdd(t, ctx, s, mbox.ID, newTestMessage(imap.FlagSeen))

		messages, err := s.Messages().FindInMailbox(ctx, mbox.ID, imap.AllUIDs(), imap.FetchMetadata, 0)
		require.NoError(t, err)
		require.Len(t, messages, 2)

		for _, msg := range messages {
			require.True(t, msg.Flags.ContainsUnchecked(imap.FlagRecentLowerCase))
		}

		count, err := s.Messages().CountMessages(ctx, mbox.ID)
		require.NoError(t, err)
		require.Equal(t, 2, count)

		unseen, err := s.Messages().CountUnseenMessages(ctx, mbox.ID)
		require.NoError(t, err)
		require.Equal(t, 1, unseen)
	})

	t.Run("FindInMailboxSkipsGaps", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		uids := make([]imap.UID, 0, 4)

		for i := 0; i < 4; i++ {
			uids = append(uids, mustAdd(t, ctx, s, mbox.ID, newTestMessage()).UID)
		}

		require.NoError(t, s.Messages().DeleteMessage(ctx, mbox.ID, uids[2]))

		messages, err := s.Messages().FindInMailbox(ctx, mbox.ID, imap.UIDRangeBetween(uids[0], uids[3]), imap.FetchFull, 10)
		require.NoError(t, err)
		require.Equal(t, []imap.UID{uids[0], uids[1], uids[3]}, collectUIDs(messages))

		// Reversed bounds are normalized.
		messages, err = s.Messages().FindInMailbox(ctx, mbox.ID, imap.UIDRangeBetween(uids[3], uids[0]), imap.FetchMetadata, 0)
		require.NoError(t, err)
		require.Len(t, messages, 3)

		// Limit truncates from the low end of the range.
		messages, err = s.Messages().FindInMailbox(ctx, mbox.ID, imap.AllUIDs(), imap.FetchMetadata, 2)
		require.NoError(t, err)
		require.Equal(t, []imap.UID{uids[0], uids[1]}, collectUIDs(messages))
	})

	t.Run("FindInMailboxHydratesByFetchType", func(t *testing.T) {
		s := factory(t)

		if !s.Supports(store.CapabilityPartialFetch) {
			t.Skip("store does not support partial fetch")
		}

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))
		mustAdd(t, ctx, s, mbox.ID, newTestMessage())

		metadata, err := s.Messages().FindInMailbox(ctx, mbox.ID, imap.AllUIDs(), imap.FetchMetadata, 0)
		require.NoError(t, err)
		require.Len(t, metadata, 1)
		require.Empty(t, metadata[0].Header)
		require.Empty(t, metadata[0].Body)
		require.NotZero(t, metadata[0].BodyOctets)

		headers, err := s.Messages().FindInMailbox(ctx, mbox.ID, imap.AllUIDs(), imap.FetchHeaders, 0)
		require.NoError(t, err)
		require.NotEmpty(t, headers[0].Header)
		require.Empty(t, headers[0].Body)

		full, err := s.Messages().FindInMailbox(ctx, mbox.ID, imap.AllUIDs(), imap.FetchFull, 0)
		require.NoError(t, err)
		require.NotEmpty(t, full[0].Header)
		require.NotEmpty(t, full[0].Body)
	})

	t.Run("UpdateFlagsBumpsOnlyChangedMessages", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		plain := mustAdd(t, ctx, s, mbox.ID, newTestMessage())
		seen := mustAdd(t, ctx, s, mbox.ID, newTestMessage(imap.FlagSeen))

		updates, err := s.Messages().UpdateFlags(ctx, mbox.ID, imap.AllUIDs(), imap.NewFlagSet(imap.FlagSeen), imap.FlagsAdd)
		require.NoError(t, err)
		require.Len(t, updates, 2)

		byUID := make(map[imap.UID]imap.UpdatedFlags)

		for _, update := range updates {
			byUID[update.UID] = update
		}

		require.True(t, byUID[plain.UID].Changed())
		require.Greater(t, byUID[plain.UID].ModSeq, plain.ModSeq)

		// The already-seen message is a no-op: the current ModSeq is echoed.
		require.False(t, byUID[seen.UID].Changed())
		require.Equal(t, seen.ModSeq, byUID[seen.UID].ModSeq)

		unseen, err := s.Messages().CountUnseenMessages(ctx, mbox.ID)
		require.NoError(t, err)
		require.Zero(t, unseen)

		// Removing \Seen grows the counter back.
		_, err = s.Messages().UpdateFlags(ctx, mbox.ID, imap.SingleUID(plain.UID), imap.NewFlagSet(imap.FlagSeen), imap.FlagsRemove)
		require.NoError(t, err)

		unseen, err = s.Messages().CountUnseenMessages(ctx, mbox.ID)
		require.NoError(t, err)
		require.Equal(t, 1, unseen)

		// The same round-trip through replace: replacing with \Seen drops
		// the message from the counter, replacing with nothing restores it.
		_, err = s.Messages().UpdateFlags(ctx, mbox.ID, imap.SingleUID(plain.UID), imap.NewFlagSet(imap.FlagSeen), imap.FlagsReplace)
		require.NoError(t, err)

		unseen, err = s.Messages().CountUnseenMessages(ctx, mbox.ID)
		require.NoError(t, err)
		require.Zero(t, unseen)

		_, err = s.Messages().UpdateFlags(ctx, mbox.ID, imap.SingleUID(plain.UID), imap.NewFlagSet(), imap.FlagsReplace)
		require.NoError(t, err)

		unseen, err = s.Messages().CountUnseenMessages(ctx, mbox.ID)
		require.NoError(t, err)
		require.Equal(t, 1, unseen)
	})

	t.Run("UpdateFlagsReplacePreservesRecent", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))
		metadata := mustAdd(t, ctx, s, mbox.ID, newTestMessage())

		updates, err := s.Messages().UpdateFlags(ctx, mbox.ID, imap.SingleUID(metadata.UID), imap.NewFlagSet(imap.FlagFlagged), imap.FlagsReplace)
		require.NoError(t, err)
		require.Len(t, updates, 1)
		require.True(t, updates[0].NewFlags.ContainsUnchecked(imap.FlagRecentLowerCase))
		require.True(t, updates[0].NewFlags.ContainsUnchecked(imap.FlagFlaggedLowerCase))
		require.False(t, updates[0].NewFlags.ContainsUnchecked(imap.FlagSeenLowerCase))
	})

	t.Run("ExpungeRemovesOnlyDeleted", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		keep := mustAdd(t, ctx, s, mbox.ID, newTestMessage())
		doomed := mustAdd(t, ctx, s, mbox.ID, newTestMessage(imap.FlagDeleted))

		expunged, err := s.Messages().Expunge(ctx, mbox.ID, imap.AllUIDs())
		require.NoError(t, err)
		require.Len(t, expunged, 1)
		require.Contains(t, expunged, doomed.UID)
		require.Equal(t, doomed.UID, expunged[doomed.UID].UID)

		messages, err := s.Messages().FindInMailbox(ctx, mbox.ID, imap.AllUIDs(), imap.FetchMetadata, 0)
		require.NoError(t, err)
		require.Equal(t, []imap.UID{keep.UID}, collectUIDs(messages))
	})

	t.Run("DeleteMessageIsIdempotent", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))
		metadata := mustAdd(t, ctx, s, mbox.ID, newTestMessage())

		require.NoError(t, s.Messages().DeleteMessage(ctx, mbox.ID, metadata.UID))
		require.NoError(t, s.Messages().DeleteMessage(ctx, mbox.ID, metadata.UID))

		count, err := s.Messages().CountMessages(ctx, mbox.ID)
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("CopyLeavesSourceIntact", func(t *testing.T) {
		s := factory(t)

		src := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))
		dst := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "Archive"))

		msg := newTestMessage(imap.FlagSeen)
		mustAdd(t, ctx, s, src.ID, msg)

		copied, err := s.Messages().Copy(ctx, dst.ID, msg)
		require.NoError(t, err)
		require.Equal(t, dst.ID, copied.MailboxID)
		require.Equal(t, msg.MessageID, copied.MessageID)
		require.True(t, copied.Flags.ContainsUnchecked(imap.FlagRecentLowerCase))
		require.True(t, copied.Flags.ContainsUnchecked(imap.FlagSeenLowerCase))

		srcCount, err := s.Messages().CountMessages(ctx, src.ID)
		require.NoError(t, err)
		require.Equal(t, 1, srcCount)

		dstCount, err := s.Messages().CountMessages(ctx, dst.ID)
		require.NoError(t, err)
		require.Equal(t, 1, dstCount)
	})

	t.Run("MoveTransfersBetweenMailboxes", func(t *testing.T) {
		s := factory(t)

		src := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))
		dst := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "Archive"))

		msg := newTestMessage()
		mustAdd(t, ctx, s, src.ID, msg)

		moved, err := s.Messages().Move(ctx, dst.ID, msg)
		require.NoError(t, err)
		require.Equal(t, dst.ID, moved.MailboxID)
		require.True(t, moved.Flags.ContainsUnchecked(imap.FlagRecentLowerCase))

		srcCount, err := s.Messages().CountMessages(ctx, src.ID)
		require.NoError(t, err)
		require.Zero(t, srcCount)

		srcUnseen, err := s.Messages().CountUnseenMessages(ctx, src.ID)
		require.NoError(t, err)
		require.Zero(t, srcUnseen)

		dstUnseen, err := s.Messages().CountUnseenMessages(ctx, dst.ID)
		require.NoError(t, err)
		require.Equal(t, 1, dstUnseen)

		// Moving a projection that no longer exists fails.
		_, err = s.Messages().Move(ctx, src.ID, msg)
		require.ErrorIs(t, err, store.ErrMessageNotFound)
	})

	t.Run("LastUIDAndHighestModSeq", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		lastUID, err := s.Messages().GetLastUID(ctx, mbox.ID)
		require.NoError(t, err)
		require.Zero(t, lastUID)

		highest, err := s.Messages().GetHighestModSeq(ctx, mbox.ID)
		require.NoError(t, err)
		require.Zero(t, highest)

		metadata := mustAdd(t, ctx, s, mbox.ID, newTestMessage())

		lastUID, err = s.Messages().GetLastUID(ctx, mbox.ID)
		require.NoError(t, err)
		require.Equal(t, metadata.UID, lastUID)

		highest, err = s.Messages().GetHighestModSeq(ctx, mbox.ID)
		require.NoError(t, err)
		require.Equal(t, metadata.ModSeq, highest)

		// Removal does not roll the counters back.
		require.NoError(t, s.Messages().DeleteMessage(ctx, mbox.ID, metadata.UID))

		lastUID, err = s.Messages().GetLastUID(ctx, mbox.ID)
		require.NoError(t, err)
		require.Equal(t, metadata.UID, lastUID)
	})

	t.Run("ProvidersAreSerializedPerMailbox", func(t *testing.T) {
		s := factory(t)

		first := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))
		second := mustCreateMailbox(t, ctx, s, imap.PersonalPath("bob", imap.Inbox))

		uid, err := s.UIDs().NextUID(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, imap.UID(1), uid)

		uid, err = s.UIDs().NextUID(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, imap.UID(2), uid)

		// Mailboxes allocate independently.
		uid, err = s.UIDs().NextUID(ctx, second.ID)
		require.NoError(t, err)
		require.Equal(t, imap.UID(1), uid)

		modSeq, err := s.ModSeqs().NextModSeq(ctx, first.ID)
		require.NoError(t, err)

		highest, err := s.ModSeqs().HighestModSeq(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, modSeq, highest)
	})
}
