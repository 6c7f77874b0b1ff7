package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
)

// RunMailboxMapperTests exercises the directory contract.
func RunMailboxMapperTests(t *testing.T, factory Factory) {
	ctx := context.Background()

	t.Run("CreateAssignsIdentityAndUIDValidity", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))
		require.NotZero(t, mbox.UIDValidity)

		found, err := s.Mailboxes().FindByID(ctx, mbox.ID)
		require.NoError(t, err)
		require.Equal(t, mbox.Path, found.Path)
		require.Equal(t, mbox.UIDValidity, found.UIDValidity)
	})

	t.Run("CreateFailsOnPathCollision", func(t *testing.T) {
		s := factory(t)

		mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		err := s.Mailboxes().Create(ctx, &store.Mailbox{Path: imap.PersonalPath("alice", imap.Inbox)})
		require.ErrorIs(t, err, store.ErrMailboxExists)

		// Same name under another principal is a different path.
		mustCreateMailbox(t, ctx, s, imap.PersonalPath("bob", imap.Inbox))
	})

	t.Run("FindFailsWhenAbsent", func(t *testing.T) {
		s := factory(t)

		_, err := s.Mailboxes().FindByPath(ctx, imap.PersonalPath("alice", "nope"))
		require.ErrorIs(t, err, store.ErrMailboxNotFound)

		_, err = s.Mailboxes().FindByID(ctx, 4242)
		require.ErrorIs(t, err, store.ErrMailboxNotFound)
	})

	t.Run("FindByPathLike", func(t *testing.T) {
		s := factory(t)

		mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "INBOX"))
		mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "INBOX.work"))
		mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "Drafts"))
		mustCreateMailbox(t, ctx, s, imap.PersonalPath("bob", "INBOX"))

		matches, err := s.Mailboxes().FindByPathLike(ctx, imap.NewMailboxQuery(imap.NamespacePersonal, "alice", "IN%"))
		require.NoError(t, err)
		require.Len(t, matches, 1)
		require.Equal(t, "INBOX", matches[0].Path.Name)

		// '?' is literal, not a wildcard.
		matches, err = s.Mailboxes().FindByPathLike(ctx, imap.NewMailboxQuery(imap.NamespacePersonal, "alice", "INB?X"))
		require.NoError(t, err)
		require.Empty(t, matches)

		matches, err = s.Mailboxes().FindByPathLike(ctx, imap.NewMailboxQuery(imap.NamespacePersonal, "alice", "%"))
		require.NoError(t, err)
		require.Len(t, matches, 2)
	})

	t.Run("List", func(t *testing.T) {
		s := factory(t)

		mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "INBOX"))
		mustCreateMailbox(t, ctx, s, imap.PersonalPath("bob", "INBOX"))
		mustCreateMailbox(t, ctx, s, imap.NewMailboxPath(imap.NamespaceShared, "", "team"))

		all, err := s.Mailboxes().List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
	})

	t.Run("HasChildren", func(t *testing.T) {
		s := factory(t)

		inbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "INBOX"))
		mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "INBOX.work"))

		hasChildren, err := s.Mailboxes().HasChildren(ctx, inbox, imap.DefaultDelimiter)
		require.NoError(t, err)
		require.True(t, hasChildren)

		// A child under another namespace does not count.
		other := mustCreateMailbox(t, ctx, s, imap.NewMailboxPath(imap.NamespaceShared, "", "INBOX"))

		hasChildren, err = s.Mailboxes().HasChildren(ctx, other, imap.DefaultDelimiter)
		require.NoError(t, err)
		require.False(t, hasChildren)
	})

	t.Run("DeleteRemovesEntry", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "Trash"))
		mustAdd(t, ctx, s, mbox.ID, newTestMessage())

		require.NoError(t, s.Mailboxes().Delete(ctx, mbox))

		_, err := s.Mailboxes().FindByPath(ctx, mbox.Path)
		require.ErrorIs(t, err, store.ErrMailboxNotFound)

		_, err = s.Mailboxes().FindByID(ctx, mbox.ID)
		require.ErrorIs(t, err, store.ErrMailboxNotFound)
	})

	t.Run("UpdateACL", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "INBOX"))
		alice := imap.NewUserEntryKey("alice")

		require.NoError(t, s.Mailboxes().UpdateACL(ctx, mbox.ID, imap.ACLCommand{Key: alice, Mode: imap.ACLAdd, Rights: imap.NewRights("lr")}))
		require.NoError(t, s.Mailboxes().UpdateACL(ctx, mbox.ID, imap.ACLCommand{Key: alice, Mode: imap.ACLAdd, Rights: imap.NewRights("w")}))

		found, err := s.Mailboxes().FindByID(ctx, mbox.ID)
		require.NoError(t, err)
		require.Equal(t, imap.NewRights("lrw"), found.ACL[alice])

		// Remove of never-present rights is a no-op, not an error.
		require.NoError(t, s.Mailboxes().UpdateACL(ctx, mbox.ID, imap.ACLCommand{Key: alice, Mode: imap.ACLRemove, Rights: imap.NewRights("ax")}))

		// Replace with empty rights prunes the entry.
		require.NoError(t, s.Mailboxes().UpdateACL(ctx, mbox.ID, imap.ACLCommand{Key: alice, Mode: imap.ACLReplace, Rights: imap.NewRights("")}))

		found, err = s.Mailboxes().FindByID(ctx, mbox.ID)
		require.NoError(t, err)
		require.Empty(t, found.ACL)
	})

	t.Run("ResetACL", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "INBOX"))

		require.NoError(t, s.Mailboxes().UpdateACL(ctx, mbox.ID, imap.ACLCommand{Key: imap.NewUserEntryKey("alice"), Mode: imap.ACLAdd, Rights: imap.NewRights("lrwa")}))

		acl := imap.NewACL()
		acl[imap.NewGroupEntryKey("staff")] = imap.NewRights("lr")
		acl[imap.NewUserEntryKey("bob").Negated()] = imap.NewRights("w")

		require.NoError(t, s.Mailboxes().ResetACL(ctx, mbox.ID, acl))

		found, err := s.Mailboxes().FindByID(ctx, mbox.ID)
		require.NoError(t, err)
		require.Len(t, found.ACL, 2)
		require.Equal(t, imap.NewRights("lr"), found.ACL[imap.NewGroupEntryKey("staff")])
		require.Equal(t, imap.NewRights("w"), found.ACL[imap.NewUserEntryKey("bob").Negated()])
	})
}
