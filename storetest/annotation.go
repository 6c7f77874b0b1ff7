package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
)

// RunAnnotationMapperTests exercises the hierarchical annotation contract.
func RunAnnotationMapperTests(t *testing.T, factory Factory) {
	ctx := context.Background()

	t.Run("InsertUpsertsNormalizedKeys", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		require.NoError(t, s.Annotations().Insert(ctx, mbox.ID, imap.NewAnnotation("/Private/Comment", "first")))
		require.NoError(t, s.Annotations().Insert(ctx, mbox.ID, imap.NewAnnotation("/private/comment", "second")))

		count, err := s.Annotations().Count(ctx, mbox.ID)
		require.NoError(t, err)
		require.Equal(t, 1, count)

		annotations, err := s.Annotations().GetByKeys(ctx, mbox.ID, imap.NewAnnotationKey("/PRIVATE/COMMENT"))
		require.NoError(t, err)
		require.Len(t, annotations, 1)
		require.Equal(t, "second", annotations[0].Value)
	})

	t.Run("InsertRejectsNilAndEmptyKey", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		require.ErrorIs(t, s.Annotations().Insert(ctx, mbox.ID, imap.NewNilAnnotation("/private/comment")), store.ErrInvalidArgument)
		require.ErrorIs(t, s.Annotations().Insert(ctx, mbox.ID, imap.NewAnnotation("", "value")), store.ErrInvalidArgument)

		count, err := s.Annotations().Count(ctx, mbox.ID)
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("InsertFailsOnUnknownMailbox", func(t *testing.T) {
		s := factory(t)

		err := s.Annotations().Insert(ctx, 4242, imap.NewAnnotation("/private/comment", "value"))
		require.ErrorIs(t, err, store.ErrMailboxNotFound)
	})

	t.Run("DeleteAnnotationIsIdempotent", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		require.NoError(t, s.Annotations().Insert(ctx, mbox.ID, imap.NewAnnotation("/private/comment", "value")))
		require.NoError(t, s.Annotations().DeleteAnnotation(ctx, mbox.ID, imap.NewAnnotationKey("/private/comment")))
		require.NoError(t, s.Annotations().DeleteAnnotation(ctx, mbox.ID, imap.NewAnnotationKey("/private/comment")))

		exists, err := s.Annotations().Exists(ctx, mbox.ID, imap.NewAnnotation("/private/comment", ""))
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("AnnotationsAreScopedPerMailbox", func(t *testing.T) {
		s := factory(t)

		first := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))
		second := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", "Archive"))

		require.NoError(t, s.Annotations().Insert(ctx, first.ID, imap.NewAnnotation("/private/comment", "value")))

		annotations, err := s.Annotations().GetAll(ctx, second.ID)
		require.NoError(t, err)
		require.Empty(t, annotations)
	})

	t.Run("GetByKeysDepth", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		for key, value := range map[string]string{
			"/private/comment":           "root",
			"/private/comment/user":      "child",
			"/private/comment/user/deep": "grandchild",
			"/private/other":             "sibling",
		} {
			require.NoError(t, s.Annotations().Insert(ctx, mbox.ID, imap.NewAnnotation(key, value)))
		}

		parent := imap.NewAnnotationKey("/private/comment")

		exact, err := s.Annotations().GetByKeys(ctx, mbox.ID, parent)
		require.NoError(t, err)
		require.Len(t, exact, 1)
		require.Equal(t, "root", exact[0].Value)

		oneDepth, err := s.Annotations().GetByKeysWithOneDepth(ctx, mbox.ID, parent)
		require.NoError(t, err)
		require.Len(t, oneDepth, 2)
		require.Equal(t, parent, oneDepth[0].Key)
		require.Equal(t, imap.NewAnnotationKey("/private/comment/user"), oneDepth[1].Key)

		allDepth, err := s.Annotations().GetByKeysWithAllDepth(ctx, mbox.ID, parent)
		require.NoError(t, err)
		require.Len(t, allDepth, 3)

		// One-depth matching does not require the parent itself to exist.
		oneDepth, err = s.Annotations().GetByKeysWithOneDepth(ctx, mbox.ID, imap.NewAnnotationKey("/private/comment/user"))
		require.NoError(t, err)
		require.Len(t, oneDepth, 2)
	})

	t.Run("DeletingMailboxDropsAnnotations", func(t *testing.T) {
		s := factory(t)

		mbox := mustCreateMailbox(t, ctx, s, imap.PersonalPath("alice", imap.Inbox))

		require.NoError(t, s.Annotations().Insert(ctx, mbox.ID, imap.NewAnnotation("/private/comment", "value")))
		require.NoError(t, s.Mailboxes().Delete(ctx, mbox))

		count, err := s.Annotations().Count(ctx, mbox.ID)
		require.NoError(t, err)
		require.Zero(t, count)
	})
}
