package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
)

// RunAttachmentMapperTests exercises the content-addressed attachment store.
// It takes a mapper factory rather than a store factory so that blob-only
// backends can run it without implementing the remaining mappers.
func RunAttachmentMapperTests(t *testing.T, factory func(t *testing.T) store.AttachmentMapper) {
	ctx := context.Background()

	t.Run("StoreAndGetRoundTrip", func(t *testing.T) {
		m := factory(t)

		attachment := store.NewAttachment("image/png", []byte("not really a png"))
		require.NoError(t, m.Store(ctx, attachment))

		got, err := m.Get(ctx, attachment.ID)
		require.NoError(t, err)
		require.Equal(t, attachment.ID, got.ID)
		require.Equal(t, attachment.MediaType, got.MediaType)
		require.Equal(t, attachment.Payload, got.Payload)
		require.Equal(t, len(attachment.Payload), got.Size())
	})

	t.Run("IdenticalPayloadsShareIdentity", func(t *testing.T) {
		m := factory(t)

		first := store.NewAttachment("text/plain", []byte("same bytes"))
		second := store.NewAttachment("text/plain", []byte("same bytes"))
		require.Equal(t, first.ID, second.ID)

		require.NoError(t, m.StoreForOwner(ctx, first, "alice"))
		require.NoError(t, m.StoreForOwner(ctx, second, "bob"))

		owners, err := m.GetOwners(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, []string{"alice", "bob"}, owners)
	})

	t.Run("GetFailsOnEmptyAndUnknownIDs", func(t *testing.T) {
		m := factory(t)

		_, err := m.Get(ctx, "")
		require.ErrorIs(t, err, store.ErrInvalidArgument)

		_, err = m.Get(ctx, imap.NewAttachmentID([]byte("never stored")))
		require.ErrorIs(t, err, store.ErrAttachmentNotFound)
	})

	t.Run("StoreRegistersNoOwner", func(t *testing.T) {
		m := factory(t)

		attachment := store.NewAttachment("text/plain", []byte("ownerless"))
		require.NoError(t, m.Store(ctx, attachment))

		owners, err := m.GetOwners(ctx, attachment.ID)
		require.NoError(t, err)
		require.Empty(t, owners)
	})

	t.Run("StoreForMessageTracksRelatedIDs", func(t *testing.T) {
		m := factory(t)

		first := store.NewAttachment("text/plain", []byte("first payload"))
		second := store.NewAttachment("text/plain", []byte("second payload"))

		messageID := imap.NewMessageID()

		require.NoError(t, m.StoreForMessage(ctx, []*store.Attachment{first, second}, messageID))

		// Relating the same message again must not duplicate the entry.
		require.NoError(t, m.StoreForMessage(ctx, []*store.Attachment{first}, messageID))

		otherID := imap.NewMessageID()
		require.NoError(t, m.StoreForMessage(ctx, []*store.Attachment{first}, otherID))

		related, err := m.GetRelatedMessageIDs(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, related, 2)
		require.Contains(t, related, messageID)
		require.Contains(t, related, otherID)

		related, err = m.GetRelatedMessageIDs(ctx, second.ID)
		require.NoError(t, err)
		require.Equal(t, []imap.MessageID{messageID}, related)

		// No owner is registered by the message path.
		owners, err := m.GetOwners(ctx, first.ID)
		require.NoError(t, err)
		require.Empty(t, owners)
	})
}
