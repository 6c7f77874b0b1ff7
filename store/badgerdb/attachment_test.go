package badgerdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tachyon-mail/tachyon/store"
	"github.com/tachyon-mail/tachyon/storetest"
)

func TestBadgerAttachmentConformance(t *testing.T) {
	storetest.RunAttachmentMapperTests(t, func(t *testing.T) store.AttachmentMapper {
		return newTestStore(t)
	})
}

func TestBadgerAttachmentSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir()

	s, err := New(path, []byte("passphrase"))
	require.NoError(t, err)

	attachment := store.NewAttachment("text/plain", []byte("encrypted at rest"))
	require.NoError(t, s.StoreForOwner(ctx, attachment, "alice"))
	require.NoError(t, s.Close())

	s, err = New(path, []byte("passphrase"))
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	got, err := s.Get(ctx, attachment.ID)
	require.NoError(t, err)
	require.Equal(t, attachment.Payload, got.Payload)
	require.Equal(t, attachment.MediaType, got.MediaType)

	owners, err := s.GetOwners(ctx, attachment.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, owners)
}

func newTestStore(t *testing.T) *AttachmentStore {
	t.Helper()

	s, err := New(t.TempDir(), []byte("passphrase"))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	return s
}
