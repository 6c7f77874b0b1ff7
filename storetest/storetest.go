// Package storetest is the conformance suite for the storage engine mapper
// contracts. Every backend runs the same suite; assertions tied to an
// optional feature are skipped when the implementation does not claim the
// matching capability.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
)

// Factory builds a fresh, empty store for one test case. Cleanup is the
// factory's business (t.Cleanup, t.TempDir).
type Factory func(t *testing.T) store.Store

// RunAll runs the whole conformance suite against the factory's stores.
func RunAll(t *testing.T, factory Factory) {
	t.Run("MailboxMapper", func(t *testing.T) { RunMailboxMapperTests(t, factory) })
	t.Run("MessageMapper", func(t *testing.T) { RunMessageMapperTests(t, factory) })
	t.Run("MessageIDMapper", func(t *testing.T) { RunMessageIDMapperTests(t, factory) })
	t.Run("AttachmentMapper", func(t *testing.T) {
		RunAttachmentMapperTests(t, func(t *testing.T) store.AttachmentMapper {
			return factory(t).Attachments()
		})
	})
	t.Run("AnnotationMapper", func(t *testing.T) { RunAnnotationMapperTests(t, factory) })
}

func mustCreateMailbox(t *testing.T, ctx context.Context, s store.Store, path imap.MailboxPath) *store.Mailbox {
	t.Helper()

	mbox := &store.Mailbox{Path: path}
	require.NoError(t, s.Mailboxes().Create(ctx, mbox))
	require.NotZero(t, mbox.ID)

	return mbox
}

func newTestMessage(flags ...string) *store.MailboxMessage {
	header := []byte("Subject: hello\r\n\r\n")
	body := []byte("hello world")

	return &store.MailboxMessage{
		MessageID:    imap.NewMessageID(),
		Flags:        imap.NewFlagSet(flags...),
		InternalDate: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		BodyOctets:   uint64(len(body)),
		FullOctets:   uint64(len(header) + len(body)),
		MediaType:    "text",
		SubType:      "plain",
		Properties: []store.Property{
			{Namespace: "rfc2045", LocalName: "charset", Value: "us-ascii"},
		},
		Header: header,
		Body:   body,
	}
}

func mustAdd(t *testing.T, ctx context.Context, s store.Store, mboxID imap.InternalMailboxID, msg *store.MailboxMessage) store.MessageMetadata {
	t.Helper()

	metadata, err := s.Messages().Add(ctx, mboxID, msg)
	require.NoError(t, err)

	return metadata
}

func collectUIDs(messages []*store.MailboxMessage) []imap.UID {
	uids := make([]imap.UID, 0, len(messages))

	for _, msg := range messages {
		uids = append(uids, msg.UID)
	}

	return uids
}
