package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
	"golang.org/x/exp/slices"
)

// attachmentMapper is the in-memory content-addressed attachment store.
// Storing identical payloads is idempotent; the owner and related-message
// sets only ever grow.
type attachmentMapper struct {
	lock sync.RWMutex
	data map[imap.AttachmentID]*attachmentRecord
}

type attachmentRecord struct {
	mediaType string
	payload   []byte
	owners    map[string]struct{}
	messages  map[imap.MessageID]struct{}
}

func newAttachmentMapper() *attachmentMapper {
	return &attachmentMapper{
		data: make(map[imap.AttachmentID]*attachmentRecord),
	}
}

func (m *attachmentMapper) Store(ctx context.Context, attachment *store.Attachment) error {
	if attachment == nil {
		return fmt.Errorf("%w: nil attachment", store.ErrInvalidArgument)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.put(attachment)

	return nil
}

func (m *attachmentMapper) StoreForOwner(ctx context.Context, attachment *store.Attachment, owner string) error {
	if attachment == nil {
		return fmt.Errorf("%w: nil attachment", store.ErrInvalidArgument)
	}

	if len(owner) == 0 {
		return fmt.Errorf("%w: empty owner", store.ErrInvalidArgument)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.put(attachment).owners[owner] = struct{}{}

	return nil
}

func (m *attachmentMapper) StoreForMessage(ctx context.Context, attachments []*store.Attachment, messageID imap.MessageID) error {
	if len(messageID) == 0 {
		return fmt.Errorf("%w: empty message id", store.ErrInvalidArgument)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	for _, attachment := range attachments {
		if attachment == nil {
			return fmt.Errorf("%w: nil attachment", store.ErrInvalidArgument)
		}

		m.put(attachment).messages[messageID] = struct{}{}
	}

	return nil
}

// put inserts or reuses the record for the attachment's content. The write
// lock must be held.
func (m *attachmentMapper) put(attachment *store.Attachment) *attachmentRecord {
	// The identity is always recomputed from the payload so it cannot drift
	// from the content.
	attachment.ID = imap.NewAttachmentID(attachment.Payload)

	rec, ok := m.data[attachment.ID]
	if !ok {
		rec = &attachmentRecord{
			mediaType: attachment.MediaType,
			payload:   append([]byte(nil), attachment.Payload...),
			owners:    make(map[string]struct{}),
			messages:  make(map[imap.MessageID]struct{}),
		}

		m.data[attachment.ID] = rec
	}

	return rec
}

func (m *attachmentMapper) Get(ctx context.Context, id imap.AttachmentID) (*store.Attachment, error) {
	if len(id) == 0 {
		return nil, fmt.Errorf("%w: empty attachment id", store.ErrInvalidArgument)
	}

	m.lock.RLock()
	defer m.lock.RUnlock()

	rec, ok := m.data[id]
	if !ok {
		return nil, fmt.Errorf("attachment %v: %w", id, store.ErrAttachmentNotFound)
	}

	return &store.Attachment{
		ID:        id,
		MediaType: rec.mediaType,
		Payload:   append([]byte(nil), rec.payload...),
	}, nil
}

func (m *attachmentMapper) GetOwners(ctx context.Context, id imap.AttachmentID) ([]string, error) {
	if len(id) == 0 {
		return nil, fmt.Errorf("%w: empty attachment id", store.ErrInvalidArgument)
	}

	m.lock.RLock()
	defer m.lock.RUnlock()

	rec, ok := m.data[id]
	if !ok {
		return nil, nil
	}

	owners := make([]string, 0, len(rec.owners))

	for owner := range rec.owners {
		owners = append(owners, owner)
	}

	slices.Sort(owners)

	return owners, nil
}

func (m *attachmentMapper) GetRelatedMessageIDs(ctx context.Context, id imap.AttachmentID) ([]imap.MessageID, error) {
	if len(id) == 0 {
		return nil, fmt.Errorf("%w: empty attachment id", store.ErrInvalidArgument)
	}

	m.lock.RLock()
	defer m.lock.RUnlock()

	rec, ok := m.data[id]
	if !ok {
		return nil, nil
	}

	messageIDs := make([]imap.MessageID, 0, len(rec.messages))

	for messageID := range rec.messages {
		messageIDs = append(messageIDs, messageID)
	}

	slices.Sort(messageIDs)

	return messageIDs, nil
}
