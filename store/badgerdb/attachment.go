// Package badgerdb implements the attachment contract on a badger key-value
// store. Payloads are encrypted at rest with a key derived from the user
// passphrase; the remaining mapper contracts are not served by this package.
package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/sirupsen/logrus"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/internal/hash"
	"github.com/tachyon-mail/tachyon/store"
	"github.com/tachyon-mail/tachyon/wait"
)

type AttachmentStore struct {
	db       *badger.DB
	gcExitCh chan struct{}
	wg       wait.Group
}

const (
	prefixPayload   = "att:"
	prefixMediaType = "med:"
	prefixOwner     = "own:"
	prefixMessage   = "msg:"
)

func New(path string, passphrase []byte) (*AttachmentStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).
		WithLogger(logrus.StandardLogger()).
		WithLoggingLevel(badger.ERROR).
		WithEncryptionKey(hash.SHA256(passphrase)).
		WithIndexCacheSize(128 * 1024 * 1024),
	)
	if err != nil {
		return nil, err
	}

	s := &AttachmentStore{
		db:       db,
		gcExitCh: make(chan struct{}),
	}

	s.wg.Go(s.runGCCollector)

	return s, nil
}

func (s *AttachmentStore) runGCCollector() {
	// Garbage collection needs to be run manually by us at some point.
	// See https://dgraph.io/docs/badger/get-started/#garbage-collection for more details.
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			{
			again:
				if err := s.db.RunValueLogGC(0.5); err == nil {
					goto again
				}
			}

		case <-s.gcExitCh:
			return
		}
	}
}

func (s *AttachmentStore) Store(ctx context.Context, attachment *store.Attachment) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putAttachment(txn, attachment)
	})
}

func (s *AttachmentStore) StoreForOwner(ctx context.Context, attachment *store.Attachment, owner string) error {
	if len(owner) == 0 {
		return fmt.Errorf("%w: empty attachment owner", store.ErrInvalidArgument)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := putAttachment(txn, attachment); err != nil {
			return err
		}

		return txn.Set([]byte(prefixOwner+string(attachment.ID)+":"+owner), nil)
	})
}

func (s *AttachmentStore) StoreForMessage(ctx context.Context, attachments []*store.Attachment, messageID imap.MessageID) error {
	if len(messageID) == 0 {
		return fmt.Errorf("%w: empty message id", store.ErrInvalidArgument)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, attachment := range attachments {
			if err := putAttachment(txn, attachment); err != nil {
				return err
			}

			if err := txn.Set([]byte(prefixMessage+string(attachment.ID)+":"+string(messageID)), nil); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *AttachmentStore) Get(ctx context.Context, id imap.AttachmentID) (*store.Attachment, error) {
	if len(id) == 0 {
		return nil, fmt.Errorf("%w: empty attachment id", store.ErrInvalidArgument)
	}

	attachment := &store.Attachment{ID: id}

	if err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixPayload + string(id)))
		if err != nil {
			return err
		}

		if attachment.Payload, err = item.ValueCopy(nil); err != nil {
			return err
		}

		item, err = txn.Get([]byte(prefixMediaType + string(id)))
		if err != nil {
			return err
		}

		mediaType, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		attachment.MediaType = string(mediaType)

		return nil
	}); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("attachment %v: %w", id, store.ErrAttachmentNotFound)
		}

		return nil, err
	}

	return attachment, nil
}

func (s *AttachmentStore) GetOwners(ctx context.Context, id imap.AttachmentID) ([]string, error) {
	return s.collectSuffixes(prefixOwner + string(id) + ":")
}

func (s *AttachmentStore) GetRelatedMessageIDs(ctx context.Context, id imap.AttachmentID) ([]imap.MessageID, error) {
	suffixes, err := s.collectSuffixes(prefixMessage + string(id) + ":")
	if err != nil {
		return nil, err
	}

	result := make([]imap.MessageID, 0, len(suffixes))

	for _, suffix := range suffixes {
		result = append(result, imap.MessageID(suffix))
	}

	return result, nil
}

// collectSuffixes returns the key suffixes stored behind the prefix, in key
// order.
func (s *AttachmentStore) collectSuffixes(prefix string) ([]string, error) {
	var result []string

	if err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			result = append(result, string(it.Item().Key()[len(prefix):]))
		}

		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

func putAttachment(txn *badger.Txn, attachment *store.Attachment) error {
	if attachment == nil {
		return fmt.Errorf("%w: nil attachment", store.ErrInvalidArgument)
	}

	attachment.ID = imap.NewAttachmentID(attachment.Payload)

	if err := txn.Set([]byte(prefixPayload+string(attachment.ID)), attachment.Payload); err != nil {
		return err
	}

	return txn.Set([]byte(prefixMediaType+string(attachment.ID)), []byte(attachment.MediaType))
}

func (s *AttachmentStore) Close() error {
	close(s.gcExitCh)
	s.wg.Wait()

	return s.db.Close()
}
