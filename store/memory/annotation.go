package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
	"golang.org/x/exp/slices"
)

// annotationMapper stores per-mailbox annotations keyed by their normalized
// hierarchical key.
type annotationMapper struct {
	store *Store

	lock sync.RWMutex
	data map[imap.InternalMailboxID]map[imap.AnnotationKey]string
}

func newAnnotationMapper(s *Store) *annotationMapper {
	return &annotationMapper{
		store: s,
		data:  make(map[imap.InternalMailboxID]map[imap.AnnotationKey]string),
	}
}

func (m *annotationMapper) Insert(ctx context.Context, mboxID imap.InternalMailboxID, annotation imap.MailboxAnnotation) error {
	if annotation.Nil {
		return fmt.Errorf("%w: nil annotation value for key %v", store.ErrInvalidArgument, annotation.Key)
	}

	if len(annotation.Key) == 0 {
		return fmt.Errorf("%w: empty annotation key", store.ErrInvalidArgument)
	}

	if _, err := m.store.getMailbox(mboxID); err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	annotations, ok := m.data[mboxID]
	if !ok {
		annotations = make(map[imap.AnnotationKey]string)
		m.data[mboxID] = annotations
	}

	annotations[imap.NewAnnotationKey(string(annotation.Key))] = annotation.Value

	return nil
}

func (m *annotationMapper) DeleteAnnotation(ctx context.Context, mboxID imap.InternalMailboxID, key imap.AnnotationKey) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if annotations, ok := m.data[mboxID]; ok {
		delete(annotations, imap.NewAnnotationKey(string(key)))
	}

	return nil
}

func (m *annotationMapper) GetAll(ctx context.Context, mboxID imap.InternalMailboxID) ([]imap.MailboxAnnotation, error) {
	return m.collect(mboxID, func(imap.AnnotationKey) bool { return true }), nil
}

func (m *annotationMapper) Count(ctx context.Context, mboxID imap.InternalMailboxID) (int, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.data[mboxID]), nil
}

func (m *annotationMapper) GetByKeys(ctx context.Context, mboxID imap.InternalMailboxID, keys ...imap.AnnotationKey) ([]imap.MailboxAnnotation, error) {
	wanted := normalizeKeys(keys)

	return m.collect(mboxID, func(key imap.AnnotationKey) bool {
		return slices.Contains(wanted, key)
	}), nil
}

func (m *annotationMapper) GetByKeysWithOneDepth(ctx context.Context, mboxID imap.InternalMailboxID, keys ...imap.AnnotationKey) ([]imap.MailboxAnnotation, error) {
	wanted := normalizeKeys(keys)

	return m.collect(mboxID, func(key imap.AnnotationKey) bool {
		for _, parent := range wanted {
			if key == parent || key.IsChildOf(parent) {
				return true
			}
		}

		return false
	}), nil
}

func (m *annotationMapper) GetByKeysWithAllDepth(ctx context.Context, mboxID imap.InternalMailboxID, keys ...imap.AnnotationKey) ([]imap.MailboxAnnotation, error) {
	wanted := normalizeKeys(keys)

	return m.collect(mboxID, func(key imap.AnnotationKey) bool {
		for _, parent := range wanted {
			if key == parent || key.IsDescendantOf(parent) {
				return true
			}
		}

		return false
	}), nil
}

func (m *annotationMapper) Exists(ctx context.Context, mboxID imap.InternalMailboxID, annotation imap.MailboxAnnotation) (bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	annotations, ok := m.data[mboxID]
	if !ok {
		return false, nil
	}

	_, ok = annotations[imap.NewAnnotationKey(string(annotation.Key))]

	return ok, nil
}

// deleteMailbox drops every annotation of the mailbox. Called when the
// directory entry is removed.
func (m *annotationMapper) deleteMailbox(mboxID imap.InternalMailboxID) {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.data, mboxID)
}

func (m *annotationMapper) collect(mboxID imap.InternalMailboxID, match func(imap.AnnotationKey) bool) []imap.MailboxAnnotation {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var result []imap.MailboxAnnotation

	for key, value := range m.data[mboxID] {
		if match(key) {
			result = append(result, imap.MailboxAnnotation{Key: key, Value: value})
		}
	}

	slices.SortFunc(result, func(a, b imap.MailboxAnnotation) bool {
		return a.Key < b.Key
	})

	return result
}

func normalizeKeys(keys []imap.AnnotationKey) []imap.AnnotationKey {
	result := make([]imap.AnnotationKey, 0, len(keys))

	for _, key := range keys {
		result = append(result, imap.NewAnnotationKey(string(key)))
	}

	return result
}
