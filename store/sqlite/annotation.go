package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
)

type annotationMapper struct {
	store *Store
}

func (m *annotationMapper) Insert(ctx context.Context, mboxID imap.InternalMailboxID, annotation imap.MailboxAnnotation) error {
	if annotation.Nil {
		return fmt.Errorf("%w: nil annotation value for key %v", store.ErrInvalidArgument, annotation.Key)
	}

	if len(annotation.Key) == 0 {
		return fmt.Errorf("%w: empty annotation key", store.ErrInvalidArgument)
	}

	return m.store.tx(ctx, func(tx *sql.Tx) error {
		if err := requireMailbox(ctx, tx, mboxID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO annotations (mailbox_id, key, value) VALUES (?, ?, ?) ON CONFLICT (mailbox_id, key) DO UPDATE SET value = excluded.value",
			mboxID, imap.NewAnnotationKey(string(annotation.Key)), annotation.Value,
		)

		return err
	})
}

func (m *annotationMapper) DeleteAnnotation(ctx context.Context, mboxID imap.InternalMailboxID, key imap.AnnotationKey) error {
	_, err := m.store.db.ExecContext(ctx,
		"DELETE FROM annotations WHERE mailbox_id = ? AND key = ?",
		mboxID, imap.NewAnnotationKey(string(key)),
	)

	return err
}

func (m *annotationMapper) GetAll(ctx context.Context, mboxID imap.InternalMailboxID) ([]imap.MailboxAnnotation, error) {
	return m.collect(ctx, mboxID, func(imap.AnnotationKey) bool { return true })
}

func (m *annotationMapper) Count(ctx context.Context, mboxID imap.InternalMailboxID) (int, error) {
	var count int

	if err := m.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM annotations WHERE mailbox_id = ?", mboxID).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (m *annotationMapper) GetByKeys(ctx context.Context, mboxID imap.InternalMailboxID, keys ...imap.AnnotationKey) ([]imap.MailboxAnnotation, error) {
	wanted := normalizeKeys(keys)

	return m.collect(ctx, mboxID, func(key imap.AnnotationKey) bool {
		for _, want := range wanted {
			if key == want {
				return true
			}
		}

		return false
	})
}

func (m *annotationMapper) GetByKeysWithOneDepth(ctx context.Context, mboxID imap.InternalMailboxID, keys ...imap.AnnotationKey) ([]imap.MailboxAnnotation, error) {
	wanted := normalizeKeys(keys)

	return m.collect(ctx, mboxID, func(key imap.AnnotationKey) bool {
		for _, parent := range wanted {
			if key == parent || key.IsChildOf(parent) {
				return true
			}
		}

		return false
	})
}

func (m *annotationMapper) GetByKeysWithAllDepth(ctx context.Context, mboxID imap.InternalMailboxID, keys ...imap.AnnotationKey) ([]imap.MailboxAnnotation, error) {
	wanted := normalizeKeys(keys)

	return m.collect(ctx, mboxID, func(key imap.AnnotationKey) bool {
		for _, parent := range wanted {
			if key == parent || key.IsDescendantOf(parent) {
				return true
			}
		}

		return false
	})
}

func (m *annotationMapper) Exists(ctx context.Context, mboxID imap.InternalMailboxID, annotation imap.MailboxAnnotation) (bool, error) {
	var count int

	if err := m.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM annotations WHERE mailbox_id = ? AND key = ?",
		mboxID, imap.NewAnnotationKey(string(annotation.Key)),
	).Scan(&count); err != nil {
		return false, err
	}

	return count > 0, nil
}

func (m *annotationMapper) collect(ctx context.Context, mboxID imap.InternalMailboxID, match func(imap.AnnotationKey) bool) ([]imap.MailboxAnnotation, error) {
	rows, err := m.store.db.QueryContext(ctx, "SELECT key, value FROM annotations WHERE mailbox_id = ? ORDER BY key", mboxID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []imap.MailboxAnnotation

	for rows.Next() {
		var (
			key   imap.AnnotationKey
			value string
		)

		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}

		if match(key) {
			result = append(result, imap.MailboxAnnotation{Key: key, Value: value})
		}
	}

	return result, rows.Err()
}

func normalizeKeys(keys []imap.AnnotationKey) []imap.AnnotationKey {
	result := make([]imap.AnnotationKey, 0, len(keys))

	for _, key := range keys {
		result = append(result, imap.NewAnnotationKey(string(key)))
	}

	return result
}
