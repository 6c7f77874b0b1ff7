package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
)

// attachmentMapper stores attachments under their content-derived identity.
// Storing the same payload twice keeps a single copy and only grows the
// owner and related-message sets.
type attachmentMapper struct {
	store *Store
}

func (m *attachmentMapper) Store(ctx context.Context, attachment *store.Attachment) error {
	return m.store.tx(ctx, func(tx *sql.Tx) error {
		return putAttachment(ctx, tx, attachment)
	})
}

func (m *attachmentMapper) StoreForOwner(ctx context.Context, attachment *store.Attachment, owner string) error {
	if len(owner) == 0 {
		return fmt.Errorf("%w: empty attachment owner", store.ErrInvalidArgument)
	}

	return m.store.tx(ctx, func(tx *sql.Tx) error {
		if err := putAttachment(ctx, tx, attachment); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO attachment_owners (attachment_id, owner) VALUES (?, ?)",
			attachment.ID, owner,
		)

		return err
	})
}

func (m *attachmentMapper) StoreForMessage(ctx context.Context, attachments []*store.Attachment, messageID imap.MessageID) error {
	if len(messageID) == 0 {
		return fmt.Errorf("%w: empty message id", store.ErrInvalidArgument)
	}

	return m.store.tx(ctx, func(tx *sql.Tx) error {
		for _, attachment := range attachments {
			if err := putAttachment(ctx, tx, attachment); err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO attachment_messages (attachment_id, message_id) VALUES (?, ?)",
				attachment.ID, messageID,
			); err != nil {
				return err
			}
		}

		return nil
	})
}

func (m *attachmentMapper) Get(ctx context.Context, id imap.AttachmentID) (*store.Attachment, error) {
	if len(id) == 0 {
		return nil, fmt.Errorf("%w: empty attachment id", store.ErrInvalidArgument)
	}

	attachment := &store.Attachment{}

	if err := m.store.db.QueryRowContext(ctx,
		"SELECT id, media_type, payload FROM attachments WHERE id = ?", id,
	).Scan(&attachment.ID, &attachment.MediaType, &attachment.Payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("attachment %v: %w", id, store.ErrAttachmentNotFound)
		}

		return nil, err
	}

	return attachment, nil
}

func (m *attachmentMapper) GetOwners(ctx context.Context, id imap.AttachmentID) ([]string, error) {
	rows, err := m.store.db.QueryContext(ctx, "SELECT owner FROM attachment_owners WHERE attachment_id = ? ORDER BY owner", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string

	for rows.Next() {
		var owner string

		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}

		result = append(result, owner)
	}

	return result, rows.Err()
}

func (m *attachmentMapper) GetRelatedMessageIDs(ctx context.Context, id imap.AttachmentID) ([]imap.MessageID, error) {
	rows, err := m.store.db.QueryContext(ctx, "SELECT message_id FROM attachment_messages WHERE attachment_id = ? ORDER BY message_id", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []imap.MessageID

	for rows.Next() {
		var messageID imap.MessageID

		if err := rows.Scan(&messageID); err != nil {
			return nil, err
		}

		result = append(result, messageID)
	}

	return result, rows.Err()
}

// putAttachment upserts the payload row. The identity is recomputed from the
// payload so callers cannot store a mismatching ID.
func putAttachment(ctx context.Context, tx *sql.Tx, attachment *store.Attachment) error {
	if attachment == nil {
		return fmt.Errorf("%w: nil attachment", store.ErrInvalidArgument)
	}

	attachment.ID = imap.NewAttachmentID(attachment.Payload)

	_, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO attachments (id, media_type, payload) VALUES (?, ?, ?)",
		attachment.ID, attachment.MediaType, attachment.Payload,
	)

	return err
}
