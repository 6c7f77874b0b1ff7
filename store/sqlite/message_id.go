package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
)

type messageIDMapper struct {
	store *Store
}

func (m *messageIDMapper) Save(ctx context.Context, msg *store.MailboxMessage) error {
	if len(msg.MessageID) == 0 {
		return fmt.Errorf("%w: empty message id", store.ErrInvalidArgument)
	}

	return m.store.tx(ctx, func(tx *sql.Tx) error {
		if err := requireMailbox(ctx, tx, msg.MailboxID); err != nil {
			return err
		}

		var uid imap.UID

		err := tx.QueryRowContext(ctx,
			"SELECT uid FROM messages WHERE mailbox_id = ? AND message_id = ? ORDER BY uid LIMIT 1",
			msg.MailboxID, msg.MessageID,
		).Scan(&uid)

		// Saving the same (message, mailbox) pair twice upserts the
		// existing projection instead of duplicating it.
		if err == nil {
			return m.upsert(ctx, tx, msg, uid)
		}

		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		newUID, modSeq, err := nextIdentity(ctx, tx, msg.MailboxID)
		if err != nil {
			return err
		}

		if err := insertMessage(ctx, tx, msg.MailboxID, msg, newUID, modSeq, msg.Flags); err != nil {
			return err
		}

		msg.UID = newUID
		msg.ModSeq = modSeq

		return nil
	})
}

func (m *messageIDMapper) upsert(ctx context.Context, tx *sql.Tx, msg *store.MailboxMessage, uid imap.UID) error {
	oldFlags, err := loadFlags(ctx, tx, msg.MailboxID, uid)
	if err != nil {
		return err
	}

	var modSeq imap.ModSeq

	if err := tx.QueryRowContext(ctx, "SELECT modseq FROM messages WHERE mailbox_id = ? AND uid = ?", msg.MailboxID, uid).Scan(&modSeq); err != nil {
		return err
	}

	if !oldFlags.Equals(msg.Flags) {
		value, err := bumpCounter(ctx, tx, msg.MailboxID, "highest_modseq")
		if err != nil {
			return err
		}

		modSeq = imap.ModSeq(value)

		if err := replaceFlags(ctx, tx, msg.MailboxID, uid, msg.Flags); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "UPDATE messages SET modseq = ? WHERE mailbox_id = ? AND uid = ?", modSeq, msg.MailboxID, uid); err != nil {
			return err
		}
	}

	msg.UID = uid
	msg.ModSeq = modSeq

	return nil
}

func (m *messageIDMapper) CopyInMailbox(ctx context.Context, destMboxID imap.InternalMailboxID, msg *store.MailboxMessage) (*store.MailboxMessage, error) {
	if _, err := (&mailboxMapper{store: m.store}).FindByID(ctx, destMboxID); err != nil {
		return nil, err
	}

	return (&messageMapper{store: m.store}).Copy(ctx, destMboxID, msg)
}

func (m *messageIDMapper) Find(ctx context.Context, messageIDs []imap.MessageID, fetch imap.FetchType) ([]*store.MailboxMessage, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(messageIDs))

	for _, messageID := range messageIDs {
		args = append(args, messageID)
	}

	messages, err := scanMessages(ctx, m.store.db, fmt.Sprintf(
		"SELECT mailbox_id, uid, modseq, message_id, internal_date, body_octets, full_octets, media_type, sub_type FROM messages"+
			" WHERE message_id IN (%v) ORDER BY mailbox_id, uid",
		placeholders(len(messageIDs)),
	), args...)
	if err != nil {
		return nil, err
	}

	for _, msg := range messages {
		if err := hydrateMessage(ctx, m.store.db, msg, fetch); err != nil {
			return nil, err
		}
	}

	return messages, nil
}

func (m *messageIDMapper) FindMailboxes(ctx context.Context, messageID imap.MessageID) ([]imap.InternalMailboxID, error) {
	rows, err := m.store.db.QueryContext(ctx, "SELECT DISTINCT mailbox_id FROM messages WHERE message_id = ? ORDER BY mailbox_id", messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]imap.InternalMailboxID, 0)

	for rows.Next() {
		var mboxID imap.InternalMailboxID

		if err := rows.Scan(&mboxID); err != nil {
			return nil, err
		}

		result = append(result, mboxID)
	}

	return result, rows.Err()
}

func (m *messageIDMapper) Delete(ctx context.Context, messageID imap.MessageID) error {
	return m.deleteEntries(ctx, messageID, nil)
}

func (m *messageIDMapper) DeleteIn(ctx context.Context, messageID imap.MessageID, mboxIDs []imap.InternalMailboxID) error {
	return m.deleteEntries(ctx, messageID, mboxIDs)
}

func (m *messageIDMapper) DeleteAll(ctx context.Context, messages map[imap.MessageID][]imap.InternalMailboxID) error {
	for messageID, mboxIDs := range messages {
		if err := m.deleteEntries(ctx, messageID, mboxIDs); err != nil {
			return err
		}
	}

	return nil
}

// deleteEntries removes the identity's projections, scoped to the given
// mailboxes when the scope is non-nil. Unknown identities are a no-op.
func (m *messageIDMapper) deleteEntries(ctx context.Context, messageID imap.MessageID, scope []imap.InternalMailboxID) error {
	return m.store.tx(ctx, func(tx *sql.Tx) error {
		query := "SELECT mailbox_id, uid FROM messages WHERE message_id = ?"
		args := []any{messageID}

		if scope != nil {
			query += fmt.Sprintf(" AND mailbox_id IN (%v)", placeholders(len(scope)))

			for _, mboxID := range scope {
				args = append(args, mboxID)
			}
		}

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}

		type entry struct {
			mboxID imap.InternalMailboxID
			uid    imap.UID
		}

		var entries []entry

		for rows.Next() {
			var e entry

			if err := rows.Scan(&e.mboxID, &e.uid); err != nil {
				rows.Close()
				return err
			}

			entries = append(entries, e)
		}

		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}

		rows.Close()

		for _, e := range entries {
			if err := deleteMessageRow(ctx, tx, e.mboxID, e.uid); err != nil {
				return err
			}
		}

		return nil
	})
}

func (m *messageIDMapper) SetFlags(ctx context.Context, messageID imap.MessageID, mboxIDs []imap.InternalMailboxID, flags imap.FlagSet, mode imap.FlagsUpdateMode) (map[imap.InternalMailboxID]imap.UpdatedFlags, error) {
	result := make(map[imap.InternalMailboxID]imap.UpdatedFlags)

	// An empty mailbox list is a no-op and must not bump any modseq.
	if len(mboxIDs) == 0 {
		return result, nil
	}

	// Each mailbox is updated in its own transaction so a failure in one
	// mailbox does not roll back updates already applied elsewhere.
	for _, mboxID := range mboxIDs {
		if err := m.store.tx(ctx, func(tx *sql.Tx) error {
			var (
				uid    imap.UID
				modSeq imap.ModSeq
			)

			err := tx.QueryRowContext(ctx,
				"SELECT uid, modseq FROM messages WHERE mailbox_id = ? AND message_id = ? ORDER BY uid LIMIT 1",
				mboxID, messageID,
			).Scan(&uid, &modSeq)

			// Mailboxes without a projection of the message are skipped.
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}

			if err != nil {
				return err
			}

			oldFlags, err := loadFlags(ctx, tx, mboxID, uid)
			if err != nil {
				return err
			}

			newFlags := mode.Apply(oldFlags, flags)

			if !oldFlags.Equals(newFlags) {
				value, err := bumpCounter(ctx, tx, mboxID, "highest_modseq")
				if err != nil {
					return err
				}

				modSeq = imap.ModSeq(value)

				if err := replaceFlags(ctx, tx, mboxID, uid, newFlags); err != nil {
					return err
				}

				if _, err := tx.ExecContext(ctx, "UPDATE messages SET modseq = ? WHERE mailbox_id = ? AND uid = ?", modSeq, mboxID, uid); err != nil {
					return err
				}
			}

			result[mboxID] = imap.UpdatedFlags{
				UID:      uid,
				ModSeq:   modSeq,
				OldFlags: oldFlags,
				NewFlags: newFlags,
			}

			return nil
		}); err != nil {
			// Earlier mailboxes already committed; hand their updates back
			// alongside the error.
			return result, err
		}
	}

	return result, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
