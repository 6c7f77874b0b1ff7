package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
)

type messageMapper struct {
	store *Store
}

func (m *messageMapper) Add(ctx context.Context, mboxID imap.InternalMailboxID, msg *store.MailboxMessage) (store.MessageMetadata, error) {
	if len(msg.MessageID) == 0 {
		msg.MessageID = imap.NewMessageID()
	}

	flags := msg.Flags.Add(imap.FlagRecent)

	var metadata store.MessageMetadata

	if err := m.store.tx(ctx, func(tx *sql.Tx) error {
		uid, modSeq, err := nextIdentity(ctx, tx, mboxID)
		if err != nil {
			return err
		}

		if err := insertMessage(ctx, tx, mboxID, msg, uid, modSeq, flags); err != nil {
			return err
		}

		msg.MailboxID = mboxID
		msg.UID = uid
		msg.ModSeq = modSeq
		msg.Flags = flags

		metadata = msg.Metadata()

		return nil
	}); err != nil {
		return store.MessageMetadata{}, err
	}

	return metadata, nil
}

func (m *messageMapper) FindInMailbox(ctx context.Context, mboxID imap.InternalMailboxID, rng imap.UIDRange, fetch imap.FetchType, limit int) ([]*store.MailboxMessage, error) {
	cond, args := rangeCondition(rng)

	query := fmt.Sprintf(
		"SELECT mailbox_id, uid, modseq, message_id, internal_date, body_octets, full_octets, media_type, sub_type FROM messages WHERE mailbox_id = ? AND %v ORDER BY uid",
		cond,
	)

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %v", limit)
	}

	messages, err := scanMessages(ctx, m.store.db, query, append([]any{mboxID}, args...)...)
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

func (m *messageMapper) UpdateFlags(ctx context.Context, mboxID imap.InternalMailboxID, rng imap.UIDRange, flags imap.FlagSet, mode imap.FlagsUpdateMode) ([]imap.UpdatedFlags, error) {
	var updates []imap.UpdatedFlags

	if err := m.store.tx(ctx, func(tx *sql.Tx) error {
		if err := requireMailbox(ctx, tx, mboxID); err != nil {
			return err
		}

		cond, args := rangeCondition(rng)

		rows, err := tx.QueryContext(ctx,
			fmt.Sprintf("SELECT uid, modseq FROM messages WHERE mailbox_id = ? AND %v ORDER BY uid", cond),
			append([]any{mboxID}, args...)...,
		)
		if err != nil {
			return err
		}

		type target struct {
			uid    imap.UID
			modSeq imap.ModSeq
		}

		var targets []target

		for rows.Next() {
			var tgt target

			if err := rows.Scan(&tgt.uid, &tgt.modSeq); err != nil {
				rows.Close()
				return err
			}

			targets = append(targets, tgt)
		}

		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}

		rows.Close()

		updates = make([]imap.UpdatedFlags, 0, len(targets))

		for _, tgt := range targets {
			oldFlags, err := loadFlags(ctx, tx, mboxID, tgt.uid)
			if err != nil {
				return err
			}

			newFlags := mode.Apply(oldFlags, flags)

			modSeq := tgt.modSeq

			if !oldFlags.Equals(newFlags) {
				value, err := bumpCounter(ctx, tx, mboxID, "highest_modseq")
				if err != nil {
					return err
				}

				modSeq = imap.ModSeq(value)

				if err := replaceFlags(ctx, tx, mboxID, tgt.uid, newFlags); err != nil {
					return err
				}

				if _, err := tx.ExecContext(ctx, "UPDATE messages SET modseq = ? WHERE mailbox_id = ? AND uid = ?", modSeq, mboxID, tgt.uid); err != nil {
					return err
				}
			}

			updates = append(updates, imap.UpdatedFlags{
				UID:      tgt.uid,
				ModSeq:   modSeq,
				OldFlags: oldFlags,
				NewFlags: newFlags,
			})
		}

		return nil
	}); err != nil {
		return nil, err
	}

	return updates, nil
}

func (m *messageMapper) Expunge(ctx context.Context, mboxID imap.InternalMailboxID, rng imap.UIDRange) (map[imap.UID]store.MessageMetadata, error) {
	expunged := make(map[imap.UID]store.MessageMetadata)

	if err := m.store.tx(ctx, func(tx *sql.Tx) error {
		cond, args := rangeCondition(rng)

		rows, err := tx.QueryContext(ctx, fmt.Sprintf(
			"SELECT m.uid, m.modseq, m.internal_date, m.body_octets, m.full_octets FROM messages m WHERE m.mailbox_id = ? AND %v"+
				" AND EXISTS (SELECT 1 FROM message_flags f WHERE f.mailbox_id = m.mailbox_id AND f.uid = m.uid AND f.flag_lower = ?)",
			strings.ReplaceAll(cond, "uid", "m.uid"),
		), append(append([]any{mboxID}, args...), imap.FlagDeletedLowerCase)...)
		if err != nil {
			return err
		}

		for rows.Next() {
			var metadata store.MessageMetadata

			if err := rows.Scan(&metadata.UID, &metadata.ModSeq, &metadata.InternalDate, &metadata.BodyOctets, &metadata.FullOctets); err != nil {
				rows.Close()
				return err
			}

			expunged[metadata.UID] = metadata
		}

		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}

		rows.Close()

		for uid := range expunged {
			if err := deleteMessageRow(ctx, tx, mboxID, uid); err != nil {
				return err
			}
		}

		return nil
	}); err != nil {
		return nil, err
	}

	return expunged, nil
}

func (m *messageMapper) DeleteMessage(ctx context.Context, mboxID imap.InternalMailboxID, uid imap.UID) error {
	return m.store.tx(ctx, func(tx *sql.Tx) error {
		return deleteMessageRow(ctx, tx, mboxID, uid)
	})
}

func (m *messageMapper) Copy(ctx context.Context, destMboxID imap.InternalMailboxID, msg *store.MailboxMessage) (*store.MailboxMessage, error) {
	var copied *store.MailboxMessage

	if err := m.store.tx(ctx, func(tx *sql.Tx) error {
		source, err := loadFullMessage(ctx, tx, msg.MailboxID, msg.UID)
		if err != nil {
			return err
		}

		uid, modSeq, err := nextIdentity(ctx, tx, destMboxID)
		if err != nil {
			return err
		}

		flags := source.Flags.Add(imap.FlagRecent)

		if err := insertMessage(ctx, tx, destMboxID, source, uid, modSeq, flags); err != nil {
			return err
		}

		source.MailboxID = destMboxID
		source.UID = uid
		source.ModSeq = modSeq
		source.Flags = flags

		copied = source

		return nil
	}); err != nil {
		return nil, err
	}

	return copied, nil
}

func (m *messageMapper) Move(ctx context.Context, destMboxID imap.InternalMailboxID, msg *store.MailboxMessage) (*store.MailboxMessage, error) {
	var moved *store.MailboxMessage

	if err := m.store.tx(ctx, func(tx *sql.Tx) error {
		source, err := loadFullMessage(ctx, tx, msg.MailboxID, msg.UID)
		if err != nil {
			return err
		}

		uid, modSeq, err := nextIdentity(ctx, tx, destMboxID)
		if err != nil {
			return err
		}

		flags := source.Flags.Add(imap.FlagRecent)

		if err := insertMessage(ctx, tx, destMboxID, source, uid, modSeq, flags); err != nil {
			return err
		}

		if err := deleteMessageRow(ctx, tx, msg.MailboxID, msg.UID); err != nil {
			return err
		}

		source.MailboxID = destMboxID
		source.UID = uid
		source.ModSeq = modSeq
		source.Flags = flags

		moved = source

		return nil
	}); err != nil {
		return nil, err
	}

	return moved, nil
}

func (m *messageMapper) CountMessages(ctx context.Context, mboxID imap.InternalMailboxID) (int, error) {
	var count int

	if err := m.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE mailbox_id = ?", mboxID).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (m *messageMapper) CountUnseenMessages(ctx context.Context, mboxID imap.InternalMailboxID) (int, error) {
	var count int

	if err := m.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages m WHERE m.mailbox_id = ?"+
			" AND NOT EXISTS (SELECT 1 FROM message_flags f WHERE f.mailbox_id = m.mailbox_id AND f.uid = m.uid AND f.flag_lower = ?)",
		mboxID, imap.FlagSeenLowerCase,
	).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (m *messageMapper) GetLastUID(ctx context.Context, mboxID imap.InternalMailboxID) (imap.UID, error) {
	value, err := readCounter(ctx, m.store.db, mboxID, "last_uid")
	if err != nil {
		return 0, err
	}

	return imap.UID(value), nil
}

func (m *messageMapper) GetHighestModSeq(ctx context.Context, mboxID imap.InternalMailboxID) (imap.ModSeq, error) {
	value, err := readCounter(ctx, m.store.db, mboxID, "highest_modseq")
	if err != nil {
		return 0, err
	}

	return imap.ModSeq(value), nil
}

// nextIdentity allocates the next UID and ModSeq pair of the mailbox.
func nextIdentity(ctx context.Context, tx *sql.Tx, mboxID imap.InternalMailboxID) (imap.UID, imap.ModSeq, error) {
	uid, err := bumpCounter(ctx, tx, mboxID, "last_uid")
	if err != nil {
		return 0, 0, err
	}

	modSeq, err := bumpCounter(ctx, tx, mboxID, "highest_modseq")
	if err != nil {
		return 0, 0, err
	}

	return imap.UID(uid), imap.ModSeq(modSeq), nil
}

// rangeCondition renders the range as a SQL condition over the uid column.
func rangeCondition(rng imap.UIDRange) (string, []any) {
	switch rng.Type {
	case imap.SingleRange:
		return "uid = ?", []any{rng.Start}

	case imap.BetweenRange:
		lo, hi := rng.Start, rng.End
		if hi < lo {
			lo, hi = hi, lo
		}

		return "uid BETWEEN ? AND ?", []any{lo, hi}

	case imap.FromRange:
		return "uid >= ?", []any{rng.Start}

	default:
		return "uid >= 1", nil
	}
}

func insertMessage(ctx context.Context, tx *sql.Tx, mboxID imap.InternalMailboxID, msg *store.MailboxMessage, uid imap.UID, modSeq imap.ModSeq, flags imap.FlagSet) error {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO messages (mailbox_id, uid, modseq, message_id, internal_date, body_octets, full_octets, media_type, sub_type, header, body)"+
			" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		mboxID, uid, modSeq, msg.MessageID, msg.InternalDate, msg.BodyOctets, msg.FullOctets, msg.MediaType, msg.SubType, msg.Header, msg.Body,
	); err != nil {
		return err
	}

	if err := replaceFlags(ctx, tx, mboxID, uid, flags); err != nil {
		return err
	}

	for pos, property := range msg.Properties {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO message_properties (mailbox_id, uid, pos, namespace, local_name, value) VALUES (?, ?, ?, ?, ?, ?)",
			mboxID, uid, pos, property.Namespace, property.LocalName, property.Value,
		); err != nil {
			return err
		}
	}

	for pos, attachment := range msg.Attachments {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO message_attachments (mailbox_id, uid, pos, attachment_id, content_id, inline) VALUES (?, ?, ?, ?, ?, ?)",
			mboxID, uid, pos, attachment.ID, attachment.ContentID, attachment.Inline,
		); err != nil {
			return err
		}
	}

	return nil
}

func deleteMessageRow(ctx context.Context, tx *sql.Tx, mboxID imap.InternalMailboxID, uid imap.UID) error {
	for _, table := range []string{"message_flags", "message_properties", "message_attachments", "messages"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %v WHERE mailbox_id = ? AND uid = ?", table), mboxID, uid); err != nil {
			return err
		}
	}

	return nil
}

type executor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanMessages(ctx context.Context, q executor, query string, args ...any) ([]*store.MailboxMessage, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*store.MailboxMessage

	for rows.Next() {
		msg := &store.MailboxMessage{}

		if err := rows.Scan(
			&msg.MailboxID, &msg.UID, &msg.ModSeq, &msg.MessageID, &msg.InternalDate,
			&msg.BodyOctets, &msg.FullOctets, &msg.MediaType, &msg.SubType,
		); err != nil {
			return nil, err
		}

		result = append(result, msg)
	}

	return result, rows.Err()
}

// hydrateMessage loads the flag set and, depending on the fetch type, the
// header, properties, body and attachments of an already scanned message.
func hydrateMessage(ctx context.Context, q executor, msg *store.MailboxMessage, fetch imap.FetchType) error {
	flags, err := loadFlags(ctx, q, msg.MailboxID, msg.UID)
	if err != nil {
		return err
	}

	msg.Flags = flags

	if fetch.Includes(imap.FetchHeaders) {
		if err := q.QueryRowContext(ctx, "SELECT header FROM messages WHERE mailbox_id = ? AND uid = ?", msg.MailboxID, msg.UID).Scan(&msg.Header); err != nil {
			return err
		}

		properties, err := loadProperties(ctx, q, msg.MailboxID, msg.UID)
		if err != nil {
			return err
		}

		msg.Properties = properties
	}

	if fetch.Includes(imap.FetchBody) {
		if err := q.QueryRowContext(ctx, "SELECT body FROM messages WHERE mailbox_id = ? AND uid = ?", msg.MailboxID, msg.UID).Scan(&msg.Body); err != nil {
			return err
		}

		attachments, err := loadMessageAttachments(ctx, q, msg.MailboxID, msg.UID)
		if err != nil {
			return err
		}

		msg.Attachments = attachments
	}

	return nil
}

func loadFullMessage(ctx context.Context, q executor, mboxID imap.InternalMailboxID, uid imap.UID) (*store.MailboxMessage, error) {
	messages, err := scanMessages(ctx, q,
		"SELECT mailbox_id, uid, modseq, message_id, internal_date, body_octets, full_octets, media_type, sub_type FROM messages WHERE mailbox_id = ? AND uid = ?",
		mboxID, uid,
	)
	if err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		return nil, fmt.Errorf("uid %v in mailbox %v: %w", uid, mboxID, store.ErrMessageNotFound)
	}

	if err := hydrateMessage(ctx, q, messages[0], imap.FetchFull); err != nil {
		return nil, err
	}

	return messages[0], nil
}

func loadFlags(ctx context.Context, q executor, mboxID imap.InternalMailboxID, uid imap.UID) (imap.FlagSet, error) {
	rows, err := q.QueryContext(ctx, "SELECT flag FROM message_flags WHERE mailbox_id = ? AND uid = ?", mboxID, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flags := imap.NewFlagSet()

	for rows.Next() {
		var flag string

		if err := rows.Scan(&flag); err != nil {
			return nil, err
		}

		flags.AddToSelf(flag)
	}

	return flags, rows.Err()
}

func replaceFlags(ctx context.Context, tx *sql.Tx, mboxID imap.InternalMailboxID, uid imap.UID, flags imap.FlagSet) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM message_flags WHERE mailbox_id = ? AND uid = ?", mboxID, uid); err != nil {
		return err
	}

	for _, flag := range flags.ToSlice() {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO message_flags (mailbox_id, uid, flag_lower, flag) VALUES (?, ?, ?, ?)",
			mboxID, uid, strings.ToLower(flag), flag,
		); err != nil {
			return err
		}
	}

	return nil
}

func loadProperties(ctx context.Context, q executor, mboxID imap.InternalMailboxID, uid imap.UID) ([]store.Property, error) {
	rows, err := q.QueryContext(ctx, "SELECT namespace, local_name, value FROM message_properties WHERE mailbox_id = ? AND uid = ? ORDER BY pos", mboxID, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []store.Property

	for rows.Next() {
		var property store.Property

		if err := rows.Scan(&property.Namespace, &property.LocalName, &property.Value); err != nil {
			return nil, err
		}

		result = append(result, property)
	}

	return result, rows.Err()
}

func loadMessageAttachments(ctx context.Context, q executor, mboxID imap.InternalMailboxID, uid imap.UID) ([]store.MessageAttachment, error) {
	rows, err := q.QueryContext(ctx, "SELECT attachment_id, content_id, inline FROM message_attachments WHERE mailbox_id = ? AND uid = ? ORDER BY pos", mboxID, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []store.MessageAttachment

	for rows.Next() {
		var attachment store.MessageAttachment

		if err := rows.Scan(&attachment.ID, &attachment.ContentID, &attachment.Inline); err != nil {
			return nil, err
		}

		result = append(result, attachment)
	}

	return result, rows.Err()
}
