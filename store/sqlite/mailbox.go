package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
)

type mailboxMapper struct {
	store *Store
}

func (m *mailboxMapper) Create(ctx context.Context, mbox *store.Mailbox) error {
	uidValidity, err := m.store.generator.Generate()
	if err != nil {
		return fmt.Errorf("generating uid validity: %w", err)
	}

	return m.store.tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO mailboxes (namespace, principal, name, uid_validity) VALUES (?, ?, ?, ?)",
			mbox.Path.Namespace, mbox.Path.User, mbox.Path.Name, uidValidity,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("mailbox %v: %w", mbox.Path, store.ErrMailboxExists)
			}

			return err
		}

		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		mbox.ID = imap.InternalMailboxID(id)
		mbox.UIDValidity = uidValidity

		if err := insertACL(ctx, tx, mbox.ID, mbox.ACL); err != nil {
			return err
		}

		if mbox.ACL == nil {
			mbox.ACL = imap.NewACL()
		}

		return nil
	})
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error

	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (m *mailboxMapper) FindByPath(ctx context.Context, path imap.MailboxPath) (*store.Mailbox, error) {
	return m.scanMailbox(ctx,
		"SELECT id, namespace, principal, name, uid_validity FROM mailboxes WHERE namespace = ? AND principal = ? AND name = ?",
		path.Namespace, path.User, path.Name,
	)
}

func (m *mailboxMapper) FindByID(ctx context.Context, mboxID imap.InternalMailboxID) (*store.Mailbox, error) {
	return m.scanMailbox(ctx,
		"SELECT id, namespace, principal, name, uid_validity FROM mailboxes WHERE id = ?",
		mboxID,
	)
}

func (m *mailboxMapper) scanMailbox(ctx context.Context, query string, args ...any) (*store.Mailbox, error) {
	mbox := &store.Mailbox{}

	if err := m.store.db.QueryRowContext(ctx, query, args...).Scan(
		&mbox.ID, &mbox.Path.Namespace, &mbox.Path.User, &mbox.Path.Name, &mbox.UIDValidity,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrMailboxNotFound
		}

		return nil, err
	}

	acl, err := loadACL(ctx, m.store.db, mbox.ID)
	if err != nil {
		return nil, err
	}

	mbox.ACL = acl

	return mbox, nil
}

func (m *mailboxMapper) FindByPathLike(ctx context.Context, query imap.MailboxQuery) ([]*store.Mailbox, error) {
	matcher, err := query.Matcher(imap.DefaultDelimiter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}

	all, err := m.list(ctx, "SELECT id, namespace, principal, name, uid_validity FROM mailboxes WHERE namespace = ? AND principal = ? ORDER BY id", query.Namespace, query.User)
	if err != nil {
		return nil, err
	}

	matches := make([]*store.Mailbox, 0, len(all))

	for _, mbox := range all {
		if matcher.Matches(mbox.Path) {
			matches = append(matches, mbox)
		}
	}

	return matches, nil
}

func (m *mailboxMapper) List(ctx context.Context) ([]*store.Mailbox, error) {
	return m.list(ctx, "SELECT id, namespace, principal, name, uid_validity FROM mailboxes ORDER BY id")
}

func (m *mailboxMapper) list(ctx context.Context, query string, args ...any) ([]*store.Mailbox, error) {
	rows, err := m.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*store.Mailbox

	for rows.Next() {
		mbox := &store.Mailbox{}

		if err := rows.Scan(&mbox.ID, &mbox.Path.Namespace, &mbox.Path.User, &mbox.Path.Name, &mbox.UIDValidity); err != nil {
			return nil, err
		}

		result = append(result, mbox)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, mbox := range result {
		acl, err := loadACL(ctx, m.store.db, mbox.ID)
		if err != nil {
			return nil, err
		}

		mbox.ACL = acl
	}

	return result, nil
}

func (m *mailboxMapper) HasChildren(ctx context.Context, mbox *store.Mailbox, delimiter string) (bool, error) {
	var count int

	if err := m.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM mailboxes WHERE namespace = ? AND principal = ? AND name LIKE ? ESCAPE '\\'",
		mbox.Path.Namespace, mbox.Path.User, escapeLike(mbox.Path.Name+delimiter)+"%",
	).Scan(&count); err != nil {
		return false, err
	}

	return count > 0, nil
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

func (m *mailboxMapper) Delete(ctx context.Context, mbox *store.Mailbox) error {
	err := m.store.tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM mailboxes WHERE id = ?", mbox.ID)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if affected == 0 {
			return fmt.Errorf("mailbox %v: %w", mbox.ID, store.ErrMailboxNotFound)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.store.log.WithField("mailbox", mbox.ID).Debug("Mailbox deleted")

	return nil
}

func (m *mailboxMapper) UpdateACL(ctx context.Context, mboxID imap.InternalMailboxID, cmd imap.ACLCommand) error {
	return m.store.tx(ctx, func(tx *sql.Tx) error {
		acl, err := loadACLTx(ctx, tx, mboxID)
		if err != nil {
			return err
		}

		return replaceACL(ctx, tx, mboxID, acl.Apply(cmd))
	})
}

func (m *mailboxMapper) ResetACL(ctx context.Context, mboxID imap.InternalMailboxID, acl imap.ACL) error {
	return m.store.tx(ctx, func(tx *sql.Tx) error {
		if err := requireMailbox(ctx, tx, mboxID); err != nil {
			return err
		}

		return replaceACL(ctx, tx, mboxID, acl)
	})
}

func requireMailbox(ctx context.Context, tx *sql.Tx, mboxID imap.InternalMailboxID) error {
	var one int

	if err := tx.QueryRowContext(ctx, "SELECT 1 FROM mailboxes WHERE id = ?", mboxID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("mailbox %v: %w", mboxID, store.ErrMailboxNotFound)
		}

		return err
	}

	return nil
}

type rowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadACL(ctx context.Context, q rowQuerier, mboxID imap.InternalMailboxID) (imap.ACL, error) {
	rows, err := q.QueryContext(ctx, "SELECT entry, rights FROM mailbox_acl WHERE mailbox_id = ?", mboxID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	acl := imap.NewACL()

	for rows.Next() {
		var entry, rights string

		if err := rows.Scan(&entry, &rights); err != nil {
			return nil, err
		}

		key, err := imap.ParseEntryKey(entry)
		if err != nil {
			return nil, fmt.Errorf("corrupted acl entry %q: %w", entry, err)
		}

		acl[key] = imap.NewRights(rights)
	}

	return acl, rows.Err()
}

func loadACLTx(ctx context.Context, tx *sql.Tx, mboxID imap.InternalMailboxID) (imap.ACL, error) {
	if err := requireMailbox(ctx, tx, mboxID); err != nil {
		return nil, err
	}

	return loadACL(ctx, tx, mboxID)
}

func replaceACL(ctx context.Context, tx *sql.Tx, mboxID imap.InternalMailboxID, acl imap.ACL) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM mailbox_acl WHERE mailbox_id = ?", mboxID); err != nil {
		return err
	}

	return insertACL(ctx, tx, mboxID, acl)
}

func insertACL(ctx context.Context, tx *sql.Tx, mboxID imap.InternalMailboxID, acl imap.ACL) error {
	for key, rights := range acl {
		if rights.IsEmpty() {
			continue
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO mailbox_acl (mailbox_id, entry, rights) VALUES (?, ?, ?)",
			mboxID, key.Serialize(), string(rights),
		); err != nil {
			return err
		}
	}

	return nil
}
