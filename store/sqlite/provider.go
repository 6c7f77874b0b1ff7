package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
)

// provider allocates per-mailbox UIDs and modification sequences. Counters
// live on the mailbox row and only ever grow; expunged messages never give
// their values back.
type provider struct {
	store *Store
}

func (p *provider) NextUID(ctx context.Context, mboxID imap.InternalMailboxID) (imap.UID, error) {
	var uid imap.UID

	if err := p.store.tx(ctx, func(tx *sql.Tx) error {
		value, err := bumpCounter(ctx, tx, mboxID, "last_uid")
		if err != nil {
			return err
		}

		uid = imap.UID(value)

		return nil
	}); err != nil {
		return 0, err
	}

	return uid, nil
}

func (p *provider) LastUID(ctx context.Context, mboxID imap.InternalMailboxID) (imap.UID, error) {
	value, err := readCounter(ctx, p.store.db, mboxID, "last_uid")
	if err != nil {
		return 0, err
	}

	return imap.UID(value), nil
}

func (p *provider) NextModSeq(ctx context.Context, mboxID imap.InternalMailboxID) (imap.ModSeq, error) {
	var modSeq imap.ModSeq

	if err := p.store.tx(ctx, func(tx *sql.Tx) error {
		value, err := bumpCounter(ctx, tx, mboxID, "highest_modseq")
		if err != nil {
			return err
		}

		modSeq = imap.ModSeq(value)

		return nil
	}); err != nil {
		return 0, err
	}

	return modSeq, nil
}

func (p *provider) HighestModSeq(ctx context.Context, mboxID imap.InternalMailboxID) (imap.ModSeq, error) {
	value, err := readCounter(ctx, p.store.db, mboxID, "highest_modseq")
	if err != nil {
		return 0, err
	}

	return imap.ModSeq(value), nil
}

// bumpCounter increments the named mailbox counter and returns the new
// value. The caller must hold a transaction so the increment and the read
// see the same row version.
func bumpCounter(ctx context.Context, tx *sql.Tx, mboxID imap.InternalMailboxID, column string) (uint64, error) {
	res, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE mailboxes SET %v = %v + 1 WHERE id = ?", column, column), mboxID)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if affected == 0 {
		return 0, fmt.Errorf("mailbox %v: %w", mboxID, store.ErrMailboxNotFound)
	}

	var value uint64

	if err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT %v FROM mailboxes WHERE id = ?", column), mboxID).Scan(&value); err != nil {
		return 0, err
	}

	return value, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readCounter(ctx context.Context, q querier, mboxID imap.InternalMailboxID, column string) (uint64, error) {
	var value uint64

	if err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT %v FROM mailboxes WHERE id = ?", column), mboxID).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("mailbox %v: %w", mboxID, store.ErrMailboxNotFound)
		}

		return 0, err
	}

	return value, nil
}
