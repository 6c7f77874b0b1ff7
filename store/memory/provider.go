package memory

import (
	"context"

	"github.com/tachyon-mail/tachyon/imap"
)

// provider implements store.UIDProvider and store.ModSeqProvider on top of
// the per-mailbox records. Allocation serializes on the mailbox lock.
type provider struct {
	store *Store
}

func (p *provider) NextUID(ctx context.Context, mboxID imap.InternalMailboxID) (imap.UID, error) {
	rec, err := p.store.getMailbox(mboxID)
	if err != nil {
		return 0, err
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	if rec.deleted {
		return 0, errMailboxGone(mboxID)
	}

	return rec.nextUID(), nil
}

func (p *provider) LastUID(ctx context.Context, mboxID imap.InternalMailboxID) (imap.UID, error) {
	rec, err := p.store.getMailbox(mboxID)
	if err != nil {
		return 0, err
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	return rec.lastUID, nil
}

func (p *provider) NextModSeq(ctx context.Context, mboxID imap.InternalMailboxID) (imap.ModSeq, error) {
	rec, err := p.store.getMailbox(mboxID)
	if err != nil {
		return 0, err
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	if rec.deleted {
		return 0, errMailboxGone(mboxID)
	}

	return rec.nextModSeq(), nil
}

func (p *provider) HighestModSeq(ctx context.Context, mboxID imap.InternalMailboxID) (imap.ModSeq, error) {
	rec, err := p.store.getMailbox(mboxID)
	if err != nil {
		return 0, err
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	return rec.highestModSeq, nil
}

// nextUID allocates the next UID. The mailbox lock must be held.
func (r *mailboxRecord) nextUID() imap.UID {
	r.lastUID = r.lastUID.Add(1)

	return r.lastUID
}

// nextModSeq allocates the next modification sequence. The mailbox lock must
// be held.
func (r *mailboxRecord) nextModSeq() imap.ModSeq {
	r.highestModSeq = r.highestModSeq.Add(1)

	return r.highestModSeq
}
