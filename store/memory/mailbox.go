package memory

import (
	"context"
	"fmt"

	"github.com/tachyon-mail/tachyon/events"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
	"golang.org/x/exp/slices"
)

type mailboxMapper struct {
	store *Store
}

func (m *mailboxMapper) Create(ctx context.Context, mbox *store.Mailbox) error {
	s := m.store

	uidValidity, err := s.generator.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate uid validity: %w", err)
	}

	if err := s.limits.CheckUIDValidity(uidValidity); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.paths[mbox.Path]; ok {
		return fmt.Errorf("%v: %w", mbox.Path, store.ErrMailboxExists)
	}

	if err := s.limits.CheckMailboxCount(len(s.mailboxes)); err != nil {
		return err
	}

	s.nextMailboxID++

	mbox.ID = s.nextMailboxID
	mbox.UIDValidity = uidValidity

	if mbox.ACL == nil {
		mbox.ACL = imap.NewACL()
	}

	s.mailboxes[mbox.ID] = &mailboxRecord{
		mailbox: store.Mailbox{
			ID:          mbox.ID,
			Path:        mbox.Path,
			UIDValidity: mbox.UIDValidity,
			ACL:         mbox.ACL.Clone(),
		},
		messages: make(map[imap.UID]*store.MailboxMessage),
	}

	s.paths[mbox.Path] = mbox.ID

	s.publish(events.MailboxCreated{MailboxID: mbox.ID, Path: mbox.Path})

	return nil
}

func (m *mailboxMapper) FindByPath(ctx context.Context, path imap.MailboxPath) (*store.Mailbox, error) {
	s := m.store

	s.lock.RLock()
	mboxID, ok := s.paths[path]
	var rec *mailboxRecord
	if ok {
		rec = s.mailboxes[mboxID]
	}
	s.lock.RUnlock()

	if rec == nil {
		return nil, fmt.Errorf("%v: %w", path, store.ErrMailboxNotFound)
	}

	return rec.snapshot()
}

func (m *mailboxMapper) FindByID(ctx context.Context, mboxID imap.InternalMailboxID) (*store.Mailbox, error) {
	rec, err := m.store.getMailbox(mboxID)
	if err != nil {
		return nil, err
	}

	return rec.snapshot()
}

func (m *mailboxMapper) FindByPathLike(ctx context.Context, query imap.MailboxQuery) ([]*store.Mailbox, error) {
	matcher, err := query.Matcher(imap.DefaultDelimiter)
	if err != nil {
		return nil, err
	}

	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	var result []*store.Mailbox

	for _, mbox := range all {
		if matcher.Matches(mbox.Path) {
			result = append(result, mbox)
		}
	}

	return result, nil
}

func (m *mailboxMapper) List(ctx context.Context) ([]*store.Mailbox, error) {
	s := m.store

	s.lock.RLock()
	recs := make([]*mailboxRecord, 0, len(s.mailboxes))
	for _, rec := range s.mailboxes {
		recs = append(recs, rec)
	}
	s.lock.RUnlock()

	result := make([]*store.Mailbox, 0, len(recs))

	for _, rec := range recs {
		mbox, err := rec.snapshot()
		if err != nil {
			// The mailbox was deleted while listing.
			continue
		}

		result = append(result, mbox)
	}

	slices.SortFunc(result, func(a, b *store.Mailbox) bool {
		return a.ID < b.ID
	})

	return result, nil
}

func (m *mailboxMapper) HasChildren(ctx context.Context, mbox *store.Mailbox, delimiter string) (bool, error) {
	all, err := m.List(ctx)
	if err != nil {
		return false, err
	}

	for _, other := range all {
		if other.ID == mbox.ID {
			continue
		}

		if other.Path.IsChildOf(mbox.Path, delimiter) {
			return true, nil
		}
	}

	return false, nil
}

func (m *mailboxMapper) Delete(ctx context.Context, mbox *store.Mailbox) error {
	s := m.store

	rec, err := s.getMailbox(mbox.ID)
	if err != nil {
		return err
	}

	// Mark the record dead first so writers racing with the removal fail
	// with NotFound, then unlink its projections from the cross-mailbox
	// index. The mailbox-independent identities survive.
	rec.lock.Lock()
	rec.deleted = true

	removed := make(map[imap.MessageID][]imap.UID)

	for uid, msg := range rec.messages {
		removed[msg.MessageID] = append(removed[msg.MessageID], uid)
	}

	rec.messages = make(map[imap.UID]*store.MailboxMessage)
	rec.uids = nil
	rec.unseen = 0
	rec.recent = 0
	path := rec.mailbox.Path
	rec.lock.Unlock()

	s.lock.Lock()
	delete(s.mailboxes, mbox.ID)
	delete(s.paths, path)
	s.lock.Unlock()

	for messageID, uids := range removed {
		for _, uid := range uids {
			s.indexRemove(messageID, mbox.ID, uid)
		}
	}

	s.annotations.deleteMailbox(mbox.ID)

	s.publish(events.MailboxDeleted{MailboxID: mbox.ID})

	s.log.WithField("mailbox", mbox.ID).Debug("Mailbox deleted")

	return nil
}

func (m *mailboxMapper) UpdateACL(ctx context.Context, mboxID imap.InternalMailboxID, cmd imap.ACLCommand) error {
	rec, err := m.store.getMailbox(mboxID)
	if err != nil {
		return err
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	if rec.deleted {
		return errMailboxGone(mboxID)
	}

	rec.mailbox.ACL = rec.mailbox.ACL.Apply(cmd)

	return nil
}

func (m *mailboxMapper) ResetACL(ctx context.Context, mboxID imap.InternalMailboxID, acl imap.ACL) error {
	rec, err := m.store.getMailbox(mboxID)
	if err != nil {
		return err
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	if rec.deleted {
		return errMailboxGone(mboxID)
	}

	pruned := imap.NewACL()

	for key, rights := range acl {
		if !rights.IsEmpty() {
			pruned[key] = rights
		}
	}

	rec.mailbox.ACL = pruned

	return nil
}

// snapshot copies the directory entry.
func (r *mailboxRecord) snapshot() (*store.Mailbox, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.deleted {
		return nil, errMailboxGone(r.mailbox.ID)
	}

	return &store.Mailbox{
		ID:          r.mailbox.ID,
		Path:        r.mailbox.Path,
		UIDValidity: r.mailbox.UIDValidity,
		ACL:         r.mailbox.ACL.Clone(),
	}, nil
}
