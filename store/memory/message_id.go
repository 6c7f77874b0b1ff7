package memory

import (
	"context"
	"fmt"

	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
	"golang.org/x/exp/slices"
)

type messageIDMapper struct {
	store *Store
}

func (m *messageIDMapper) Save(ctx context.Context, msg *store.MailboxMessage) error {
	if len(msg.MessageID) == 0 {
		return fmt.Errorf("%w: empty message id", store.ErrInvalidArgument)
	}

	rec, err := m.store.getMailbox(msg.MailboxID)
	if err != nil {
		return err
	}

	rec.lock.Lock()

	if rec.deleted {
		rec.lock.Unlock()
		return errMailboxGone(msg.MailboxID)
	}

	// Saving the same (message, mailbox) pair twice upserts the existing
	// projection instead of duplicating it. Membership is decided against
	// the record itself, under its lock, so concurrent saves of the same
	// pair serialize instead of racing past a stale index read.
	for _, uid := range rec.uids {
		existing := rec.messages[uid]
		if existing.MessageID != msg.MessageID {
			continue
		}

		if !existing.Flags.Equals(msg.Flags) {
			rec.applyFlags(existing, msg.Flags.Clone())
			existing.ModSeq = rec.nextModSeq()
		}

		msg.UID = existing.UID
		msg.ModSeq = existing.ModSeq

		rec.lock.Unlock()

		return nil
	}

	if err := m.store.limits.CheckMailboxMessageCount(len(rec.messages), 1); err != nil {
		rec.lock.Unlock()
		return err
	}

	if err := m.store.limits.CheckUIDCount(rec.lastUID, 1); err != nil {
		rec.lock.Unlock()
		return err
	}

	uid := rec.nextUID()
	modSeq := rec.nextModSeq()

	projection := stored(msg.MailboxID, msg, uid, modSeq, msg.Flags.Clone())
	rec.insert(projection)

	rec.lock.Unlock()

	m.store.indexAdd(msg.MessageID, msg.MailboxID, uid)

	msg.UID = uid
	msg.ModSeq = modSeq

	return nil
}

func (m *messageIDMapper) CopyInMailbox(ctx context.Context, destMboxID imap.InternalMailboxID, msg *store.MailboxMessage) (*store.MailboxMessage, error) {
	if _, err := m.store.getMailbox(destMboxID); err != nil {
		return nil, err
	}

	return (&messageMapper{store: m.store}).Copy(ctx, destMboxID, msg)
}

func (m *messageIDMapper) Find(ctx context.Context, messageIDs []imap.MessageID, fetch imap.FetchType) ([]*store.MailboxMessage, error) {
	var result []*store.MailboxMessage

	for _, messageID := range messageIDs {
		for mboxID, uids := range m.store.indexEntries(messageID) {
			rec, err := m.store.getMailbox(mboxID)
			if err != nil {
				continue
			}

			rec.lock.Lock()

			for _, uid := range uids {
				if msg, ok := rec.messages[uid]; ok {
					result = append(result, hydrate(msg, fetch))
				}
			}

			rec.lock.Unlock()
		}
	}

	slices.SortFunc(result, func(a, b *store.MailboxMessage) bool {
		if a.MailboxID != b.MailboxID {
			return a.MailboxID < b.MailboxID
		}

		return a.UID < b.UID
	})

	return result, nil
}

func (m *messageIDMapper) FindMailboxes(ctx context.Context, messageID imap.MessageID) ([]imap.InternalMailboxID, error) {
	entries := m.store.indexEntries(messageID)

	result := make([]imap.InternalMailboxID, 0, len(entries))

	for mboxID := range entries {
		result = append(result, mboxID)
	}

	slices.Sort(result)

	return result, nil
}

func (m *messageIDMapper) Delete(ctx context.Context, messageID imap.MessageID) error {
	return m.deleteEntries(messageID, nil)
}

func (m *messageIDMapper) DeleteIn(ctx context.Context, messageID imap.MessageID, mboxIDs []imap.InternalMailboxID) error {
	return m.deleteEntries(messageID, mboxIDs)
}

func (m *messageIDMapper) DeleteAll(ctx context.Context, messages map[imap.MessageID][]imap.InternalMailboxID) error {
	for messageID, mboxIDs := range messages {
		if err := m.deleteEntries(messageID, mboxIDs); err != nil {
			return err
		}
	}

	return nil
}

// deleteEntries removes the identity's projections, scoped to the given
// mailboxes when the scope is non-nil. Unknown identities are a no-op.
func (m *messageIDMapper) deleteEntries(messageID imap.MessageID, scope []imap.InternalMailboxID) error {
	for mboxID, uids := range m.store.indexEntries(messageID) {
		if scope != nil && !slices.Contains(scope, mboxID) {
			continue
		}

		rec, err := m.store.getMailbox(mboxID)
		if err != nil {
			continue
		}

		rec.lock.Lock()
		for _, uid := range uids {
			rec.remove(uid)
		}
		rec.lock.Unlock()

		for _, uid := range uids {
			m.store.indexRemove(messageID, mboxID, uid)
		}
	}

	return nil
}

func (m *messageIDMapper) SetFlags(ctx context.Context, messageID imap.MessageID, mboxIDs []imap.InternalMailboxID, flags imap.FlagSet, mode imap.FlagsUpdateMode) (map[imap.InternalMailboxID]imap.UpdatedFlags, error) {
	result := make(map[imap.InternalMailboxID]imap.UpdatedFlags)

	// An empty mailbox list is a no-op and must not bump any modseq.
	if len(mboxIDs) == 0 {
		return result, nil
	}

	entries := m.store.indexEntries(messageID)

	for _, mboxID := range mboxIDs {
		uids, ok := entries[mboxID]
		if !ok {
			continue
		}

		rec, err := m.store.getMailbox(mboxID)
		if err != nil {
			continue
		}

		rec.lock.Lock()

		for _, uid := range uids {
			msg, ok := rec.messages[uid]
			if !ok {
				continue
			}

			oldFlags := msg.Flags.Clone()
			newFlags := mode.Apply(msg.Flags, flags)

			rec.applyFlags(msg, newFlags)

			if !oldFlags.Equals(newFlags) {
				msg.ModSeq = rec.nextModSeq()
			}

			result[mboxID] = imap.UpdatedFlags{
				UID:      uid,
				ModSeq:   msg.ModSeq,
				OldFlags: oldFlags,
				NewFlags: newFlags.Clone(),
			}
		}

		rec.lock.Unlock()
	}

	return result, nil
}
