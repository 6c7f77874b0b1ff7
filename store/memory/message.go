package memory

import (
	"context"
	"fmt"

	"github.com/tachyon-mail/tachyon/events"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
	"golang.org/x/exp/slices"
)

type messageMapper struct {
	store *Store
}

func (m *messageMapper) Add(ctx context.Context, mboxID imap.InternalMailboxID, msg *store.MailboxMessage) (store.MessageMetadata, error) {
	rec, err := m.store.getMailbox(mboxID)
	if err != nil {
		return store.MessageMetadata{}, err
	}

	if len(msg.MessageID) == 0 {
		msg.MessageID = imap.NewMessageID()
	}

	// Newly delivered messages are always recent.
	flags := msg.Flags.Clone().AddToSelf(imap.FlagRecent)

	rec.lock.Lock()

	if rec.deleted {
		rec.lock.Unlock()
		return store.MessageMetadata{}, errMailboxGone(mboxID)
	}

	if err := m.store.limits.CheckMailboxMessageCount(len(rec.messages), 1); err != nil {
		rec.lock.Unlock()
		return store.MessageMetadata{}, err
	}

	if err := m.store.limits.CheckUIDCount(rec.lastUID, 1); err != nil {
		rec.lock.Unlock()
		return store.MessageMetadata{}, err
	}

	uid := rec.nextUID()
	modSeq := rec.nextModSeq()

	projection := stored(mboxID, msg, uid, modSeq, flags)
	rec.insert(projection)

	metadata := projection.Metadata()

	rec.lock.Unlock()

	m.store.indexAdd(msg.MessageID, mboxID, uid)

	msg.MailboxID = mboxID
	msg.UID = uid
	msg.ModSeq = modSeq

	m.store.publish(events.MessageAdded{MailboxID: mboxID, MessageID: msg.MessageID, UID: uid})

	return metadata, nil
}

func (m *messageMapper) FindInMailbox(ctx context.Context, mboxID imap.InternalMailboxID, rng imap.UIDRange, fetch imap.FetchType, limit int) ([]*store.MailboxMessage, error) {
	rec, err := m.store.getMailbox(mboxID)
	if err != nil {
		return nil, err
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	uids := rec.uidsInRange(rng, limit)

	result := make([]*store.MailboxMessage, 0, len(uids))

	for _, uid := range uids {
		result = append(result, hydrate(rec.messages[uid], fetch))
	}

	return result, nil
}

func (m *messageMapper) UpdateFlags(ctx context.Context, mboxID imap.InternalMailboxID, rng imap.UIDRange, flags imap.FlagSet, mode imap.FlagsUpdateMode) ([]imap.UpdatedFlags, error) {
	rec, err := m.store.getMailbox(mboxID)
	if err != nil {
		return nil, err
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	if rec.deleted {
		return nil, errMailboxGone(mboxID)
	}

	var result []imap.UpdatedFlags

	for _, uid := range rec.uidsInRange(rng, 0) {
		msg := rec.messages[uid]

		oldFlags := msg.Flags.Clone()
		newFlags := mode.Apply(msg.Flags, flags)

		// Replace writes unconditionally; the modification sequence moves
		// only when the flag set actually changed.
		rec.applyFlags(msg, newFlags)

		if !oldFlags.Equals(newFlags) {
			msg.ModSeq = rec.nextModSeq()

			m.store.publish(events.FlagsUpdated{MailboxID: mboxID, UID: uid, ModSeq: msg.ModSeq})
		}

		result = append(result, imap.UpdatedFlags{
			UID:      uid,
			ModSeq:   msg.ModSeq,
			OldFlags: oldFlags,
			NewFlags: newFlags.Clone(),
		})
	}

	return result, nil
}

func (m *messageMapper) Expunge(ctx context.Context, mboxID imap.InternalMailboxID, rng imap.UIDRange) (map[imap.UID]store.MessageMetadata, error) {
	rec, err := m.store.getMailbox(mboxID)
	if err != nil {
		return nil, err
	}

	rec.lock.Lock()

	result := make(map[imap.UID]store.MessageMetadata)
	removed := make(map[imap.UID]imap.MessageID)

	for _, uid := range rec.uidsInRange(rng, 0) {
		msg := rec.messages[uid]

		if !msg.Flags.ContainsUnchecked(imap.FlagDeletedLowerCase) {
			continue
		}

		if _, ok := rec.remove(uid); ok {
			result[uid] = msg.Metadata()
			removed[uid] = msg.MessageID
		}
	}

	rec.lock.Unlock()

	for uid, messageID := range removed {
		m.store.indexRemove(messageID, mboxID, uid)
	}

	if len(removed) > 0 {
		uids := make([]imap.UID, 0, len(removed))

		for uid := range removed {
			uids = append(uids, uid)
		}

		slices.Sort(uids)

		m.store.publish(events.MessagesExpunged{MailboxID: mboxID, UIDs: uids})
	}

	return result, nil
}

func (m *messageMapper) DeleteMessage(ctx context.Context, mboxID imap.InternalMailboxID, uid imap.UID) error {
	rec, err := m.store.getMailbox(mboxID)
	if err != nil {
		return err
	}

	rec.lock.Lock()
	msg, ok := rec.remove(uid)
	rec.lock.Unlock()

	// Removing an already-absent UID is intentional idempotence.
	if !ok {
		return nil
	}

	m.store.indexRemove(msg.MessageID, mboxID, uid)

	return nil
}

func (m *messageMapper) Copy(ctx context.Context, destMboxID imap.InternalMailboxID, msg *store.MailboxMessage) (*store.MailboxMessage, error) {
	source, err := m.sourceOf(msg)
	if err != nil {
		return nil, err
	}

	dest, err := m.store.getMailbox(destMboxID)
	if err != nil {
		return nil, err
	}

	dest.lock.Lock()

	if dest.deleted {
		dest.lock.Unlock()
		return nil, errMailboxGone(destMboxID)
	}

	uid := dest.nextUID()
	modSeq := dest.nextModSeq()

	// The copy keeps all flags and content; only Recent is forced on.
	projection := stored(destMboxID, source, uid, modSeq, source.Flags.Add(imap.FlagRecent))
	dest.insert(projection)

	result := hydrate(projection, imap.FetchFull)

	dest.lock.Unlock()

	m.store.indexAdd(source.MessageID, destMboxID, uid)

	return result, nil
}

func (m *messageMapper) Move(ctx context.Context, destMboxID imap.InternalMailboxID, msg *store.MailboxMessage) (*store.MailboxMessage, error) {
	sourceRec, err := m.store.getMailbox(msg.MailboxID)
	if err != nil {
		return nil, err
	}

	destRec, err := m.store.getMailbox(destMboxID)
	if err != nil {
		return nil, err
	}

	// Both counters must move atomically relative to readers, so both
	// mailboxes stay locked for the whole transfer. Lock in ID order to
	// avoid deadlock with a concurrent move in the other direction.
	first, second := sourceRec, destRec
	if destMboxID < msg.MailboxID {
		first, second = destRec, sourceRec
	}

	first.lock.Lock()
	if first != second {
		second.lock.Lock()
	}

	unlock := func() {
		if first != second {
			second.lock.Unlock()
		}
		first.lock.Unlock()
	}

	if sourceRec.deleted {
		unlock()
		return nil, errMailboxGone(msg.MailboxID)
	}

	if destRec.deleted {
		unlock()
		return nil, errMailboxGone(destMboxID)
	}

	source, ok := sourceRec.messages[msg.UID]
	if !ok {
		unlock()
		return nil, fmt.Errorf("uid %v in mailbox %v: %w", msg.UID, msg.MailboxID, store.ErrMessageNotFound)
	}

	uid := destRec.nextUID()
	modSeq := destRec.nextModSeq()

	projection := stored(destMboxID, source, uid, modSeq, source.Flags.Add(imap.FlagRecent))
	destRec.insert(projection)
	sourceRec.remove(msg.UID)

	result := hydrate(projection, imap.FetchFull)

	unlock()

	m.store.indexAdd(source.MessageID, destMboxID, uid)
	m.store.indexRemove(source.MessageID, msg.MailboxID, msg.UID)

	return result, nil
}

func (m *messageMapper) CountMessages(ctx context.Context, mboxID imap.InternalMailboxID) (int, error) {
	rec, err := m.store.getMailbox(mboxID)
	if err != nil {
		return 0, err
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	return len(rec.messages), nil
}

func (m *messageMapper) CountUnseenMessages(ctx context.Context, mboxID imap.InternalMailboxID) (int, error) {
	rec, err := m.store.getMailbox(mboxID)
	if err != nil {
		return 0, err
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	return rec.unseen, nil
}

func (m *messageMapper) GetLastUID(ctx context.Context, mboxID imap.InternalMailboxID) (imap.UID, error) {
	rec, err := m.store.getMailbox(mboxID)
	if err != nil {
		return 0, err
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	return rec.lastUID, nil
}

func (m *messageMapper) GetHighestModSeq(ctx context.Context, mboxID imap.InternalMailboxID) (imap.ModSeq, error) {
	rec, err := m.store.getMailbox(mboxID)
	if err != nil {
		return 0, err
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	return rec.highestModSeq, nil
}

// sourceOf loads the full stored projection behind a possibly partially
// hydrated message.
func (m *messageMapper) sourceOf(msg *store.MailboxMessage) (*store.MailboxMessage, error) {
	rec, err := m.store.getMailbox(msg.MailboxID)
	if err != nil {
		return nil, err
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	source, ok := rec.messages[msg.UID]
	if !ok {
		return nil, fmt.Errorf("uid %v in mailbox %v: %w", msg.UID, msg.MailboxID, store.ErrMessageNotFound)
	}

	return stored(source.MailboxID, source, source.UID, source.ModSeq, source.Flags.Clone()), nil
}
