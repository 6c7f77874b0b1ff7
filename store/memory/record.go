package memory

import (
	"fmt"
	"sort"

	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
)

func errMailboxGone(mboxID imap.InternalMailboxID) error {
	return fmt.Errorf("mailbox %v: %w", mboxID, store.ErrMailboxNotFound)
}

// insert stores the message under its UID and fixes the counters. The
// mailbox lock must be held and the UID must not be present.
func (r *mailboxRecord) insert(msg *store.MailboxMessage) {
	r.messages[msg.UID] = msg

	idx := sort.Search(len(r.uids), func(i int) bool { return r.uids[i] >= msg.UID })
	r.uids = append(r.uids, 0)
	copy(r.uids[idx+1:], r.uids[idx:])
	r.uids[idx] = msg.UID

	if !msg.Flags.ContainsUnchecked(imap.FlagSeenLowerCase) {
		r.unseen++
	}

	if msg.Flags.ContainsUnchecked(imap.FlagRecentLowerCase) {
		r.recent++
	}
}

// remove drops the message and fixes the counters. The mailbox lock must be
// held. It reports whether the UID was present.
func (r *mailboxRecord) remove(uid imap.UID) (*store.MailboxMessage, bool) {
	msg, ok := r.messages[uid]
	if !ok {
		return nil, false
	}

	delete(r.messages, uid)

	idx := sort.Search(len(r.uids), func(i int) bool { return r.uids[i] >= uid })
	if idx < len(r.uids) && r.uids[idx] == uid {
		r.uids = append(r.uids[:idx], r.uids[idx+1:]...)
	}

	if !msg.Flags.ContainsUnchecked(imap.FlagSeenLowerCase) {
		r.unseen--
	}

	if msg.Flags.ContainsUnchecked(imap.FlagRecentLowerCase) {
		r.recent--
	}

	return msg, true
}

// uidsInRange returns the present UIDs of the range in ascending order,
// capped by limit (0 = unlimited). The mailbox lock must be held.
func (r *mailboxRecord) uidsInRange(rng imap.UIDRange, limit int) []imap.UID {
	var result []imap.UID

	for _, uid := range r.uids {
		if !rng.Contains(uid) {
			continue
		}

		result = append(result, uid)

		if limit > 0 && len(result) == limit {
			break
		}
	}

	return result
}

// applyFlags mutates the message's flags in place, fixing the unseen and
// recent counters as flags cross the Seen/Recent boundary. The mailbox lock
// must be held.
func (r *mailboxRecord) applyFlags(msg *store.MailboxMessage, newFlags imap.FlagSet) {
	wasSeen := msg.Flags.ContainsUnchecked(imap.FlagSeenLowerCase)
	isSeen := newFlags.ContainsUnchecked(imap.FlagSeenLowerCase)

	if wasSeen && !isSeen {
		r.unseen++
	} else if !wasSeen && isSeen {
		r.unseen--
	}

	wasRecent := msg.Flags.ContainsUnchecked(imap.FlagRecentLowerCase)
	isRecent := newFlags.ContainsUnchecked(imap.FlagRecentLowerCase)

	if wasRecent && !isRecent {
		r.recent--
	} else if !wasRecent && isRecent {
		r.recent++
	}

	msg.Flags = newFlags
}

// hydrate returns a copy of the message populated to the requested fetch
// depth. Stored byte slices are shared with the caller but never mutated by
// the store.
func hydrate(msg *store.MailboxMessage, fetch imap.FetchType) *store.MailboxMessage {
	result := &store.MailboxMessage{
		MailboxID:    msg.MailboxID,
		UID:          msg.UID,
		ModSeq:       msg.ModSeq,
		MessageID:    msg.MessageID,
		Flags:        msg.Flags.Clone(),
		InternalDate: msg.InternalDate,
		BodyOctets:   msg.BodyOctets,
		FullOctets:   msg.FullOctets,
		MediaType:    msg.MediaType,
		SubType:      msg.SubType,
	}

	if fetch.Includes(imap.FetchHeaders) {
		result.Header = msg.Header
		result.Properties = append([]store.Property(nil), msg.Properties...)
	}

	if fetch.Includes(imap.FetchBody) {
		result.Body = msg.Body
		result.Attachments = append([]store.MessageAttachment(nil), msg.Attachments...)
	}

	return result
}

// stored builds the internal representation of a message about to enter the
// mailbox.
func stored(mboxID imap.InternalMailboxID, msg *store.MailboxMessage, uid imap.UID, modSeq imap.ModSeq, flags imap.FlagSet) *store.MailboxMessage {
	return &store.MailboxMessage{
		MailboxID:    mboxID,
		UID:          uid,
		ModSeq:       modSeq,
		MessageID:    msg.MessageID,
		Flags:        flags,
		InternalDate: msg.InternalDate,
		BodyOctets:   msg.BodyOctets,
		FullOctets:   msg.FullOctets,
		MediaType:    msg.MediaType,
		SubType:      msg.SubType,
		Properties:   append([]store.Property(nil), msg.Properties...),
		Attachments:  append([]store.MessageAttachment(nil), msg.Attachments...),
		Header:       msg.Header,
		Body:         msg.Body,
	}
}
