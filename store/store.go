// Package store defines the mapper contracts of the mailbox storage engine.
//
// A Store aggregates one mapper per concern (directory, messages,
// cross-mailbox index, attachments, annotations) plus the per-mailbox
// identity providers. Implementations back the contracts with different
// media; the conformance suite in storetest runs against every one of them,
// skipping assertions an implementation does not claim via its capabilities.
package store

import (
	"context"

	"github.com/tachyon-mail/tachyon/imap"
)

// Capability declares an optional feature of a Store implementation.
type Capability int

const (
	// CapabilityConcurrentFlagUpdates: SetFlags and Save on the same
	// (message, mailbox) pair from concurrent callers never lose updates
	// and never duplicate the projection.
	CapabilityConcurrentFlagUpdates Capability = iota

	// CapabilityPartialFetch: fetch types below FetchFull avoid loading
	// the unrequested content.
	CapabilityPartialFetch

	// CapabilityAttachmentOwners: the attachment mapper tracks explicit
	// owners and related message IDs.
	CapabilityAttachmentOwners
)

// Store aggregates the mappers of one backing medium.
type Store interface {
	Mailboxes() MailboxMapper
	Messages() MessageMapper
	MessageIDs() MessageIDMapper
	Attachments() AttachmentMapper
	Annotations() AnnotationMapper

	UIDs() UIDProvider
	ModSeqs() ModSeqProvider

	Supports(capability Capability) bool

	Close() error
}

// UIDProvider hands out per-mailbox UIDs: strictly increasing, never reused,
// serialized per mailbox under concurrent callers.
type UIDProvider interface {
	// NextUID allocates the next UID of the mailbox.
	NextUID(ctx context.Context, mboxID imap.InternalMailboxID) (imap.UID, error)

	// LastUID returns the last allocated UID, 0 if none was ever allocated.
	LastUID(ctx context.Context, mboxID imap.InternalMailboxID) (imap.UID, error)
}

// ModSeqProvider hands out per-mailbox modification sequences with the same
// guarantees as UIDProvider.
type ModSeqProvider interface {
	// NextModSeq allocates the next modification sequence of the mailbox.
	NextModSeq(ctx context.Context, mboxID imap.InternalMailboxID) (imap.ModSeq, error)

	// HighestModSeq returns the highest allocated value, 0 if none.
	HighestModSeq(ctx context.Context, mboxID imap.InternalMailboxID) (imap.ModSeq, error)
}

// MailboxMapper is the mailbox directory: CRUD plus hierarchical lookup over
// mailbox path entries. It owns the ACL storage.
type MailboxMapper interface {
	// Create inserts the mailbox, assigning its ID and UID validity. It fails
	// with ErrMailboxExists when another entry holds the same path, detected
	// by path equality, not ID.
	Create(ctx context.Context, mbox *Mailbox) error

	// FindByPath fails with ErrMailboxNotFound if no entry has the path.
	FindByPath(ctx context.Context, path imap.MailboxPath) (*Mailbox, error)

	// FindByID fails with ErrMailboxNotFound if the ID is unknown.
	FindByID(ctx context.Context, mboxID imap.InternalMailboxID) (*Mailbox, error)

	// FindByPathLike returns the mailboxes matching the query, confined to
	// the query's namespace and principal.
	FindByPathLike(ctx context.Context, query imap.MailboxQuery) ([]*Mailbox, error)

	// List returns all mailboxes.
	List(ctx context.Context) ([]*Mailbox, error)

	// HasChildren reports whether another mailbox exists whose name starts
	// with mbox's name plus the delimiter, within the same namespace and
	// principal.
	HasChildren(ctx context.Context, mbox *Mailbox, delimiter string) (bool, error)

	// Delete removes the directory entry and the mailbox's message
	// projections. The messages' mailbox-independent identities survive.
	Delete(ctx context.Context, mbox *Mailbox) error

	// UpdateACL applies one ACL command to the mailbox, pruning entries whose
	// right set ends up empty.
	UpdateACL(ctx context.Context, mboxID imap.InternalMailboxID, cmd imap.ACLCommand) error

	// ResetACL replaces the whole ACL atomically.
	ResetACL(ctx context.Context, mboxID imap.InternalMailboxID, acl imap.ACL) error
}

// MessageMapper is the per-mailbox ordered message collection.
type MessageMapper interface {
	// Add stores the message into the mailbox, assigning its UID and ModSeq.
	// The \Recent flag is forced on; the unseen counter grows when \Seen is
	// absent.
	Add(ctx context.Context, mboxID imap.InternalMailboxID, msg *MailboxMessage) (MessageMetadata, error)

	// FindInMailbox returns the messages of the range in ascending UID
	// order, hydrated to the fetch depth, skipping UID gaps transparently.
	// A limit of 0 means unlimited.
	FindInMailbox(ctx context.Context, mboxID imap.InternalMailboxID, rng imap.UIDRange, fetch imap.FetchType, limit int) ([]*MailboxMessage, error)

	// UpdateFlags applies the calculator to every message in the range and
	// returns one UpdatedFlags per message. Only messages whose flag set
	// actually changed get a bumped ModSeq; no-ops echo the current one.
	UpdateFlags(ctx context.Context, mboxID imap.InternalMailboxID, rng imap.UIDRange, flags imap.FlagSet, mode imap.FlagsUpdateMode) ([]imap.UpdatedFlags, error)

	// Expunge removes every message in the range that carries \Deleted and
	// returns a uid-to-metadata snapshot of the removed messages.
	Expunge(ctx context.Context, mboxID imap.InternalMailboxID, rng imap.UIDRange) (map[imap.UID]MessageMetadata, error)

	// DeleteMessage removes the message unconditionally. Removing an absent
	// UID is a no-op, not an error.
	DeleteMessage(ctx context.Context, mboxID imap.InternalMailboxID, uid imap.UID) error

	// Copy creates a new projection of the message in the destination
	// mailbox with a fresh UID/ModSeq, \Recent forced on, everything else
	// preserved. The source projection is untouched.
	Copy(ctx context.Context, destMboxID imap.InternalMailboxID, msg *MailboxMessage) (*MailboxMessage, error)

	// Move is Copy followed by removal of the source projection; both
	// mailboxes' counters are updated atomically relative to any reader.
	Move(ctx context.Context, destMboxID imap.InternalMailboxID, msg *MailboxMessage) (*MailboxMessage, error)

	CountMessages(ctx context.Context, mboxID imap.InternalMailboxID) (int, error)

	CountUnseenMessages(ctx context.Context, mboxID imap.InternalMailboxID) (int, error)

	GetLastUID(ctx context.Context, mboxID imap.InternalMailboxID) (imap.UID, error)

	GetHighestModSeq(ctx context.Context, mboxID imap.InternalMailboxID) (imap.ModSeq, error)
}

// MessageIDMapper is the cross-mailbox message index keyed by the
// mailbox-independent message identity.
type MessageIDMapper interface {
	// Save records the projection, assigning UID/ModSeq in its mailbox. It
	// fails with ErrMailboxNotFound when the target mailbox does not exist.
	// Saving the same (MessageID, MailboxID) pair twice upserts the existing
	// entry instead of duplicating it.
	Save(ctx context.Context, msg *MailboxMessage) error

	// CopyInMailbox records a projection of an existing message in another
	// mailbox, with fresh UID/ModSeq and \Recent forced on.
	CopyInMailbox(ctx context.Context, destMboxID imap.InternalMailboxID, msg *MailboxMessage) (*MailboxMessage, error)

	// Find returns all stored projections, across all mailboxes, of the
	// given identities, hydrated to the fetch depth.
	Find(ctx context.Context, messageIDs []imap.MessageID, fetch imap.FetchType) ([]*MailboxMessage, error)

	// FindMailboxes returns the mailboxes currently holding a projection of
	// the identity.
	FindMailboxes(ctx context.Context, messageID imap.MessageID) ([]imap.InternalMailboxID, error)

	// Delete removes every projection of the identity. Deleting a
	// non-existent identity is a no-op.
	Delete(ctx context.Context, messageID imap.MessageID) error

	// DeleteIn scopes the removal to the given mailboxes only.
	DeleteIn(ctx context.Context, messageID imap.MessageID, mboxIDs []imap.InternalMailboxID) error

	// DeleteAll is the bulk form of DeleteIn.
	DeleteAll(ctx context.Context, messages map[imap.MessageID][]imap.InternalMailboxID) error

	// SetFlags applies the calculator independently per mailbox and returns
	// a mailbox-to-UpdatedFlags map. An empty mailbox list is a no-op that
	// bumps nothing. Concurrent callers racing on the same
	// (MessageID, MailboxID) pair must not lose updates. On error the map
	// still carries the updates applied before the failure; those are
	// durable and are not rolled back.
	SetFlags(ctx context.Context, messageID imap.MessageID, mboxIDs []imap.InternalMailboxID, flags imap.FlagSet, mode imap.FlagsUpdateMode) (map[imap.InternalMailboxID]imap.UpdatedFlags, error)
}

// AttachmentMapper is the content-addressed attachment store. Storing
// identical payloads twice yields the same identity and merely grows the
// owner and related-message sets.
type AttachmentMapper interface {
	// Store persists the attachment without registering owners or related
	// messages.
	Store(ctx context.Context, attachment *Attachment) error

	// StoreForOwner persists the attachment and registers the owner.
	StoreForOwner(ctx context.Context, attachment *Attachment, owner string) error

	// StoreForMessage persists the attachments and relates them to the
	// message identity. No owner is registered.
	StoreForMessage(ctx context.Context, attachments []*Attachment, messageID imap.MessageID) error

	// Get fails with ErrInvalidArgument on an empty ID, before any store
	// interaction, and with ErrAttachmentNotFound when never stored.
	Get(ctx context.Context, id imap.AttachmentID) (*Attachment, error)

	// GetOwners returns the explicitly registered owners only.
	GetOwners(ctx context.Context, id imap.AttachmentID) ([]string, error)

	// GetRelatedMessageIDs returns the deduplicated set of messages
	// referencing the attachment.
	GetRelatedMessageIDs(ctx context.Context, id imap.AttachmentID) ([]imap.MessageID, error)
}

// AnnotationMapper is the hierarchical per-mailbox annotation store. Keys
// are normalized case-insensitively on write and read.
type AnnotationMapper interface {
	// Insert upserts the annotation, replacing any prior value for the
	// normalized key. Nil-value annotations fail with ErrInvalidArgument;
	// an unknown mailbox fails with ErrMailboxNotFound.
	Insert(ctx context.Context, mboxID imap.InternalMailboxID, annotation imap.MailboxAnnotation) error

	// DeleteAnnotation removes the entry; removing an absent key is a no-op.
	DeleteAnnotation(ctx context.Context, mboxID imap.InternalMailboxID, key imap.AnnotationKey) error

	GetAll(ctx context.Context, mboxID imap.InternalMailboxID) ([]imap.MailboxAnnotation, error)

	Count(ctx context.Context, mboxID imap.InternalMailboxID) (int, error)

	// GetByKeys returns entries stored at exactly the given keys.
	GetByKeys(ctx context.Context, mboxID imap.InternalMailboxID, keys ...imap.AnnotationKey) ([]imap.MailboxAnnotation, error)

	// GetByKeysWithOneDepth returns, for each key, any entry at the exact
	// key plus entries exactly one path segment below it, whether or not the
	// exact key itself is stored.
	GetByKeysWithOneDepth(ctx context.Context, mboxID imap.InternalMailboxID, keys ...imap.AnnotationKey) ([]imap.MailboxAnnotation, error)

	// GetByKeysWithAllDepth is GetByKeysWithOneDepth with unbounded
	// descendant depth.
	GetByKeysWithAllDepth(ctx context.Context, mboxID imap.InternalMailboxID, keys ...imap.AnnotationKey) ([]imap.MailboxAnnotation, error)

	// Exists is an exact key-plus-mailbox membership test.
	Exists(ctx context.Context, mboxID imap.InternalMailboxID, annotation imap.MailboxAnnotation) (bool, error)
}
