// Package memory implements the storage engine mappers on in-process maps.
//
// The mailbox registry is guarded by one RWMutex; every mailbox record
// carries its own mutex, so operations on different mailboxes proceed
// without contention while UID/ModSeq allocation and message mutation
// serialize per mailbox.
package memory

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tachyon-mail/tachyon/async"
	"github.com/tachyon-mail/tachyon/events"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/limits"
	"github.com/tachyon-mail/tachyon/store"
	"github.com/tachyon-mail/tachyon/watcher"
)

type Store struct {
	lock sync.RWMutex

	nextMailboxID imap.InternalMailboxID
	mailboxes     map[imap.InternalMailboxID]*mailboxRecord
	paths         map[imap.MailboxPath]imap.InternalMailboxID

	// index maps a mailbox-independent identity to the mailboxes (and UIDs
	// within them) holding a projection of it. It is kept consistent with
	// the per-mailbox message maps by the mappers. It has its own lock so it
	// can be updated while a mailbox record is locked; nothing acquires a
	// record or registry lock while holding it.
	indexLock sync.Mutex
	index     map[imap.MessageID]map[imap.InternalMailboxID]map[imap.UID]struct{}

	attachments *attachmentMapper
	annotations *annotationMapper

	// watchers holds the subscribed event streams.
	watchersLock sync.RWMutex
	watchers     map[*watcher.Watcher[events.Event]]struct{}

	generator    imap.UIDValidityGenerator
	limits       limits.Storage
	panicHandler async.PanicHandler
	log          *logrus.Entry
}

type mailboxRecord struct {
	lock sync.Mutex

	// deleted marks a record whose directory entry is gone; operations that
	// raced with the removal observe it under the record lock.
	deleted bool

	mailbox  store.Mailbox
	messages map[imap.UID]*store.MailboxMessage

	// uids holds the present UIDs in ascending order for range scans.
	uids []imap.UID

	lastUID       imap.UID
	highestModSeq imap.ModSeq

	unseen int
	recent int
}

type Option func(*Store)

// WithUIDValidityGenerator overrides the generator used to stamp new
// mailboxes.
func WithUIDValidityGenerator(generator imap.UIDValidityGenerator) Option {
	return func(s *Store) {
		s.generator = generator
	}
}

// WithLogger overrides the logger used by the store.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Store) {
		s.log = logger.WithField("pkg", "store/memory")
	}
}

// WithLimits bounds the mailbox count, per-mailbox message count and
// identity counters. The default is effectively unlimited.
func WithLimits(storageLimits limits.Storage) Option {
	return func(s *Store) {
		s.limits = storageLimits
	}
}

// WithPanicHandler sets the handler invoked when an event delivery
// goroutine panics.
func WithPanicHandler(panicHandler async.PanicHandler) Option {
	return func(s *Store) {
		s.panicHandler = panicHandler
	}
}

func New(options ...Option) *Store {
	s := &Store{
		mailboxes:    make(map[imap.InternalMailboxID]*mailboxRecord),
		paths:        make(map[imap.MailboxPath]imap.InternalMailboxID),
		index:        make(map[imap.MessageID]map[imap.InternalMailboxID]map[imap.UID]struct{}),
		attachments:  newAttachmentMapper(),
		watchers:     make(map[*watcher.Watcher[events.Event]]struct{}),
		generator:    imap.DefaultEpochUIDValidityGenerator(),
		limits:       limits.DefaultLimits(),
		panicHandler: async.NoopPanicHandler{},
		log:          logrus.WithField("pkg", "store/memory"),
	}

	s.annotations = newAnnotationMapper(s)

	for _, option := range options {
		option(s)
	}

	return s
}

func (s *Store) Mailboxes() store.MailboxMapper {
	return &mailboxMapper{store: s}
}

func (s *Store) Messages() store.MessageMapper {
	return &messageMapper{store: s}
}

func (s *Store) MessageIDs() store.MessageIDMapper {
	return &messageIDMapper{store: s}
}

func (s *Store) Attachments() store.AttachmentMapper {
	return s.attachments
}

func (s *Store) Annotations() store.AnnotationMapper {
	return s.annotations
}

func (s *Store) UIDs() store.UIDProvider {
	return &provider{store: s}
}

func (s *Store) ModSeqs() store.ModSeqProvider {
	return &provider{store: s}
}

func (s *Store) Supports(capability store.Capability) bool {
	switch capability {
	case store.CapabilityConcurrentFlagUpdates, store.CapabilityPartialFetch, store.CapabilityAttachmentOwners:
		return true

	default:
		return false
	}
}

// AddWatcher subscribes to the given event types and returns the stream.
// With no types given, the stream carries every event. The channel is closed
// when the store is.
func (s *Store) AddWatcher(ofType ...events.Event) <-chan events.Event {
	s.watchersLock.Lock()
	defer s.watchersLock.Unlock()

	w := watcher.New(s.panicHandler, ofType...)

	s.watchers[w] = struct{}{}

	return w.GetChannel()
}

// publish delivers the event to every interested watcher without blocking.
func (s *Store) publish(event events.Event) {
	s.watchersLock.RLock()
	defer s.watchersLock.RUnlock()

	for w := range s.watchers {
		if w.IsWatching(event) {
			w.Send(event)
		}
	}
}

func (s *Store) Close() error {
	s.watchersLock.Lock()

	for w := range s.watchers {
		w.Close()
	}

	s.watchers = make(map[*watcher.Watcher[events.Event]]struct{})
	s.watchersLock.Unlock()

	s.lock.Lock()
	s.mailboxes = make(map[imap.InternalMailboxID]*mailboxRecord)
	s.paths = make(map[imap.MailboxPath]imap.InternalMailboxID)
	s.lock.Unlock()

	s.indexLock.Lock()
	s.index = make(map[imap.MessageID]map[imap.InternalMailboxID]map[imap.UID]struct{})
	s.indexLock.Unlock()

	return nil
}

// getMailbox resolves a mailbox record without locking it.
func (s *Store) getMailbox(mboxID imap.InternalMailboxID) (*mailboxRecord, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	rec, ok := s.mailboxes[mboxID]
	if !ok {
		return nil, store.ErrMailboxNotFound
	}

	return rec, nil
}

// indexAdd records that the mailbox holds a projection of the identity.
func (s *Store) indexAdd(messageID imap.MessageID, mboxID imap.InternalMailboxID, uid imap.UID) {
	s.indexLock.Lock()
	defer s.indexLock.Unlock()

	byMailbox, ok := s.index[messageID]
	if !ok {
		byMailbox = make(map[imap.InternalMailboxID]map[imap.UID]struct{})
		s.index[messageID] = byMailbox
	}

	uids, ok := byMailbox[mboxID]
	if !ok {
		uids = make(map[imap.UID]struct{})
		byMailbox[mboxID] = uids
	}

	uids[uid] = struct{}{}
}

func (s *Store) indexRemove(messageID imap.MessageID, mboxID imap.InternalMailboxID, uid imap.UID) {
	s.indexLock.Lock()
	defer s.indexLock.Unlock()

	byMailbox, ok := s.index[messageID]
	if !ok {
		return
	}

	if uids, ok := byMailbox[mboxID]; ok {
		delete(uids, uid)

		if len(uids) == 0 {
			delete(byMailbox, mboxID)
		}
	}

	if len(byMailbox) == 0 {
		delete(s.index, messageID)
	}
}

// indexEntries returns a copy of the (mailbox, uid) projections of the
// identity.
func (s *Store) indexEntries(messageID imap.MessageID) map[imap.InternalMailboxID][]imap.UID {
	s.indexLock.Lock()
	defer s.indexLock.Unlock()

	result := make(map[imap.InternalMailboxID][]imap.UID)

	for mboxID, uids := range s.index[messageID] {
		for uid := range uids {
			result[mboxID] = append(result[mboxID], uid)
		}
	}

	return result
}
