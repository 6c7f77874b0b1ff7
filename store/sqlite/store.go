// Package sqlite implements the storage engine contracts on a SQLite
// database. All mapper state, counters included, lives in the database so a
// reopened store resumes exactly where it left off.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
	"github.com/tachyon-mail/tachyon/version"
)

type Store struct {
	db        *sql.DB
	generator imap.UIDValidityGenerator
	log       *logrus.Entry
}

type Option func(*Store)

// WithUIDValidityGenerator overrides the incremental default.
func WithUIDValidityGenerator(generator imap.UIDValidityGenerator) Option {
	return func(s *Store) {
		s.generator = generator
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(s *Store) {
		s.log = logger.WithField("pkg", "store/sqlite")
	}
}

// Open creates or opens the database at the given path and migrates the
// schema. The connection pool is capped at one connection; SQLite serializes
// writers anyway and a single connection avoids busy errors under load.
func Open(path string, options ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%v?_journal=WAL&_fk=1&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	s := &Store{
		db:        db,
		generator: imap.NewIncrementalUIDValidityGenerator(),
		log:       logrus.WithField("pkg", "store/sqlite"),
	}

	for _, option := range options {
		option(s)
	}

	s.log.WithFields(logrus.Fields{
		"engine":  version.Name,
		"version": version.Current,
		"path":    path,
	}).Debug("Opened sqlite store")

	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS mailboxes (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	namespace      TEXT    NOT NULL,
	principal      TEXT    NOT NULL,
	name           TEXT    NOT NULL,
	uid_validity   INTEGER NOT NULL,
	last_uid       INTEGER NOT NULL DEFAULT 0,
	highest_modseq INTEGER NOT NULL DEFAULT 0,
	UNIQUE (namespace, principal, name)
);

CREATE TABLE IF NOT EXISTS mailbox_acl (
	mailbox_id INTEGER NOT NULL REFERENCES mailboxes (id) ON DELETE CASCADE,
	entry      TEXT    NOT NULL,
	rights     TEXT    NOT NULL,
	PRIMARY KEY (mailbox_id, entry)
);

CREATE TABLE IF NOT EXISTS messages (
	mailbox_id    INTEGER NOT NULL REFERENCES mailboxes (id) ON DELETE CASCADE,
	uid           INTEGER NOT NULL,
	modseq        INTEGER NOT NULL,
	message_id    TEXT    NOT NULL,
	internal_date TIMESTAMP NOT NULL,
	body_octets   INTEGER NOT NULL,
	full_octets   INTEGER NOT NULL,
	media_type    TEXT    NOT NULL,
	sub_type      TEXT    NOT NULL,
	header        BLOB,
	body          BLOB,
	PRIMARY KEY (mailbox_id, uid)
);

CREATE INDEX IF NOT EXISTS messages_message_id ON messages (message_id);

CREATE TABLE IF NOT EXISTS message_flags (
	mailbox_id INTEGER NOT NULL,
	uid        INTEGER NOT NULL,
	flag_lower TEXT    NOT NULL,
	flag       TEXT    NOT NULL,
	PRIMARY KEY (mailbox_id, uid, flag_lower),
	FOREIGN KEY (mailbox_id, uid) REFERENCES messages (mailbox_id, uid) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS message_properties (
	mailbox_id INTEGER NOT NULL,
	uid        INTEGER NOT NULL,
	pos        INTEGER NOT NULL,
	namespace  TEXT    NOT NULL,
	local_name TEXT    NOT NULL,
	value      TEXT    NOT NULL,
	PRIMARY KEY (mailbox_id, uid, pos),
	FOREIGN KEY (mailbox_id, uid) REFERENCES messages (mailbox_id, uid) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS message_attachments (
	mailbox_id    INTEGER NOT NULL,
	uid           INTEGER NOT NULL,
	pos           INTEGER NOT NULL,
	attachment_id TEXT    NOT NULL,
	content_id    TEXT    NOT NULL,
	inline        BOOLEAN NOT NULL,
	PRIMARY KEY (mailbox_id, uid, pos),
	FOREIGN KEY (mailbox_id, uid) REFERENCES messages (mailbox_id, uid) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS attachments (
	id         TEXT PRIMARY KEY,
	media_type TEXT NOT NULL,
	payload    BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS attachment_owners (
	attachment_id TEXT NOT NULL REFERENCES attachments (id) ON DELETE CASCADE,
	owner         TEXT NOT NULL,
	PRIMARY KEY (attachment_id, owner)
);

CREATE TABLE IF NOT EXISTS attachment_messages (
	attachment_id TEXT NOT NULL REFERENCES attachments (id) ON DELETE CASCADE,
	message_id    TEXT NOT NULL,
	PRIMARY KEY (attachment_id, message_id)
);

CREATE TABLE IF NOT EXISTS annotations (
	mailbox_id INTEGER NOT NULL REFERENCES mailboxes (id) ON DELETE CASCADE,
	key        TEXT    NOT NULL,
	value      TEXT    NOT NULL,
	PRIMARY KEY (mailbox_id, key)
);
`

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
	return &attachmentMapper{store: s}
}

func (s *Store) Annotations() store.AnnotationMapper {
	return &annotationMapper{store: s}
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

func (s *Store) Close() error {
	return s.db.Close()
}

// tx runs fn inside a transaction, rolling back on error.
func (s *Store) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.WithError(rbErr).Error("Failed to roll back transaction")
		}

		return err
	}

	return tx.Commit()
}
