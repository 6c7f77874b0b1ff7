package tachyon_test

import (
	"context"
	"fmt"

	"github.com/tachyon-mail/tachyon"
	"github.com/tachyon-mail/tachyon/imap"
	"github.com/tachyon-mail/tachyon/store"
	"github.com/tachyon-mail/tachyon/store/memory"
)

func Example() {
	ctx := context.Background()

	s := memory.New(memory.WithUIDValidityGenerator(imap.NewFixedUIDValidityGenerator(1)))
	defer s.Close()

	mbox := &store.Mailbox{Path: imap.PersonalPath("alice", imap.Inbox)}
	if err := s.Mailboxes().Create(ctx, mbox); err != nil {
		panic(err)
	}

	msg := &store.MailboxMessage{
		Flags:     imap.NewFlagSet(imap.FlagSeen),
		MediaType: "text",
		SubType:   "plain",
		Header:    []byte("Subject: hello\r\n\r\n"),
		Body:      []byte("hello world"),
	}

	metadata, err := s.Messages().Add(ctx, mbox.ID, msg)
	if err != nil {
		panic(err)
	}

	fmt.Println("uid:", metadata.UID)

	_, err = s.Mailboxes().FindByPath(ctx, imap.PersonalPath("alice", "nope"))
	fmt.Println("missing mailbox:", tachyon.IsMailboxNotFound(err))

	// Output:
	// uid: 1
	// missing mailbox: true
}
