package imap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMailboxPath_Child(t *testing.T) {
	inbox := PersonalPath("alice", Inbox)

	work := inbox.Child("work", DefaultDelimiter)
	require.Equal(t, "INBOX.work", work.Name)
	require.Equal(t, NamespacePersonal, work.Namespace)
	require.Equal(t, "alice", work.User)

	require.True(t, work.IsChildOf(inbox, DefaultDelimiter))
	require.True(t, work.Child("2024", DefaultDelimiter).IsChildOf(inbox, DefaultDelimiter))
	require.False(t, inbox.IsChildOf(work, DefaultDelimiter))

	// Same name under another principal or namespace is unrelated.
	require.False(t, PersonalPath("bob", "INBOX.work").IsChildOf(inbox, DefaultDelimiter))
	require.False(t, NewMailboxPath(NamespaceShared, "alice", "INBOX.work").IsChildOf(inbox, DefaultDelimiter))
}

func TestMailboxQuery_PercentWildcard(t *testing.T) {
	matcher, err := NewMailboxQuery(NamespacePersonal, "alice", "IN%").Matcher(DefaultDelimiter)
	require.NoError(t, err)

	require.True(t, matcher.Matches(PersonalPath("alice", "INBOX")))
	require.True(t, matcher.Matches(PersonalPath("alice", "IN")))
	require.False(t, matcher.Matches(PersonalPath("alice", "Drafts")))

	// The wildcard does not cross hierarchy levels.
	require.False(t, matcher.Matches(PersonalPath("alice", "INBOX.work")))

	// Matching is confined to the query's namespace and principal.
	require.False(t, matcher.Matches(PersonalPath("bob", "INBOX")))
	require.False(t, matcher.Matches(NewMailboxPath(NamespaceShared, "alice", "INBOX")))
}

func TestMailboxQuery_LiteralOnly(t *testing.T) {
	// '?' is not a wildcard; it only matches itself.
	matcher, err := NewMailboxQuery(NamespacePersonal, "alice", "INB?X").Matcher(DefaultDelimiter)
	require.NoError(t, err)

	require.False(t, matcher.Matches(PersonalPath("alice", "INBOX")))
	require.True(t, matcher.Matches(PersonalPath("alice", "INB?X")))

	// '*' and regex metacharacters are literal too.
	matcher, err = NewMailboxQuery(NamespacePersonal, "alice", "a*b").Matcher(DefaultDelimiter)
	require.NoError(t, err)

	require.False(t, matcher.Matches(PersonalPath("alice", "axb")))
	require.True(t, matcher.Matches(PersonalPath("alice", "a*b")))
}

func TestMailboxQuery_EmptyPrincipal(t *testing.T) {
	// An empty principal matches only mailboxes with no owning principal.
	matcher, err := NewMailboxQuery(NamespaceShared, "", "%").Matcher(DefaultDelimiter)
	require.NoError(t, err)

	require.True(t, matcher.Matches(NewMailboxPath(NamespaceShared, "", "team")))
	require.False(t, matcher.Matches(NewMailboxPath(NamespaceShared, "alice", "team")))
}

func TestMailboxQuery_InteriorWildcard(t *testing.T) {
	matcher, err := NewMailboxQuery(NamespacePersonal, "alice", "INBOX.%.2024").Matcher(DefaultDelimiter)
	require.NoError(t, err)

	require.True(t, matcher.Matches(PersonalPath("alice", "INBOX.work.2024")))
	require.True(t, matcher.Matches(PersonalPath("alice", "INBOX..2024")))
	require.False(t, matcher.Matches(PersonalPath("alice", "INBOX.work.home.2024")))
}
