package imap

import (
	"fmt"
	"regexp"
	"strings"
)

const Inbox = "INBOX"

// DefaultDelimiter separates hierarchy levels in mailbox names.
const DefaultDelimiter = "."

const (
	NamespacePersonal = "#private"
	NamespaceShared   = "#shared"
)

// MailboxPath locates a mailbox within the directory. User is empty for
// mailboxes with no owning principal (shared/group namespaces). Paths are
// unique within the directory.
type MailboxPath struct {
	Namespace string
	User      string
	Name      string
}

func NewMailboxPath(namespace, user, name string) MailboxPath {
	return MailboxPath{Namespace: namespace, User: user, Name: name}
}

// PersonalPath is shorthand for a path in the personal namespace of the given user.
func PersonalPath(user, name string) MailboxPath {
	return NewMailboxPath(NamespacePersonal, user, name)
}

func (p MailboxPath) String() string {
	return fmt.Sprintf("%v:%v:%v", p.Namespace, p.User, p.Name)
}

// Child returns the path of a child mailbox one hierarchy level below p.
func (p MailboxPath) Child(name, delimiter string) MailboxPath {
	return MailboxPath{
		Namespace: p.Namespace,
		User:      p.User,
		Name:      p.Name + delimiter + name,
	}
}

// IsChildOf reports whether p sits anywhere below other in the same
// namespace and principal.
func (p MailboxPath) IsChildOf(other MailboxPath, delimiter string) bool {
	if p.Namespace != other.Namespace || p.User != other.User {
		return false
	}

	return strings.HasPrefix(p.Name, other.Name+delimiter)
}

// MailboxQuery selects mailboxes by namespace, owning principal and a name
// expression. The '%' character matches any run of non-delimiter characters
// at its hierarchy position; every other character, including '?' and '*',
// is literal.
type MailboxQuery struct {
	Namespace  string
	User       string
	Expression string
}

func NewMailboxQuery(namespace, user, expression string) MailboxQuery {
	return MailboxQuery{Namespace: namespace, User: user, Expression: expression}
}

// Matcher compiles the query expression for the given hierarchy delimiter.
// Literal characters are quoted so they cannot act as store-level wildcards.
func (q MailboxQuery) Matcher(delimiter string) (*MailboxMatcher, error) {
	rx := fmt.Sprintf("^%v$", strings.ReplaceAll(
		regexp.QuoteMeta(q.Expression),
		"%",
		fmt.Sprintf("[^%v]*", regexp.QuoteMeta(delimiter)),
	))

	re, err := regexp.Compile(rx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile mailbox query %q: %w", q.Expression, err)
	}

	return &MailboxMatcher{namespace: q.Namespace, user: q.User, re: re}, nil
}

// MailboxMatcher is a compiled MailboxQuery.
type MailboxMatcher struct {
	namespace string
	user      string
	re        *regexp.Regexp
}

// Matches reports whether the path belongs to the query's namespace and
// principal and its name matches the query expression.
func (m *MailboxMatcher) Matches(path MailboxPath) bool {
	if path.Namespace != m.namespace || path.User != m.user {
		return false
	}

	return m.re.MatchString(path.Name)
}
