package imap

import "strings"

// AnnotationKey is a hierarchical, slash-delimited mailbox annotation key,
// e.g. "/private/comment/user". Keys are case-insensitive and normalized to
// lower case on construction.
type AnnotationKey string

func NewAnnotationKey(value string) AnnotationKey {
	return AnnotationKey(strings.ToLower(value))
}

func (k AnnotationKey) String() string {
	return string(k)
}

// IsChildOf reports whether k sits exactly one path segment below parent.
func (k AnnotationKey) IsChildOf(parent AnnotationKey) bool {
	rest, ok := k.trimParent(parent)
	if !ok {
		return false
	}

	return !strings.Contains(rest, "/")
}

// IsDescendantOf reports whether k sits anywhere below parent.
func (k AnnotationKey) IsDescendantOf(parent AnnotationKey) bool {
	_, ok := k.trimParent(parent)
	return ok
}

func (k AnnotationKey) trimParent(parent AnnotationKey) (string, bool) {
	prefix := string(parent) + "/"

	if !strings.HasPrefix(string(k), prefix) {
		return "", false
	}

	rest := strings.TrimPrefix(string(k), prefix)

	return rest, len(rest) > 0
}

// MailboxAnnotation is one key-value entry scoped to a mailbox. A nil
// annotation carries no value and is rejected on insert.
type MailboxAnnotation struct {
	Key   AnnotationKey
	Value string
	Nil   bool
}

func NewAnnotation(key, value string) MailboxAnnotation {
	return MailboxAnnotation{Key: NewAnnotationKey(key), Value: value}
}

func NewNilAnnotation(key string) MailboxAnnotation {
	return MailboxAnnotation{Key: NewAnnotationKey(key), Nil: true}
}
