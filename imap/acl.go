package imap

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Single-character rights as used in ACL entries.
const (
	RightLookup     = 'l'
	RightRead       = 'r'
	RightSeen       = 's'
	RightWrite      = 'w'
	RightInsert     = 'i'
	RightPost       = 'p'
	RightCreate     = 'k'
	RightDeleteMbox = 'x'
	RightDeleteMsg  = 't'
	RightExpunge    = 'e'
	RightAdmin      = 'a'
)

// Rights is a compact set of single-character rights, stored sorted and
// deduplicated.
type Rights string

// NewRights normalizes the given right characters into a Rights value.
func NewRights(value string) Rights {
	set := make(map[rune]struct{}, len(value))

	for _, r := range value {
		set[r] = struct{}{}
	}

	runes := maps.Keys(set)

	slices.Sort(runes)

	return Rights(runes)
}

func (r Rights) IsEmpty() bool {
	return len(r) == 0
}

func (r Rights) Contains(right rune) bool {
	return strings.ContainsRune(string(r), right)
}

// Union returns the rights present in either set.
func (r Rights) Union(other Rights) Rights {
	return NewRights(string(r) + string(other))
}

// Except returns the rights of r that are not in other.
func (r Rights) Except(other Rights) Rights {
	var sb strings.Builder

	for _, right := range r {
		if !other.Contains(right) {
			sb.WriteRune(right)
		}
	}

	return NewRights(sb.String())
}

func (r Rights) Equals(other Rights) bool {
	return NewRights(string(r)) == NewRights(string(other))
}

func (r Rights) String() string {
	return string(r)
}

// EntryKey identifies one ACL entry. Positive and negative entries for the
// same identifier are independent keys.
type EntryKey struct {
	Name     string
	Group    bool
	Negative bool
}

func NewUserEntryKey(name string) EntryKey {
	return EntryKey{Name: name}
}

func NewGroupEntryKey(name string) EntryKey {
	return EntryKey{Name: name, Group: true}
}

// Negated returns the negative-polarity key for the same identifier.
func (k EntryKey) Negated() EntryKey {
	k.Negative = true
	return k
}

// Serialize renders the key in its textual form: an optional '-' polarity
// prefix followed by an optional '$' group marker and the identifier.
func (k EntryKey) Serialize() string {
	var sb strings.Builder

	if k.Negative {
		sb.WriteByte('-')
	}

	if k.Group {
		sb.WriteByte('$')
	}

	sb.WriteString(k.Name)

	return sb.String()
}

func (k EntryKey) String() string {
	return k.Serialize()
}

// ParseEntryKey parses the textual form produced by Serialize.
func ParseEntryKey(value string) (EntryKey, error) {
	var key EntryKey

	if strings.HasPrefix(value, "-") {
		key.Negative = true
		value = value[1:]
	}

	if strings.HasPrefix(value, "$") {
		key.Group = true
		value = value[1:]
	}

	if len(value) == 0 {
		return EntryKey{}, fmt.Errorf("empty ACL entry identifier")
	}

	key.Name = value

	return key, nil
}

// ACL maps entry keys to rights. Entries with an empty right set are pruned,
// never stored.
type ACL map[EntryKey]Rights

func NewACL() ACL {
	return make(ACL)
}

// Clone creates a hard copy of the ACL.
func (a ACL) Clone() ACL {
	clone := make(ACL, len(a))

	for key, rights := range a {
		clone[key] = rights
	}

	return clone
}

type ACLMode int

const (
	// ACLReplace sets the entry's rights to exactly the given value,
	// removing the entry when the value is empty.
	ACLReplace ACLMode = iota

	// ACLAdd unions the given rights into the existing entry, creating it
	// if absent.
	ACLAdd

	// ACLRemove subtracts the given rights from the existing entry. Removing
	// rights that were never present is a no-op, not an error.
	ACLRemove
)

// ACLCommand describes one edit of a mailbox ACL.
type ACLCommand struct {
	Key    EntryKey
	Mode   ACLMode
	Rights Rights
}

// Apply returns a copy of the ACL with the command applied.
func (a ACL) Apply(cmd ACLCommand) ACL {
	result := a.Clone()

	var rights Rights

	switch cmd.Mode {
	case ACLReplace:
		rights = NewRights(string(cmd.Rights))

	case ACLAdd:
		rights = result[cmd.Key].Union(cmd.Rights)

	case ACLRemove:
		rights = result[cmd.Key].Except(cmd.Rights)
	}

	if rights.IsEmpty() {
		delete(result, cmd.Key)
	} else {
		result[cmd.Key] = rights
	}

	return result
}
