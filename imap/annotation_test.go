package imap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnnotationKey_Normalization(t *testing.T) {
	require.Equal(t, NewAnnotationKey("/private/comment"), NewAnnotationKey("/PRIVATE/Comment"))
	require.Equal(t, "/private/comment", NewAnnotationKey("/Private/COMMENT").String())
}

func TestAnnotationKey_Hierarchy(t *testing.T) {
	base := NewAnnotationKey("/private/comment")

	require.True(t, NewAnnotationKey("/private/comment/user").IsChildOf(base))
	require.False(t, NewAnnotationKey("/private/comment/user/name").IsChildOf(base))
	require.False(t, NewAnnotationKey("/private/comment").IsChildOf(base))
	require.False(t, NewAnnotationKey("/private/commentary").IsChildOf(base))

	require.True(t, NewAnnotationKey("/private/comment/user").IsDescendantOf(base))
	require.True(t, NewAnnotationKey("/private/comment/user/name").IsDescendantOf(base))
	require.False(t, NewAnnotationKey("/private/comment").IsDescendantOf(base))
	require.False(t, NewAnnotationKey("/shared/comment/user").IsDescendantOf(base))
}

func TestAnnotation_Nil(t *testing.T) {
	require.False(t, NewAnnotation("/private/comment", "value").Nil)
	require.True(t, NewNilAnnotation("/private/comment").Nil)
}

func TestFlagsUpdateMode_Apply(t *testing.T) {
	cur := NewFlagSet(FlagSeen, FlagRecent)

	replaced := FlagsReplace.Apply(cur, NewFlagSet(FlagDraft))
	require.True(t, replaced.Equals(NewFlagSet(FlagDraft, FlagRecent)))

	added := FlagsAdd.Apply(cur, NewFlagSet(FlagDeleted))
	require.True(t, added.Equals(NewFlagSet(FlagSeen, FlagRecent, FlagDeleted)))

	removed := FlagsRemove.Apply(cur, NewFlagSet(FlagSeen))
	require.True(t, removed.Equals(NewFlagSet(FlagRecent)))

	// Recent cannot be granted or revoked through a flag update.
	require.True(t, FlagsAdd.Apply(NewFlagSet(), NewFlagSet(FlagRecent)).Equals(NewFlagSet()))
	require.True(t, FlagsRemove.Apply(cur, NewFlagSet(FlagRecent)).Equals(cur))
	require.True(t, FlagsReplace.Apply(cur, NewFlagSet()).Equals(NewFlagSet(FlagRecent)))
}

func TestUpdatedFlags_Changed(t *testing.T) {
	unchanged := UpdatedFlags{OldFlags: NewFlagSet(FlagSeen), NewFlags: NewFlagSet(`\SEEN`)}
	require.False(t, unchanged.Changed())

	changed := UpdatedFlags{OldFlags: NewFlagSet(FlagSeen), NewFlags: NewFlagSet(FlagSeen, FlagDeleted)}
	require.True(t, changed.Changed())
}

func TestUIDRange_Contains(t *testing.T) {
	require.True(t, SingleUID(3).Contains(3))
	require.False(t, SingleUID(3).Contains(4))

	between := UIDRangeBetween(5, 2)
	require.True(t, between.Contains(2))
	require.True(t, between.Contains(5))
	require.False(t, between.Contains(6))

	from := UIDRangeFrom(10)
	require.False(t, from.Contains(9))
	require.True(t, from.Contains(10))
	require.True(t, from.Contains(4000000))

	require.True(t, AllUIDs().Contains(1))
}
