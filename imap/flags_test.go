package imap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFlagSet(t *testing.T) {
	fs := NewFlagSet()
	require.Equal(t, 0, fs.Len())

	fs = NewFlagSet(FlagSeen, FlagSeen, FlagSeenLowerCase)
	require.Equal(t, 1, fs.Len())
	require.ElementsMatch(t, fs.ToSlice(), []string{FlagSeen})

	fs = NewFlagSet(FlagSeen, "myKeyword", "MYKEYWORD", FlagDeleted)
	require.Equal(t, 3, fs.Len())
	require.ElementsMatch(t, fs.ToSlice(), []string{FlagSeen, FlagDeleted, "myKeyword"})
}

func TestFlagSet_Contains(t *testing.T) {
	fs := NewFlagSet(FlagSeen, "forwarded")

	require.True(t, fs.Contains(FlagSeen))
	require.True(t, fs.Contains(`\SEEN`))
	require.True(t, fs.Contains("Forwarded"))
	require.True(t, fs.ContainsUnchecked(FlagSeenLowerCase))
	require.False(t, fs.ContainsUnchecked(FlagSeen))
	require.False(t, fs.Contains(FlagDeleted))
	require.False(t, fs.Contains(""))
}

func TestFlagSet_Equals(t *testing.T) {
	require.True(t, NewFlagSet().Equals(NewFlagSet()))
	require.False(t, NewFlagSet().Equals(NewFlagSet(FlagSeen)))

	fs := NewFlagSet(FlagSeen, FlagDraft, "keyword")
	require.True(t, fs.Equals(NewFlagSet("KEYWORD", `\draft`, `\seen`)))
	require.False(t, fs.Equals(NewFlagSet(FlagSeen, FlagDraft)))
}

func TestFlagSet_AddRemoveCopies(t *testing.T) {
	fs := NewFlagSet(FlagSeen)

	added := fs.Add(FlagDeleted)
	require.Equal(t, 1, fs.Len())
	require.Equal(t, 2, added.Len())

	removed := added.Remove(`\SEEN`)
	require.True(t, removed.Equals(NewFlagSet(FlagDeleted)))
	require.Equal(t, 2, added.Len())

	// The original case of an existing flag is preserved.
	require.ElementsMatch(t, added.Add(`\DELETED`).ToSlice(), []string{FlagSeen, FlagDeleted})
}

func TestFlagSet_AddRemoveInPlace(t *testing.T) {
	fs := NewFlagSet(FlagSeen)

	fs.AddToSelf(FlagDeleted, "keyword")
	require.Equal(t, 3, fs.Len())

	fs.RemoveFromSelf("KEYWORD")
	require.True(t, fs.Equals(NewFlagSet(FlagSeen, FlagDeleted)))
}

func TestFlagSet_Set(t *testing.T) {
	fs := NewFlagSet(FlagSeen)

	fs = fs.Set(FlagRecent, true)
	require.True(t, fs.Equals(NewFlagSet(FlagSeen, FlagRecent)))

	fs = fs.Set(FlagRecent, false)
	require.True(t, fs.Equals(NewFlagSet(FlagSeen)))

	fs = fs.Set(FlagRecent, false)
	require.True(t, fs.Equals(NewFlagSet(FlagSeen)))
}

func TestFlagSet_ToSliceIsHardCopy(t *testing.T) {
	fs := NewFlagSet("a", "b", "c")

	sl := fs.ToSlice()
	sl[0] = "z"

	require.Equal(t, "a", fs.ToSlice()[0])
}
