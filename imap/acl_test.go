package imap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRights(t *testing.T) {
	require.Equal(t, NewRights("lrlr"), NewRights("rl"))
	require.True(t, NewRights("").IsEmpty())
	require.True(t, NewRights("lrs").Contains(RightSeen))
	require.False(t, NewRights("lrs").Contains(RightAdmin))

	require.Equal(t, NewRights("lrsw"), NewRights("lr").Union(NewRights("sw")))
	require.Equal(t, NewRights("l"), NewRights("lrs").Except(NewRights("rsw")))
	require.True(t, NewRights("rl").Equals(NewRights("lr")))
}

func TestEntryKey_Serialize(t *testing.T) {
	require.Equal(t, "alice", NewUserEntryKey("alice").Serialize())
	require.Equal(t, "$staff", NewGroupEntryKey("staff").Serialize())
	require.Equal(t, "-alice", NewUserEntryKey("alice").Negated().Serialize())
	require.Equal(t, "-$staff", NewGroupEntryKey("staff").Negated().Serialize())

	for _, serialized := range []string{"alice", "$staff", "-alice", "-$staff"} {
		key, err := ParseEntryKey(serialized)
		require.NoError(t, err)
		require.Equal(t, serialized, key.Serialize())
	}

	_, err := ParseEntryKey("-$")
	require.Error(t, err)
}

func TestACL_Apply(t *testing.T) {
	acl := NewACL()

	// ADD creates the entry if absent.
	acl = acl.Apply(ACLCommand{Key: NewUserEntryKey("alice"), Mode: ACLAdd, Rights: NewRights("lr")})
	require.Equal(t, NewRights("lr"), acl[NewUserEntryKey("alice")])

	// ADD unions into the existing entry.
	acl = acl.Apply(ACLCommand{Key: NewUserEntryKey("alice"), Mode: ACLAdd, Rights: NewRights("sw")})
	require.Equal(t, NewRights("lrsw"), acl[NewUserEntryKey("alice")])

	// REMOVE of rights never present is a no-op, not an error.
	acl = acl.Apply(ACLCommand{Key: NewUserEntryKey("alice"), Mode: ACLRemove, Rights: NewRights("ax")})
	require.Equal(t, NewRights("lrsw"), acl[NewUserEntryKey("alice")])

	// REPLACE overwrites the whole entry.
	acl = acl.Apply(ACLCommand{Key: NewUserEntryKey("alice"), Mode: ACLReplace, Rights: NewRights("l")})
	require.Equal(t, NewRights("l"), acl[NewUserEntryKey("alice")])

	// Positive and negative entries are independent keys.
	acl = acl.Apply(ACLCommand{Key: NewUserEntryKey("alice").Negated(), Mode: ACLAdd, Rights: NewRights("w")})
	require.Equal(t, NewRights("l"), acl[NewUserEntryKey("alice")])
	require.Equal(t, NewRights("w"), acl[NewUserEntryKey("alice").Negated()])

	// Entries that end up empty are pruned.
	acl = acl.Apply(ACLCommand{Key: NewUserEntryKey("alice"), Mode: ACLRemove, Rights: NewRights("l")})
	_, ok := acl[NewUserEntryKey("alice")]
	require.False(t, ok)

	acl = acl.Apply(ACLCommand{Key: NewUserEntryKey("alice").Negated(), Mode: ACLReplace, Rights: NewRights("")})
	require.Equal(t, 0, len(acl))
}

func TestACL_ApplyIsCopy(t *testing.T) {
	acl := NewACL()
	acl[NewUserEntryKey("alice")] = NewRights("lr")

	edited := acl.Apply(ACLCommand{Key: NewUserEntryKey("alice"), Mode: ACLAdd, Rights: NewRights("w")})

	require.Equal(t, NewRights("lr"), acl[NewUserEntryKey("alice")])
	require.Equal(t, NewRights("lrw"), edited[NewUserEntryKey("alice")])
}
