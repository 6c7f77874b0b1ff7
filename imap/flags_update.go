package imap

// FlagsUpdateMode selects how a flag calculator combines the requested flags
// with a message's current flags.
type FlagsUpdateMode int

const (
	// FlagsReplace sets the flags to exactly the requested value, even if
	// the result equals the current value.
	FlagsReplace FlagsUpdateMode = iota

	// FlagsAdd unions the requested flags into the current set.
	FlagsAdd

	// FlagsRemove subtracts the requested flags from the current set.
	FlagsRemove
)

func (m FlagsUpdateMode) String() string {
	switch m {
	case FlagsReplace:
		return "Replace"

	case FlagsAdd:
		return "Add"

	case FlagsRemove:
		return "Remove"

	default:
		return "Unknown"
	}
}

// Apply combines the current flags with the requested changes. The \Recent
// flag is read-only through flag updates: Replace preserves the current
// Recent bit and Add/Remove requests for it are ignored.
func (m FlagsUpdateMode) Apply(cur, changes FlagSet) FlagSet {
	var result FlagSet

	switch m {
	case FlagsReplace:
		result = changes.Clone()

	case FlagsAdd:
		result = cur.AddFlagSet(changes)

	case FlagsRemove:
		result = cur.RemoveFlagSet(changes)

	default:
		result = cur.Clone()
	}

	return result.Set(FlagRecent, cur.ContainsUnchecked(FlagRecentLowerCase))
}

// UpdatedFlags reports the outcome of a flag update on one message
// projection. A no-op update echoes the unchanged ModSeq.
type UpdatedFlags struct {
	UID      UID
	ModSeq   ModSeq
	OldFlags FlagSet
	NewFlags FlagSet
}

// Changed reports whether the update actually modified the flag set.
func (u UpdatedFlags) Changed() bool {
	return !u.OldFlags.Equals(u.NewFlags)
}
