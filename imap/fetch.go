package imap

// FetchType controls how deeply a message is hydrated when read back from a
// mapper. Callers must not rely on fields outside the requested depth being
// populated.
type FetchType int

const (
	// FetchMetadata loads UID, ModSeq, flags, sizes and dates only.
	FetchMetadata FetchType = iota

	// FetchHeaders additionally loads the header bytes. Attachments are not loaded.
	FetchHeaders

	// FetchBody additionally loads the body bytes and the attachment list.
	FetchBody

	// FetchFull loads the full raw content, including attachments.
	FetchFull
)

// Includes reports whether a fetch at this depth hydrates everything the
// other depth would.
func (f FetchType) Includes(other FetchType) bool {
	return f >= other
}

func (f FetchType) String() string {
	switch f {
	case FetchMetadata:
		return "Metadata"

	case FetchHeaders:
		return "Headers"

	case FetchBody:
		return "Body"

	case FetchFull:
		return "Full"

	default:
		return "Unknown"
	}
}
