package imap

import "fmt"

type UIDRangeType int

const (
	// SingleRange selects exactly one UID.
	SingleRange UIDRangeType = iota

	// BetweenRange selects an inclusive UID interval.
	BetweenRange

	// FromRange selects every UID from a lower bound to the end of the mailbox.
	FromRange

	// AllRange selects every UID in the mailbox.
	AllRange
)

// UIDRange selects messages in a mailbox by UID. Gaps left by deleted UIDs
// are skipped transparently by the mappers.
type UIDRange struct {
	Type  UIDRangeType
	Start UID
	End   UID
}

func SingleUID(uid UID) UIDRange {
	return UIDRange{Type: SingleRange, Start: uid, End: uid}
}

func UIDRangeBetween(from, to UID) UIDRange {
	if to < from {
		from, to = to, from
	}

	return UIDRange{Type: BetweenRange, Start: from, End: to}
}

func UIDRangeFrom(from UID) UIDRange {
	return UIDRange{Type: FromRange, Start: from}
}

func AllUIDs() UIDRange {
	return UIDRange{Type: AllRange}
}

// Contains reports whether the UID falls inside the range.
func (r UIDRange) Contains(uid UID) bool {
	switch r.Type {
	case SingleRange:
		return uid == r.Start

	case BetweenRange:
		return uid >= r.Start && uid <= r.End

	case FromRange:
		return uid >= r.Start

	case AllRange:
		return true

	default:
		return false
	}
}

func (r UIDRange) String() string {
	switch r.Type {
	case SingleRange:
		return fmt.Sprintf("%v", r.Start)

	case BetweenRange:
		return fmt.Sprintf("%v:%v", r.Start, r.End)

	case FromRange:
		return fmt.Sprintf("%v:*", r.Start)

	default:
		return "1:*"
	}
}
