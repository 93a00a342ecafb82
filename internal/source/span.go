package source

// Span is a half-open byte range of one file snapshot.
type Span struct {
	File  FileID
	Start uint32 // в байтах включительно
	End   uint32 // в байтах не включительно
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

// Overlaps reports whether two spans of the same file share at least one byte.
// Spans are half-open. Two empty spans overlap only when they sit at the same
// offset; an empty span overlaps a non-empty one when it sits at its start or
// strictly inside it.
func (s Span) Overlaps(other Span) bool {
	if s.File != other.File {
		return false
	}
	if s.Empty() && other.Empty() {
		return s.Start == other.Start
	}
	if s.Empty() {
		return other.Start <= s.Start && s.Start < other.End
	}
	if other.Empty() {
		return s.Start <= other.Start && other.Start < s.End
	}
	return s.Start < other.End && other.Start < s.End
}
