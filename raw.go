package fcs

import (
	"fmt"
)

// Segment is an inclusive byte range [Begin, End] within the file.
// The zero Segment denotes an absent segment.
type Segment struct {
	Begin int
	End   int
}

// IsZero reports whether the segment is absent.
func (s Segment) IsZero() bool {
	return s.Begin == 0 && s.End == 0
}

// Len returns the number of bytes covered by the segment.
func (s Segment) Len() int {
	if s.IsZero() {
		return 0
	}
	return s.End - s.Begin + 1
}

func (s Segment) String() string {
	return fmt.Sprintf("[%d,%d]", s.Begin, s.End)
}

// rawFile is the whole file held in memory. It is never modified.
type rawFile []byte

// contains reports whether s lies within the file.
func (f rawFile) contains(s Segment) bool {
	if s.IsZero() {
		return true
	}
	return s.Begin >= 0 && s.End >= s.Begin && s.End < len(f)
}

// segment returns the bytes of s without copying.
// The caller must have checked the bounds with contains.
func (f rawFile) segment(s Segment) []byte {
	if s.IsZero() {
		return nil
	}
	return f[s.Begin : s.End+1 : s.End+1]
}
