package fcs

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Version is the FCS version tag found in the first six bytes of a file.
type Version string

const (
	Version30 Version = "FCS3.0"
	Version31 Version = "FCS3.1"
)

const (
	headerLength = 58

	// offsetOverflow is written by some instruments in the 8-byte header
	// fields when the true offset does not fit.
	offsetOverflow = 99999999
)

// Header holds the version and the segment offsets of the HEADER segment.
//
// A zero Data or Analysis segment, or one whose end is the overflow value,
// is resolved from the TEXT keywords by the Decoder.
type Header struct {
	Version  Version
	Text     Segment
	Data     Segment
	Analysis Segment
}

// ParseHeader parses the HEADER segment at the beginning of buf.
// Offsets are checked against len(buf), which must be the size of the whole file.
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < 6 {
		return nil, errors.Wrap(ErrInvalidHeader, "file shorter than version tag")
	}

	// FCS Version: 00-05
	tag := string(buf[:6])
	if !strings.HasPrefix(tag, "FCS") {
		return nil, errors.Wrapf(ErrInvalidHeader, "unrecognized version tag %q", tag)
	}
	switch Version(tag) {
	case Version30, Version31:
	default:
		return nil, errors.Wrapf(ErrUnsupportedVersion, "%s (must be FCS3.0 or FCS3.1)", tag)
	}

	if len(buf) < headerLength {
		return nil, errors.Wrapf(ErrInvalidHeader, "header is %d bytes, want %d", len(buf), headerLength)
	}

	// Spaces: 06-09
	for _, c := range buf[6:10] {
		if c != ' ' {
			return nil, errors.Wrap(ErrInvalidHeader, "version tag not followed by spaces")
		}
	}

	// Offsets of TEXT, DATA, ANALYSIS: 10-57
	var offsets [6]int
	for i := range offsets {
		field := bytes.TrimSpace(buf[10+8*i : 18+8*i])
		if len(field) == 0 && i >= 4 {
			// ANALYSIS offsets may be left blank.
			continue
		}
		n, err := strconv.Atoi(string(field))
		if err != nil || n < 0 {
			return nil, errors.Wrapf(ErrInvalidHeader, "offset field %d is %q", i, field)
		}
		offsets[i] = n
	}

	h := &Header{
		Version:  Version(tag),
		Text:     Segment{offsets[0], offsets[1]},
		Data:     Segment{offsets[2], offsets[3]},
		Analysis: Segment{offsets[4], offsets[5]},
	}

	f := rawFile(buf)
	if h.Text.IsZero() || h.Text.Begin < headerLength || !f.contains(h.Text) {
		return nil, errors.Wrapf(ErrInvalidHeader, "TEXT segment %v out of bounds", h.Text)
	}
	if !deferred(h.Data) && !f.contains(h.Data) {
		return nil, errors.Wrapf(ErrInvalidHeader, "DATA segment %v out of bounds", h.Data)
	}
	if !deferred(h.Analysis) && !f.contains(h.Analysis) {
		return nil, errors.Wrapf(ErrInvalidHeader, "ANALYSIS segment %v out of bounds", h.Analysis)
	}
	return h, nil
}

// deferred reports whether the offsets of s must be read from the TEXT segment.
func deferred(s Segment) bool {
	return s.IsZero() || s.End == offsetOverflow
}
