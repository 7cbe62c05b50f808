// Package fcs implements a FCS (Flow Cytometry Standard) 3.0 and 3.1 file decoder.
package fcs

import (
	"io"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Decoder decodes an FCS file held in memory.
// A Decoder is not safe for concurrent use; the FlowSample values it returns
// are independent of each other.
type Decoder struct {
	r    io.Reader
	opts options
	log  *zap.Logger

	buf      rawFile
	header   *Header
	metadata *Metadata
}

// NewDecoder returns a decoder for the FCS format (FCS 3.0, 3.1).
// The whole input is read into memory on first use.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	o := buildOptions(opts)
	return &Decoder{
		r:    r,
		opts: o,
		log:  o.logger.With(zap.String("service", "fcs")),
	}
}

func newBytesDecoder(buf []byte, o options) *Decoder {
	return &Decoder{
		opts: o,
		log:  o.logger.With(zap.String("service", "fcs")),
		buf:  buf,
	}
}

func (dec *Decoder) load() error {
	if dec.buf != nil {
		return nil
	}
	// One byte over the limit tells an oversized input apart.
	limit := dec.opts.maxFileSize
	if limit < math.MaxInt64 {
		limit++
	}
	buf, err := io.ReadAll(io.LimitReader(dec.r, limit))
	if err != nil {
		return &IOError{Err: err}
	}
	if int64(len(buf)) > dec.opts.maxFileSize {
		return errors.Wrapf(ErrTooLarge, "input exceeds %s", humanize.IBytes(uint64(dec.opts.maxFileSize)))
	}
	dec.buf = buf
	return nil
}

// DecodeMetadata decodes and returns only the HEADER and TEXT segments.
func (dec *Decoder) DecodeMetadata() (*Metadata, error) {
	if dec.metadata != nil {
		return dec.metadata, nil
	}
	if err := dec.load(); err != nil {
		return nil, err
	}

	// Read header
	h, err := ParseHeader(dec.buf)
	if err != nil {
		return nil, err
	}
	dec.log.Debug("Decoded header",
		zap.String("version", string(h.Version)),
		zap.Stringer("text", h.Text),
		zap.Stringer("data", h.Data),
		zap.Stringer("analysis", h.Analysis))

	// Read TEXT segment
	kw, err := ParseText(dec.buf.segment(h.Text))
	if err != nil {
		return nil, err
	}
	if err := dec.mergeSupplementalText(kw); err != nil {
		return nil, err
	}
	if dups := kw.Duplicates(); len(dups) > 0 {
		dec.log.Warn("Duplicate keywords ignored, first occurrence kept", zap.Strings("keywords", dups))
	}
	dec.log.Debug("Decoded TEXT segment", zap.Int("keywords", kw.Len()))

	m, err := newMetadata(h.Version, kw)
	if err != nil {
		return nil, err
	}

	if m.Data, err = dec.resolveSegment(h.Data, kw, "$BEGINDATA", "$ENDDATA", true); err != nil {
		return nil, err
	}
	if m.Analysis, err = dec.resolveSegment(h.Analysis, kw, "$BEGINANALYSIS", "$ENDANALYSIS", false); err != nil {
		return nil, err
	}
	if m.NextData != 0 {
		dec.log.Warn("File contains multiple data sets, only the first one is decoded", zap.Int("nextdata", m.NextData))
	}

	dec.header = h
	dec.metadata = m
	return m, nil
}

// mergeSupplementalText adds the keywords of the supplemental TEXT segment, if any.
// Keywords of the primary TEXT segment take precedence.
func (dec *Decoder) mergeSupplementalText(kw *Keywords) error {
	begin, okBegin := kw.Get("$BEGINSTEXT")
	end, okEnd := kw.Get("$ENDSTEXT")
	if !okBegin || !okEnd {
		return nil
	}
	s, err := parseSegment(begin, end)
	if err != nil {
		return errors.Wrapf(ErrInvalidMetadata, "supplemental TEXT offsets: %v", err)
	}
	if s.IsZero() {
		return nil
	}
	if !dec.buf.contains(s) {
		return errors.Wrapf(ErrInvalidMetadata, "supplemental TEXT segment %v out of bounds", s)
	}
	supp, err := ParseText(dec.buf.segment(s))
	if err != nil {
		return err
	}
	kw.merge(supp)
	dec.log.Debug("Merged supplemental TEXT segment", zap.Stringer("segment", s), zap.Int("keywords", supp.Len()))
	return nil
}

// resolveSegment returns the segment given in the HEADER, or the one given by
// the TEXT keywords when the HEADER offsets are zero or overflowed.
func (dec *Decoder) resolveSegment(s Segment, kw *Keywords, beginKey, endKey string, required bool) (Segment, error) {
	if !deferred(s) {
		return s, nil
	}
	begin, okBegin := kw.Get(beginKey)
	end, okEnd := kw.Get(endKey)
	switch {
	case !okBegin && required:
		return Segment{}, &MissingKeywordError{Keyword: beginKey}
	case !okEnd && required:
		return Segment{}, &MissingKeywordError{Keyword: endKey}
	case !okBegin || !okEnd:
		return Segment{}, nil
	}

	resolved, err := parseSegment(begin, end)
	if err != nil {
		return Segment{}, errors.Wrapf(ErrInvalidMetadata, "%s/%s: %v", beginKey, endKey, err)
	}
	if !dec.buf.contains(resolved) {
		return Segment{}, errors.Wrapf(ErrInvalidMetadata, "%s/%s segment %v out of bounds", beginKey, endKey, resolved)
	}
	return resolved, nil
}

func parseSegment(begin, end string) (Segment, error) {
	b, err := strconv.Atoi(begin)
	if err != nil {
		return Segment{}, errors.Errorf("cannot parse begin offset %q", begin)
	}
	e, err := strconv.Atoi(end)
	if err != nil {
		return Segment{}, errors.Errorf("cannot parse end offset %q", end)
	}
	if b < 0 || e < 0 {
		return Segment{}, errors.Errorf("negative offset %d,%d", b, e)
	}
	return Segment{b, e}, nil
}

// Decode decodes and returns the metadata and the data as a FlowSample.
// Every call returns a new FlowSample that shares nothing mutable with the others.
func (dec *Decoder) Decode() (*FlowSample, error) {
	m, err := dec.DecodeMetadata()
	if err != nil {
		return nil, err
	}

	if m.NumEvents > dec.opts.maxEvents {
		return nil, errors.Wrapf(ErrTooLarge, "%s events exceed the limit of %s",
			humanize.Comma(int64(m.NumEvents)), humanize.Comma(int64(dec.opts.maxEvents)))
	}

	l := newLayout(m)
	dec.log.Debug("Decoding DATA segment",
		zap.Stringer("segment", m.Data),
		zap.Stringer("datatype", m.DataType),
		zap.Stringer("byteorder", m.ByteOrder),
		zap.Int("events", m.NumEvents),
		zap.Int("parameters", m.NumParameters),
		zap.Int("recordsize", l.recordSize))

	if err := l.checkSize(m.Data.Len(), m.NumEvents); err != nil {
		return nil, err
	}
	s := newFlowSample(*dec.header, m)
	if err := decodeData(dec.buf.segment(m.Data), l, m.NumEvents, s.columns, dec.opts.workers); err != nil {
		return nil, err
	}
	return s, nil
}
