package fcs

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// minEventsPerWorker keeps small data sets on a single goroutine.
const minEventsPerWorker = 16384

type fieldKind uint8

const (
	kindUint8 fieldKind = iota
	kindUint16
	kindUint32
	kindUint64
	kindFloat32
	kindFloat64
	kindASCII
)

// field is the decoding plan of one parameter.
type field struct {
	kind   fieldKind
	offset int
	width  int
	order  binary.ByteOrder

	// Log amplification: value = logOffset * 10^(decades * raw / rng).
	decades   float64
	logOffset float64
	rng       float64

	// Linear amplification: value = raw / gain.
	gain float64
}

// scale applies the amplification of integer parameters.
func (f *field) scale(v float64) float64 {
	if f.decades > 0 {
		return f.logOffset * math.Pow(10, f.decades*v/f.rng)
	}
	if f.gain != 0 {
		return v / f.gain
	}
	return v
}

type layout struct {
	fields     []field
	recordSize int
}

func newLayout(m *Metadata) *layout {
	order := m.ByteOrder.binary()
	l := &layout{fields: make([]field, len(m.Parameters))}
	for i := range m.Parameters {
		p := &m.Parameters[i]
		f := field{
			offset: p.ByteOffset,
			width:  p.ByteWidth(),
			order:  order,
		}
		switch p.DataType {
		case DataTypeInteger:
			switch p.BitLength {
			case 8:
				f.kind = kindUint8
			case 16:
				f.kind = kindUint16
			case 32:
				f.kind = kindUint32
			case 64:
				f.kind = kindUint64
			}
			// FCS 3.1 Standard. 3.2.20. Page 22.
			// The standard says f1 > 0, f2 = 0 is not valid.
			// But if it is found, handle it as $PnE/f1,1/.
			if f1, f2 := p.Amplification[0], p.Amplification[1]; f1 > 0 {
				if f2 == 0 {
					f2 = 1
				}
				f.decades, f.logOffset, f.rng = f1, f2, p.Range
			} else if p.AmplifierGain != nil && *p.AmplifierGain != 1 {
				f.gain = *p.AmplifierGain
			}
		case DataTypeFloat:
			f.kind = kindFloat32
		case DataTypeDouble:
			f.kind = kindFloat64
		case DataTypeASCII:
			f.kind = kindASCII
		}
		l.fields[i] = f
		l.recordSize += f.width
	}
	return l
}

// checkSize verifies that n bytes hold exactly numEvents records.
func (l *layout) checkSize(n, numEvents int) error {
	if l.recordSize == 0 {
		if n != 0 {
			return errors.Wrapf(ErrInvalidData, "segment is %d bytes, want 0 for empty event records", n)
		}
		return nil
	}
	if n%l.recordSize != 0 || n/l.recordSize != numEvents {
		return errors.Wrapf(ErrInvalidData, "segment is %d bytes, want %d events x %d bytes",
			n, numEvents, l.recordSize)
	}
	return nil
}

// FCS 3.1 Standard. 3.3 DATA Segment
//
// decodeData decodes seg into columns, one slice of numEvents values per parameter.
// Events are split into contiguous ranges decoded concurrently when workers > 1.
func decodeData(seg []byte, l *layout, numEvents int, columns [][]float64, workers int) error {
	if err := l.checkSize(len(seg), numEvents); err != nil {
		return err
	}
	if numEvents == 0 || len(l.fields) == 0 {
		return nil
	}

	if n := numEvents / minEventsPerWorker; n < workers {
		workers = n
	}
	if workers <= 1 {
		return l.decodeRange(seg, columns, 0, numEvents)
	}

	var g errgroup.Group
	chunk := (numEvents + workers - 1) / workers
	for lo := 0; lo < numEvents; lo += chunk {
		lo, hi := lo, min(lo+chunk, numEvents)
		g.Go(func() error {
			return l.decodeRange(seg, columns, lo, hi)
		})
	}
	return g.Wait()
}

// decodeRange decodes events [lo, hi).
func (l *layout) decodeRange(seg []byte, columns [][]float64, lo, hi int) error {
	for e := lo; e < hi; e++ {
		rec := seg[e*l.recordSize : (e+1)*l.recordSize]
		for j := range l.fields {
			f := &l.fields[j]
			b := rec[f.offset : f.offset+f.width]

			var v float64
			switch f.kind {
			case kindUint8:
				v = f.scale(float64(b[0]))
			case kindUint16:
				v = f.scale(float64(f.order.Uint16(b)))
			case kindUint32:
				v = f.scale(float64(f.order.Uint32(b)))
			case kindUint64:
				v = f.scale(float64(f.order.Uint64(b)))
			case kindFloat32:
				v = float64(math.Float32frombits(f.order.Uint32(b)))
			case kindFloat64:
				v = math.Float64frombits(f.order.Uint64(b))
			case kindASCII:
				// Digits only, padded with spaces.
				n, err := strconv.ParseUint(string(bytes.TrimSpace(b)), 10, 64)
				if err != nil {
					return errors.Wrapf(ErrInvalidData, "event %d, parameter %d: cannot parse %q as integer", e+1, j+1, b)
				}
				v = float64(n)
			}
			columns[j][e] = v
		}
	}
	return nil
}
