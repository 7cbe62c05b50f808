package fcs

import (
	"math"

	"github.com/pkg/errors"
)

// FlowSample is a decoded data set: its metadata and the event x parameter matrix.
//
// Values are stored by column. Each column has NumEvents values and all
// columns share one backing array.
type FlowSample struct {
	Header   Header
	Metadata *Metadata

	names   []string
	columns [][]float64
}

func newFlowSample(h Header, m *Metadata) *FlowSample {
	s := &FlowSample{
		Header:   h,
		Metadata: m,
		names:    make([]string, len(m.Parameters)),
		columns:  make([][]float64, len(m.Parameters)),
	}
	backing := make([]float64, m.NumEvents*len(m.Parameters))
	for i := range m.Parameters {
		s.names[i] = m.Parameters[i].DisplayName()
		s.columns[i] = backing[i*m.NumEvents : (i+1)*m.NumEvents : (i+1)*m.NumEvents]
	}
	return s
}

// NumEvents returns the number of rows.
func (s *FlowSample) NumEvents() int {
	return s.Metadata.NumEvents
}

// NumParameters returns the number of columns.
func (s *FlowSample) NumParameters() int {
	return len(s.columns)
}

// ColumnNames returns the display name of every parameter, in parameter order:
// the short name, or "short (long)" when a distinct long name exists.
func (s *FlowSample) ColumnNames() []string {
	return append([]string(nil), s.names...)
}

// Columns returns the values of every parameter, in parameter order.
// The slices are owned by the sample; ArcsinhTransform rewrites them in place.
func (s *FlowSample) Columns() [][]float64 {
	return append([][]float64(nil), s.columns...)
}

// Column returns the values of the named parameter.
// The name may be the display name or the short name.
func (s *FlowSample) Column(name string) ([]float64, error) {
	i, ok := s.columnIndex(name)
	if !ok {
		return nil, &ColumnNotFoundError{Name: name}
	}
	return s.columns[i], nil
}

// Event returns a copy of the i-th event, one value per parameter.
func (s *FlowSample) Event(i int) []float64 {
	row := make([]float64, len(s.columns))
	for j, col := range s.columns {
		row[j] = col[i]
	}
	return row
}

func (s *FlowSample) columnIndex(name string) (int, bool) {
	for i, n := range s.names {
		if n == name {
			return i, true
		}
	}
	for i := range s.Metadata.Parameters {
		if s.Metadata.Parameters[i].ShortName == name {
			return i, true
		}
	}
	return 0, false
}

// ArcsinhTransform replaces every value v of the named columns with asinh(v/scale).
//
// All names are resolved before any value changes, so an unknown name leaves
// the sample untouched. The transform is applied again on every call.
func (s *FlowSample) ArcsinhTransform(scale float64, columns ...string) error {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return errors.Wrapf(ErrInvalidScale, "arcsinh scale %v", scale)
	}

	indices := make([]int, 0, len(columns))
	seen := make(map[int]bool, len(columns))
	for _, name := range columns {
		i, ok := s.columnIndex(name)
		if !ok {
			return &ColumnNotFoundError{Name: name}
		}
		if !seen[i] {
			seen[i] = true
			indices = append(indices, i)
		}
	}

	for _, i := range indices {
		col := s.columns[i]
		for j, v := range col {
			col[j] = math.Asinh(v / scale)
		}
	}
	return nil
}
