package fcs_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// fcsBuilder assembles a synthetic FCS file.
type fcsBuilder struct {
	version   string
	delimiter byte
	keywords  [][2]string
	data      []byte

	// dataInText leaves the DATA offsets of the HEADER at zero.
	dataInText bool
	// overflowHeader writes the overflow value as the DATA end offset.
	overflowHeader bool
	// omitDataKeywords leaves out $BEGINDATA and $ENDDATA.
	omitDataKeywords bool
}

func newBuilder() *fcsBuilder {
	return &fcsBuilder{version: "FCS3.1", delimiter: '/'}
}

func (b *fcsBuilder) set(key, value string) *fcsBuilder {
	for i := range b.keywords {
		if b.keywords[i][0] == key {
			b.keywords[i][1] = value
			return b
		}
	}
	b.keywords = append(b.keywords, [2]string{key, value})
	return b
}

func (b *fcsBuilder) remove(key string) *fcsBuilder {
	for i := range b.keywords {
		if b.keywords[i][0] == key {
			b.keywords = append(b.keywords[:i], b.keywords[i+1:]...)
			return b
		}
	}
	return b
}

func (b *fcsBuilder) escape(s string) string {
	d := string(b.delimiter)
	return string(bytes.ReplaceAll([]byte(s), []byte(d), []byte(d+d)))
}

func (b *fcsBuilder) text(dataBegin, dataEnd int) []byte {
	var buf bytes.Buffer
	buf.WriteByte(b.delimiter)
	for _, kv := range b.keywords {
		buf.WriteString(b.escape(kv[0]))
		buf.WriteByte(b.delimiter)
		buf.WriteString(b.escape(kv[1]))
		buf.WriteByte(b.delimiter)
	}
	if !b.omitDataKeywords {
		fmt.Fprintf(&buf, "$BEGINDATA%c%d%c$ENDDATA%c%d%c",
			b.delimiter, dataBegin, b.delimiter, b.delimiter, dataEnd, b.delimiter)
	}
	return buf.Bytes()
}

func (b *fcsBuilder) build() []byte {
	const textBegin = 58

	var text []byte
	dataBegin, dataEnd := 0, 0
	for {
		text = b.text(dataBegin, dataEnd)
		if len(b.data) == 0 {
			break
		}
		begin := textBegin + len(text)
		end := begin + len(b.data) - 1
		if begin == dataBegin && end == dataEnd {
			break
		}
		dataBegin, dataEnd = begin, end
	}
	textEnd := textBegin + len(text) - 1

	hBegin, hEnd := dataBegin, dataEnd
	if b.dataInText {
		hBegin, hEnd = 0, 0
	}
	if b.overflowHeader {
		hEnd = 99999999
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%-6s    %8d%8d%8d%8d%8d%8d", b.version, textBegin, textEnd, hBegin, hEnd, 0, 0)
	buf.Write(text)
	buf.Write(b.data)
	return buf.Bytes()
}

func (b *fcsBuilder) writeFile(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.fcs")
	require.NoError(t, os.WriteFile(path, b.build(), 0o644))
	return path
}

// param describes one parameter of a synthetic data set.
type param struct {
	name     string
	longName string
	bits     int
}

// listModeBuilder returns a builder with the keywords of a list mode data set.
func listModeBuilder(datatype string, order binary.AppendByteOrder, events int, params ...param) *fcsBuilder {
	byteord := "1,2,3,4"
	if order == binary.BigEndian {
		byteord = "4,3,2,1"
	}
	b := newBuilder().
		set("$BYTEORD", byteord).
		set("$DATATYPE", datatype).
		set("$MODE", "L").
		set("$NEXTDATA", "0").
		set("$PAR", strconv.Itoa(len(params))).
		set("$TOT", strconv.Itoa(events))
	for i, p := range params {
		n := i + 1
		b.set(fmt.Sprintf("$P%dB", n), strconv.Itoa(p.bits))
		b.set(fmt.Sprintf("$P%dE", n), "0,0")
		b.set(fmt.Sprintf("$P%dN", n), p.name)
		b.set(fmt.Sprintf("$P%dR", n), "262144")
		if p.longName != "" {
			b.set(fmt.Sprintf("$P%dS", n), p.longName)
		}
	}
	return b
}

// encodeValue appends v encoded as datatype with the given bit width.
func encodeValue(buf []byte, order binary.AppendByteOrder, datatype string, bits int, v float64) []byte {
	switch datatype {
	case "F":
		return order.AppendUint32(buf, math.Float32bits(float32(v)))
	case "D":
		return order.AppendUint64(buf, math.Float64bits(v))
	case "A":
		return append(buf, fmt.Sprintf("%*d", bits, int64(v))...)
	}
	switch bits {
	case 8:
		return append(buf, uint8(v))
	case 16:
		return order.AppendUint16(buf, uint16(v))
	case 32:
		return order.AppendUint32(buf, uint32(v))
	default:
		return order.AppendUint64(buf, uint64(v))
	}
}

// encodeEvents encodes events row by row.
func encodeEvents(order binary.AppendByteOrder, datatype string, params []param, events [][]float64) []byte {
	var buf []byte
	for _, row := range events {
		for j, p := range params {
			buf = encodeValue(buf, order, datatype, p.bits, row[j])
		}
	}
	return buf
}
