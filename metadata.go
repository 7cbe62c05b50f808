package fcs

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// FCS 3.1 Standard. 3.2.18
// Their existence is verified before the parameters are derived.
var requiredKeywords = []string{
	"$BYTEORD",
	"$DATATYPE",
	"$MODE",
	"$NEXTDATA",
	"$PAR",
	"$TOT",
}

// FCS 3.1 Standard. 3.2.18
var requiredParameterKeywords = []string{
	"$P%dB",
	"$P%dE",
	"$P%dN",
	"$P%dR",
}

// maxASCIIWidth is the number of digits of the largest uint64.
const maxASCIIWidth = 20

// DataType is the type of the values in the DATA segment.
type DataType byte

const (
	DataTypeInteger DataType = 'I'
	DataTypeFloat   DataType = 'F'
	DataTypeDouble  DataType = 'D'
	DataTypeASCII   DataType = 'A'
)

func (t DataType) String() string {
	switch t {
	case DataTypeInteger:
		return "Integer"
	case DataTypeFloat:
		return "Float"
	case DataTypeDouble:
		return "Double"
	case DataTypeASCII:
		return "ASCII"
	}
	return fmt.Sprintf("DataType(%q)", byte(t))
}

func parseDataType(value string) (DataType, bool) {
	if len(value) != 1 {
		return 0, false
	}
	switch t := DataType(strings.ToUpper(value)[0]); t {
	case DataTypeInteger, DataTypeFloat, DataTypeDouble, DataTypeASCII:
		return t, true
	}
	return 0, false
}

// ByteOrder is the byte order of binary values in the DATA segment.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "BigEndian"
	}
	return "LittleEndian"
}

func (o ByteOrder) binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// parseByteOrder accepts the two byte orders of FCS 3.1,
// plus the 16-bit forms some FCS 3.0 writers use.
func parseByteOrder(value string) (ByteOrder, bool) {
	switch strings.ReplaceAll(value, " ", "") {
	case "1,2,3,4", "1,2":
		return LittleEndian, true
	case "4,3,2,1", "2,1":
		return BigEndian, true
	}
	return 0, false
}

// Metadata of the parameter
type Parameter struct {
	ParameterID int

	// Required
	BitLength     int        // Number of bits reserved for parameter number n. ($PnB)
	Amplification [2]float64 // Amplification type for parameter n: decades, offset. ($PnE)
	ShortName     string     // Short name for parameter n. ($PnN)
	Range         float64    // Range for parameter number n. ($PnR)

	// Optional
	Name            string   `keyword:"$PnS" json:"name,omitempty"`            // Name used for parameter n.
	AmplifierGain   *float64 `keyword:"$PnG" json:"amplifiergain,omitempty"`   // Amplifier gain used for acquisition of parameter n.
	DetectorType    string   `keyword:"$PnT" json:"detectortype,omitempty"`    // Detector type for parameter n.
	DetectorVoltage *float64 `keyword:"$PnV" json:"detectorvoltage,omitempty"` // Detector voltage for parameter n.
	OpticalFilter   string   `keyword:"$PnF" json:"opticalfilter,omitempty"`   // Name of optical filter for parameter n.

	// Non-standard parameters
	Low  *float64 `keyword:"PnLO" json:",omitempty"` // Stratedigm
	High *float64 `keyword:"PnHI" json:",omitempty"` // Stratedigm

	// Derived layout
	DataType   DataType // $DATATYPE, or $PnDATATYPE when present.
	ByteOffset int      // Offset of the value within an event record.
}

// ByteWidth returns the number of bytes the parameter occupies in an event record.
func (p *Parameter) ByteWidth() int {
	if p.DataType == DataTypeASCII {
		return p.BitLength
	}
	return p.BitLength / 8
}

// DisplayName returns the short name, followed by the long name in
// parentheses when a distinct long name exists.
func (p *Parameter) DisplayName() string {
	if p.Name == "" || p.Name == p.ShortName {
		return p.ShortName
	}
	return p.ShortName + " (" + p.Name + ")"
}

// Metadata
type Metadata struct {
	FCSVersion Version

	// Required parameters (FCS 3.1. Section 3.2.18)
	ByteOrder     ByteOrder   // Byte order for data acquisition computer. ($BYTEORD)
	DataType      DataType    // Type of data in DATA segment (ASCII, integer, floating point). ($DATATYPE)
	Mode          string      // Data mode (list mode - preferred, histogram - deprecated). ($MODE)
	NextData      int         // Byte offset to next data set in the file. ($NEXTDATA)
	NumEvents     int         // Total number of events in the data set. ($TOT)
	NumParameters int         // Number of parameters in an event. ($PAR)
	Parameters    []Parameter `json:"parameters"`

	// Resolved segment offsets, from the HEADER or from the TEXT keywords.
	Data     Segment
	Analysis Segment

	// (Some) Optional parameters (FCS 3.1. Section 3.2.19)
	BeginSupplementalText int      `keyword:"$BEGINSTEXT" json:"-"`                                          // Byte-offset to the beginning of a supplemental TEXT segment.
	EndSupplementalText   int      `keyword:"$ENDSTEXT" json:"-"`                                            // Byte-offset to the last byte of a supplemental TEXT segment.
	FileName              string   `keyword:"$FIL" json:"filename,omitempty"`                                // Name of the data file containing the data set.
	Operator              string   `keyword:"$OP" json:"operator,omitempty"`                                 // Name of flow cytometry operator.
	PlateID               string   `keyword:"$PLATEID,PLATE_ID,PLATE ID" json:"plateid,omitempty"`           // Plate identifier. Stratedigm(PLATE_ID, not globally unique). LSRII(PLATE ID)
	PlateName             string   `keyword:"$PLATENAME,PLATE NAME,SAMPLE_NAME" json:"platename,omitempty"`  // Plate name. LSRII(PLATE NAME). Stratedigm(SAMPLE_NAME)
	WellID                string   `keyword:"$WELLID,WELL ID,WELL_ID" json:"wellid,omitempty"`               // Well identifier (e.g. A07). LSRII(WELL ID) Stratedigm(WELL_ID)
	Date                  string   `keyword:"$DATE" json:"date,omitempty"`                                   // Date of data set acquisition.
	BeginTime             string   `keyword:"$BTIM" json:"begintime,omitempty"`                              // Clock time at beginning of data acquisition.
	EndTime               string   `keyword:"$ETIM" json:"endtime,omitempty"`                                // Clock time at end of data acquisition.
	ComputerSystem        string   `keyword:"$SYS" json:"computersystem,omitempty"`                          // Type of computer and its operating system.
	CytometerType         string   `keyword:"$CYT" json:"cytometertype,omitempty"`                           // Type of flow cytometer.
	CytometerSN           string   `keyword:"$CYTSN,CYTNUM" json:"cytometersn,omitempty"`                    // Flow cytometer serial number. LSRII(CYTNUM)
	TimeStep              *float64 `keyword:"$TIMESTEP" json:"timestep,omitempty"`                           // Time step for time parameter.
	Volume                string   `keyword:"$VOL" json:"volume,omitempty"`                                  // Volume of sample run during data acquisition (in nanoliters).
	SpecimenSource        string   `keyword:"$SRC" json:"specimensource,omitempty"`                          // Source of the specimen (patient name, cell types)
	SpecimenLabel         string   `keyword:"$SMNO" json:"specimenlabel,omitempty"`                          // Specimen (e.g., tube) label.
	SpecimenType          string   `keyword:"$CELLS" json:"specimentype,omitempty"`                          // Type of cells or other objects measured.
	NumLostEvent          int      `keyword:"$LOST" json:"numlostevent,omitempty"`                           // Number of events lost due to computer busy.
	NumAbortedEvent       int      `keyword:"$ABRT" json:"numabortedevent,omitempty"`                        // Events lost due to data acquisition electronic coincidence.
	Originality           string   `keyword:"$ORIGINALITY" json:"originality,omitempty"`                     // Whether the FCS data set has been modified or is original as acquired.
	Institution           string   `keyword:"$INST" json:"institution,omitempty"`                            // Institution at which data was acquired.
	Comment               string   `keyword:"$COM" json:"comment,omitempty"`                                 // Comment.
	ExperimentInitiator   string   `keyword:"$EXP" json:"experimentinitiator,omitempty"`                     // The name of the person initiating the experiment.

	// Non-standard parameters
	Software       string   `keyword:"SOFTWARE,CREATOR" json:",omitempty"`                // Stratedigm(SOFTWARE), LSRII(CREATOR)
	ExperimentName string   `keyword:"EXPERIMENT_NAME,EXPERIMENT NAME" json:",omitempty"` // Stratedigm(EXPERIMENT_NAME), LSRII(EXPERIMENT NAME)
	ExperimentID   string   `keyword:"SF_EXPERIMENT_UID" json:",omitempty"`               // Stratedigm
	TubeName       string   `keyword:"TUBE_NAME,TUBE NAME" json:",omitempty"`             // Stratedigm(TUBE_NAME), LSRII(TUBE NAME)
	FlowRate       *float64 `keyword:"#FLOWRATE" json:",omitempty"`                       // Attune

	keywords *Keywords
}

// Keywords returns the keyword store of the TEXT segment(s).
func (m *Metadata) Keywords() *Keywords {
	return m.keywords
}

// RecordSize returns the number of bytes of one event record.
func (m *Metadata) RecordSize() int {
	n := 0
	for i := range m.Parameters {
		n += m.Parameters[i].ByteWidth()
	}
	return n
}

// newMetadata validates the keywords and derives the parameter layout.
func newMetadata(version Version, kw *Keywords) (*Metadata, error) {
	for _, keyword := range requiredKeywords {
		if _, ok := kw.Get(keyword); !ok {
			return nil, &MissingKeywordError{Keyword: keyword}
		}
	}

	m := &Metadata{
		FCSVersion: version,
		keywords:   kw,
	}

	var err error
	if m.NumParameters, err = parseCount(kw, "$PAR"); err != nil {
		return nil, err
	}
	if m.NumEvents, err = parseCount(kw, "$TOT"); err != nil {
		return nil, err
	}
	if m.NextData, err = parseCount(kw, "$NEXTDATA"); err != nil {
		return nil, err
	}

	m.Mode = kw.Value("$MODE")
	if !strings.EqualFold(m.Mode, "L") {
		return nil, errors.Wrapf(ErrInvalidMetadata, "$MODE %q: only list mode is supported", m.Mode)
	}

	var ok bool
	if m.DataType, ok = parseDataType(kw.Value("$DATATYPE")); !ok {
		return nil, errors.Wrapf(ErrInvalidMetadata, "unknown $DATATYPE %q", kw.Value("$DATATYPE"))
	}
	if m.ByteOrder, ok = parseByteOrder(kw.Value("$BYTEORD")); !ok {
		return nil, errors.Wrapf(ErrInvalidData, "unknown byte order %q", kw.Value("$BYTEORD"))
	}

	for i := 1; i <= m.NumParameters; i++ {
		for _, keywordFmt := range requiredParameterKeywords {
			keyword := fmt.Sprintf(keywordFmt, i)
			if _, ok := kw.Get(keyword); !ok {
				return nil, &MissingKeywordError{Keyword: keyword}
			}
		}
	}

	if err := scanKeywords(kw, reflect.ValueOf(m).Elem(), 0); err != nil {
		return nil, err
	}

	m.Parameters = make([]Parameter, 0, m.NumParameters)
	offset := 0
	for i := 1; i <= m.NumParameters; i++ {
		p, err := newParameter(kw, i, m.DataType)
		if err != nil {
			return nil, err
		}
		if offset > math.MaxInt-p.ByteWidth() {
			return nil, errors.Wrapf(ErrInvalidData, "event record size overflows at parameter %d", i)
		}
		p.ByteOffset = offset
		offset += p.ByteWidth()
		m.Parameters = append(m.Parameters, *p)
	}
	return m, nil
}

func newParameter(kw *Keywords, i int, global DataType) (*Parameter, error) {
	p := &Parameter{
		ParameterID: i,
		ShortName:   kw.Value(fmt.Sprintf("$P%dN", i)),
		DataType:    global,
	}

	if v, ok := kw.Get(fmt.Sprintf("$P%dDATATYPE", i)); ok {
		t, ok := parseDataType(v)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidMetadata, "unknown $P%dDATATYPE %q", i, v)
		}
		p.DataType = t
	}

	bits := kw.Value(fmt.Sprintf("$P%dB", i))
	if bits == "*" {
		return nil, errors.Wrapf(ErrInvalidData, "$P%dB: delimited ASCII data is not supported", i)
	}
	n, err := strconv.Atoi(bits)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidMetadata, "cannot parse $P%dB %q as int", i, bits)
	}
	p.BitLength = n

	switch p.DataType {
	case DataTypeInteger:
		switch n {
		case 8, 16, 32, 64:
		default:
			return nil, errors.Wrapf(ErrInvalidData, "$P%dB: %d-bit integer data is not supported", i, n)
		}
	case DataTypeFloat:
		if n != 32 {
			return nil, errors.Wrapf(ErrInvalidData, "$P%dB: %d-bit float data is not supported", i, n)
		}
	case DataTypeDouble:
		if n != 64 {
			return nil, errors.Wrapf(ErrInvalidData, "$P%dB: %d-bit double data is not supported", i, n)
		}
	case DataTypeASCII:
		// For ASCII data $PnB is the number of characters.
		if n <= 0 || n > maxASCIIWidth {
			return nil, errors.Wrapf(ErrInvalidData, "$P%dB: invalid ASCII field width %d", i, n)
		}
	}

	key := fmt.Sprintf("$P%dE", i)
	if p.Amplification, err = parseFloatPair(kw.Value(key)); err != nil {
		return nil, errors.Wrap(ErrInvalidMetadata, key+": "+err.Error())
	}
	key = fmt.Sprintf("$P%dR", i)
	if p.Range, err = strconv.ParseFloat(kw.Value(key), 64); err != nil {
		return nil, errors.Wrapf(ErrInvalidMetadata, "cannot parse %s %q as float64", key, kw.Value(key))
	}
	if p.Amplification[0] > 0 && p.Range <= 0 {
		return nil, errors.Wrapf(ErrInvalidMetadata, "$P%dR must be positive for log amplification", i)
	}

	if err := scanKeywords(kw, reflect.ValueOf(p).Elem(), i); err != nil {
		return nil, err
	}
	return p, nil
}

func parseCount(kw *Keywords, keyword string) (int, error) {
	value := kw.Value(keyword)
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, errors.Wrapf(ErrInvalidMetadata, "cannot parse %s %q as a count", keyword, value)
	}
	return n, nil
}

func parseFloatPair(value string) ([2]float64, error) {
	strList := strings.Split(value, ",")
	if len(strList) != 2 {
		return [2]float64{}, fmt.Errorf("cannot parse '%s' as [2]float64", value)
	}
	f1, err := strconv.ParseFloat(strings.TrimSpace(strList[0]), 64)
	if err != nil {
		return [2]float64{}, fmt.Errorf("cannot parse '%s' as [2]float64", value)
	}
	f2, err := strconv.ParseFloat(strings.TrimSpace(strList[1]), 64)
	if err != nil {
		return [2]float64{}, fmt.Errorf("cannot parse '%s' as [2]float64", value)
	}
	return [2]float64{f1, f2}, nil
}

// scanKeywords fills the fields of v tagged with `keyword`.
// A tag lists alternative keywords separated by commas, the first one present wins.
// When param is positive, the 'n' placeholder in the tag is replaced by it.
func scanKeywords(kw *Keywords, v reflect.Value, param int) error {
	for i := 0; i < v.NumField(); i++ {
		tag := v.Type().Field(i).Tag.Get("keyword")
		if tag == "" {
			continue
		}
		for _, keyword := range strings.Split(tag, ",") {
			if param > 0 {
				if !strings.Contains(keyword, "n") {
					// panic here, since the problem will appear when testing the package with any fcs file
					panic("a keyword tag in struct Parameter does not contain 'n' as the placeholder for parameter number")
				}
				keyword = strings.Replace(keyword, "n", strconv.Itoa(param), 1)
			}
			value, ok := kw.Get(keyword)
			if !ok || value == "" {
				continue
			}
			if err := scanValueToStructField(value, v.Field(i)); err != nil {
				return errors.Wrapf(ErrInvalidMetadata, "%s: %v", keyword, err)
			}
			break
		}
	}
	return nil
}

// scanValueToStructField interprets and stores the value string according to the type of the struct field.
func scanValueToStructField(value string, field reflect.Value) error {
	switch field.Type() {
	case reflect.TypeOf(""):
		field.SetString(value)
	case reflect.TypeOf(int(0)):
		if value == "NA" {
			// In Attune's fcs file, time parameter has $P1V=NA
			return nil
		}
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cannot parse '%s' as int", value)
		}
		field.SetInt(int64(intValue))
	case reflect.PtrTo(reflect.TypeOf(float64(0))):
		if value == "NA" {
			return nil
		}
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("cannot parse '%s' as float64", value)
		}
		field.Set(reflect.ValueOf(&floatValue))
	default:
		// This should not happen if this parser is implemented correctly.
		panic(fmt.Sprintf("not parsed, unknown type: %v\n", field.Type()))
	}
	return nil
}

var fcs30Time = regexp.MustCompile(`^(\d{1,2}):(\d{1,2}):(\d{1,2}):(\d{1,2})$`)

// parseClock parses $BTIM/$ETIM values.
// FCS 3.1 uses hh:mm:ss[.cc]; FCS 3.0 uses hh:mm:ss:tt where tt is in 1/60 of a second.
// Fractional seconds are accepted by time.Parse without being in the layout.
func parseClock(value string) (time.Time, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	if m := fcs30Time.FindStringSubmatch(value); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		ss, _ := strconv.Atoi(m[3])
		tt, _ := strconv.Atoi(m[4])
		return time.Date(1, 1, 1, hh, mm, ss, int(float64(tt)/60*1e9), time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("cannot parse '%s' as time", value)
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{"02-Jan-2006", "2-Jan-2006", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse '%s' as date", value)
}

// AcquisitionTimes combines $DATE with $BTIM and $ETIM.
// When the end time precedes the begin time, acquisition is assumed to end on the next day.
func (m *Metadata) AcquisitionTimes() (begin, end time.Time, err error) {
	if m.Date == "" || m.BeginTime == "" || m.EndTime == "" {
		return begin, end, errors.Wrap(ErrInvalidMetadata, "$DATE, $BTIM and $ETIM are required for acquisition times")
	}
	date, err := parseDate(m.Date)
	if err != nil {
		return begin, end, errors.Wrap(ErrInvalidMetadata, err.Error())
	}
	bt, err := parseClock(m.BeginTime)
	if err != nil {
		return begin, end, errors.Wrap(ErrInvalidMetadata, err.Error())
	}
	et, err := parseClock(m.EndTime)
	if err != nil {
		return begin, end, errors.Wrap(ErrInvalidMetadata, err.Error())
	}

	begin = time.Date(date.Year(), date.Month(), date.Day(), bt.Hour(), bt.Minute(), bt.Second(), bt.Nanosecond(), time.UTC)
	end = time.Date(date.Year(), date.Month(), date.Day(), et.Hour(), et.Minute(), et.Second(), et.Nanosecond(), time.UTC)
	if end.Before(begin) {
		end = end.AddDate(0, 0, 1)
	}
	return begin, end, nil
}
