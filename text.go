package fcs

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
)

// Keyword is a single keyword-value pair of the TEXT segment.
type Keyword struct {
	Key   string
	Value string
}

// Keywords is the ordered keyword-value store of a TEXT segment.
// Lookups are case-insensitive, while keys keep the case and order found in the file.
// When a keyword appears more than once, the first occurrence wins.
type Keywords struct {
	delimiter  byte
	entries    []Keyword
	index      map[string]int
	duplicates []string
}

func newKeywords(delimiter byte) *Keywords {
	return &Keywords{
		delimiter: delimiter,
		index:     make(map[string]int),
	}
}

func foldKey(key string) string {
	return cases.Fold().String(key)
}

// add appends a keyword unless one with the same folded key exists.
// It reports whether the keyword was added.
func (k *Keywords) add(key, value string) bool {
	folded := foldKey(key)
	if _, ok := k.index[folded]; ok {
		k.duplicates = append(k.duplicates, key)
		return false
	}
	k.index[folded] = len(k.entries)
	k.entries = append(k.entries, Keyword{Key: key, Value: value})
	return true
}

// merge adds the keywords of other that are not already present.
func (k *Keywords) merge(other *Keywords) {
	for _, kw := range other.entries {
		k.add(kw.Key, kw.Value)
	}
	k.duplicates = append(k.duplicates, other.duplicates...)
}

// Get returns the value of key and whether it is present.
func (k *Keywords) Get(key string) (string, bool) {
	i, ok := k.index[foldKey(key)]
	if !ok {
		return "", false
	}
	return k.entries[i].Value, true
}

// Value returns the value of key, or "" when it is absent.
func (k *Keywords) Value(key string) string {
	v, _ := k.Get(key)
	return v
}

// Len returns the number of distinct keywords.
func (k *Keywords) Len() int {
	return len(k.entries)
}

// Keys returns all keywords following the order in the file.
func (k *Keywords) Keys() []string {
	keys := make([]string, len(k.entries))
	for i, kw := range k.entries {
		keys[i] = kw.Key
	}
	return keys
}

// All returns a copy of the keyword-value pairs in file order.
func (k *Keywords) All() []Keyword {
	return append([]Keyword(nil), k.entries...)
}

// Delimiter returns the delimiter byte of the TEXT segment.
func (k *Keywords) Delimiter() byte {
	return k.delimiter
}

// Duplicates returns the keywords that were dropped because an earlier
// occurrence of the same keyword exists.
func (k *Keywords) Duplicates() []string {
	return k.duplicates
}

// ParseText parses a TEXT segment.
//
// The first byte is the delimiter. A doubled delimiter stands for one literal
// delimiter character and does not separate fields. The final delimiter of
// the segment may be omitted.
func ParseText(buf []byte) (*Keywords, error) {
	if len(buf) < 2 {
		return nil, errors.Wrap(ErrInvalidText, "segment is empty")
	}
	delimiter := buf[0]

	var (
		tokens []string
		token  []byte
	)
	for i := 1; i < len(buf); i++ {
		c := buf[i]
		if c != delimiter {
			token = append(token, c)
			continue
		}
		if i+1 < len(buf) && buf[i+1] == delimiter {
			token = append(token, delimiter)
			i++
			continue
		}
		tokens = append(tokens, string(token))
		token = token[:0]
	}
	if len(token) > 0 {
		tokens = append(tokens, string(token))
	}

	if len(tokens) == 0 {
		return nil, errors.Wrap(ErrInvalidText, "segment holds no keywords")
	}
	if len(tokens)%2 != 0 {
		return nil, errors.Wrapf(ErrInvalidText, "odd number of fields (%d)", len(tokens))
	}

	kw := newKeywords(delimiter)
	for i := 0; i < len(tokens); i += 2 {
		key := strings.TrimSpace(tokens[i])
		if key == "" {
			return nil, errors.Wrapf(ErrInvalidText, "empty keyword at field %d", i)
		}
		// Additional spaces are seen in LSRII's fcs files.
		kw.add(key, strings.TrimSpace(tokens[i+1]))
	}
	return kw, nil
}
