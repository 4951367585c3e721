package khqr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxValueLength is the largest value a two-digit length prefix can describe.
const maxValueLength = 99

var (
	// ErrFieldTooLong is returned when a value does not fit a two-digit length.
	ErrFieldTooLong = errors.New("khqr field too long")

	// ErrMalformedPayload is returned when a payload is not valid tag-length-value data.
	ErrMalformedPayload = errors.New("malformed khqr payload")
)

// Field is a single tag-length-value entry. Length is counted in characters.
type Field struct {
	Tag   string
	Value string
}

// tlvWriter serializes fields in call order. The first error sticks and later writes are no-ops.
type tlvWriter struct {
	b   strings.Builder
	err error
}

// put writes tag, length and value. Empty values are omitted.
func (w *tlvWriter) put(tag, value string) {
	if w.err != nil || value == "" {
		return
	}
	n := utf8.RuneCountInString(value)
	if n > maxValueLength {
		w.err = fmt.Errorf("%w: tag %s has %d characters", ErrFieldTooLong, tag, n)
		return
	}
	w.b.WriteString(tag)
	if n < 10 {
		w.b.WriteByte('0')
	}
	w.b.WriteString(strconv.Itoa(n))
	w.b.WriteString(value)
}

// template writes a nested template. An empty template is omitted.
func (w *tlvWriter) template(tag string, fill func(sub *tlvWriter)) {
	if w.err != nil {
		return
	}
	var sub tlvWriter
	fill(&sub)
	if sub.err != nil {
		w.err = sub.err
		return
	}
	w.put(tag, sub.b.String())
}

func (w *tlvWriter) String() string {
	return w.b.String()
}

// ParseFields splits s into top-level fields without descending into templates.
func ParseFields(s string) ([]Field, error) {
	runes := []rune(s)
	var fields []Field
	for i := 0; i < len(runes); {
		if i+4 > len(runes) {
			return nil, fmt.Errorf("%w: truncated header at offset %d", ErrMalformedPayload, i)
		}
		tag := string(runes[i : i+2])
		if !isDigits(tag) {
			return nil, fmt.Errorf("%w: bad tag %q at offset %d", ErrMalformedPayload, tag, i)
		}
		n, err := strconv.Atoi(string(runes[i+2 : i+4]))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad length for tag %s", ErrMalformedPayload, tag)
		}
		start := i + 4
		if start+n > len(runes) {
			return nil, fmt.Errorf("%w: tag %s overruns payload", ErrMalformedPayload, tag)
		}
		fields = append(fields, Field{Tag: tag, Value: string(runes[start : start+n])})
		i = start + n
	}
	return fields, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// lookup returns the first field with tag.
func lookup(fields []Field, tag string) (string, bool) {
	for _, f := range fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}
