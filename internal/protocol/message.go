package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/xdtk/internal/geom"
)

// Separator delimits fields on the wire.
const Separator = ","

// Message is one decoded datagram before header-specific parsing.
type Message struct {
	Timestamp int64
	Header    string
	Fields    []string
}

// Decode splits a raw line into timestamp, header and fields.
// Surrounding whitespace, including a trailing newline, is ignored.
func Decode(line string) (Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Message{}, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	parts := strings.Split(line, Separator)
	if len(parts) < 2 || parts[1] == "" {
		return Message{}, fmt.Errorf("%w: missing header", ErrMalformed)
	}

	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("%w: timestamp %q", ErrInvalidField, parts[0])
	}

	return Message{
		Timestamp: ts,
		Header:    parts[1],
		Fields:    parts[2:],
	}, nil
}

// Encode renders m in wire form. Decode(m.Encode()) returns m.
func (m Message) Encode() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(m.Timestamp, 10))
	b.WriteString(Separator)
	b.WriteString(m.Header)
	for _, f := range m.Fields {
		b.WriteString(Separator)
		b.WriteString(f)
	}
	return b.String()
}

// fieldReader pulls typed values out of Message.Fields and remembers the
// first failure, so a parse function can read every field and check once.
type fieldReader struct {
	header string
	fields []string
	err    error
}

func newFieldReader(m Message, want int) (*fieldReader, error) {
	if len(m.Fields) < want {
		return nil, fmt.Errorf("%w: %s needs %d fields, got %d", ErrMalformed, m.Header, want, len(m.Fields))
	}
	return &fieldReader{header: m.Header, fields: m.Fields}, nil
}

func (r *fieldReader) fail(i int, kind string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s field %d %q is not %s", ErrInvalidField, r.header, i, r.fields[i], kind)
	}
}

func (r *fieldReader) intAt(i int) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.fields[i]))
	if err != nil {
		r.fail(i, "an integer")
	}
	return v
}

func (r *fieldReader) floatAt(i int) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(r.fields[i]), 64)
	if err != nil {
		r.fail(i, "a number")
	} else if math.IsNaN(v) || math.IsInf(v, 0) {
		r.fail(i, "a finite number")
	}
	return v
}

func (r *fieldReader) stringAt(i int) string {
	return r.fields[i]
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (r *fieldReader) vec3At(i int) geom.Vec3 {
	return geom.Vec3{X: r.floatAt(i), Y: r.floatAt(i + 1), Z: r.floatAt(i + 2)}
}

func (r *fieldReader) quatAt(i int) geom.Quat {
	return geom.Quat{X: r.floatAt(i), Y: r.floatAt(i + 1), Z: r.floatAt(i + 2), W: r.floatAt(i + 3)}
}
