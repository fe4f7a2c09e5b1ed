// Package formatter renders records into txt, json or raw lines.
package formatter

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/lixenwraith/logpipe/core"
	"github.com/lixenwraith/logpipe/sanitizer"
)

// Output formats
const (
	FormatTxt  = sanitizer.FormatTxt
	FormatJSON = sanitizer.FormatJSON
	FormatRaw  = sanitizer.FormatRaw
)

// Formatter holds the layout options of one output. Append is safe for
// concurrent use once configured; Format reuses an internal buffer and is not.
type Formatter struct {
	sanitizer       *sanitizer.Sanitizer
	format          string
	timestampFormat string
	showTimestamp   bool
	showLevel       bool
	showCaller      bool
	showGoroutine   bool
	color           bool
	se              *sanitizer.Serializer
	buf             []byte
}

// New creates a txt formatter with the provided sanitizer, or one matching the
// format when none is given
func New(s ...*sanitizer.Sanitizer) *Formatter {
	var san *sanitizer.Sanitizer
	if len(s) > 0 && s[0] != nil {
		san = s[0]
	}
	f := &Formatter{
		sanitizer:       san,
		format:          FormatTxt,
		timestampFormat: time.RFC3339Nano,
		showTimestamp:   true,
		showLevel:       true,
		showCaller:      true,
		showGoroutine:   true,
		buf:             make([]byte, 0, 1024),
	}
	f.se = f.newSerializer()
	return f
}

// Type sets the output format ("txt", "json", or "raw")
func (f *Formatter) Type(format string) *Formatter {
	f.format = format
	f.se = f.newSerializer()
	return f
}

// TimestampFormat sets the timestamp format string
func (f *Formatter) TimestampFormat(format string) *Formatter {
	if format != "" {
		f.timestampFormat = format
	}
	return f
}

// ShowLevel sets whether to include level in output
func (f *Formatter) ShowLevel(show bool) *Formatter {
	f.showLevel = show
	return f
}

// ShowTimestamp sets whether to include timestamp in output
func (f *Formatter) ShowTimestamp(show bool) *Formatter {
	f.showTimestamp = show
	return f
}

// ShowCaller sets whether captured file, line and trace are written
func (f *Formatter) ShowCaller(show bool) *Formatter {
	f.showCaller = show
	return f
}

// ShowGoroutine sets whether the goroutine id is written
func (f *Formatter) ShowGoroutine(show bool) *Formatter {
	f.showGoroutine = show
	return f
}

// Color enables ANSI level colors in txt output
func (f *Formatter) Color(enabled bool) *Formatter {
	f.color = enabled
	return f
}

// Kind returns the configured output format
func (f *Formatter) Kind() string {
	return f.format
}

func (f *Formatter) newSerializer() *sanitizer.Serializer {
	san := f.sanitizer
	if san == nil {
		san = sanitizer.ForFormat(f.format)
	}
	return sanitizer.NewSerializer(f.format, san)
}

// Format renders rec into the internal buffer. The result is valid until the
// next call.
func (f *Formatter) Format(rec core.Record) []byte {
	f.buf = f.Append(f.buf[:0], rec)
	return f.buf
}

// Append renders rec, newline terminated, onto dst
func (f *Formatter) Append(dst []byte, rec core.Record) []byte {
	se := f.se
	switch f.format {
	case FormatJSON:
		return f.appendJSON(dst, rec, se)
	case FormatRaw:
		return f.appendRaw(dst, rec, se)
	default:
		return f.appendTxt(dst, rec, se)
	}
}

// FormatValue formats a single value according to the formatter's configuration
func (f *Formatter) FormatValue(v any) []byte {
	f.buf = f.buf[:0]
	f.convertValue(&f.buf, v, f.se, false)
	return f.buf
}

// FormatArgs formats multiple arguments as space-separated values
func (f *Formatter) FormatArgs(args ...any) []byte {
	f.buf = f.buf[:0]
	se := f.se
	for i, arg := range args {
		f.convertValue(&f.buf, arg, se, i > 0)
	}
	return f.buf
}

// convertValue provides unified type conversion
func (f *Formatter) convertValue(buf *[]byte, v any, se *sanitizer.Serializer, needsSpace bool) {
	if needsSpace && len(*buf) > 0 {
		*buf = append(*buf, ' ')
	}

	switch val := v.(type) {
	case string:
		se.WriteString(buf, val)

	case []byte:
		se.WriteString(buf, string(val))

	case rune:
		var runeStr [utf8.UTFMax]byte
		n := utf8.EncodeRune(runeStr[:], val)
		se.WriteString(buf, string(runeStr[:n]))

	case int:
		se.WriteNumber(buf, strconv.Itoa(val))

	case int64:
		se.WriteNumber(buf, strconv.FormatInt(val, 10))

	case uint:
		se.WriteNumber(buf, strconv.FormatUint(uint64(val), 10))

	case uint64:
		se.WriteNumber(buf, strconv.FormatUint(val, 10))

	case float32:
		se.WriteNumber(buf, strconv.FormatFloat(float64(val), 'f', -1, 32))

	case float64:
		se.WriteNumber(buf, strconv.FormatFloat(val, 'f', -1, 64))

	case bool:
		se.WriteBool(buf, val)

	case nil:
		se.WriteNil(buf)

	case time.Time:
		se.WriteString(buf, val.Format(f.timestampFormat))

	case time.Duration:
		se.WriteString(buf, val.String())

	case core.Level:
		se.WriteString(buf, val.String())

	case error:
		se.WriteString(buf, val.Error())

	case fmt.Stringer:
		se.WriteString(buf, val.String())

	default:
		se.WriteComplex(buf, val)
	}
}

// fieldKey names the key of a pair; a trailing value without a key gets "_extra"
func fieldKey(fields []any, i int) string {
	if i+1 >= len(fields) {
		return "_extra"
	}
	if k, ok := fields[i].(string); ok {
		return k
	}
	return fmt.Sprint(fields[i])
}

func fieldValue(fields []any, i int) any {
	if i+1 >= len(fields) {
		return fields[i]
	}
	return fields[i+1]
}

func (f *Formatter) appendTxt(buf []byte, rec core.Record, se *sanitizer.Serializer) []byte {
	needsSpace := false
	space := func() {
		if needsSpace {
			buf = append(buf, ' ')
		}
		needsSpace = true
	}

	if f.showTimestamp {
		space()
		buf = rec.Time.AppendFormat(buf, f.timestampFormat)
	}

	if f.showLevel {
		space()
		if f.color {
			buf = append(buf, rec.Level.Color()...)
			buf = append(buf, rec.Level.String()...)
			buf = append(buf, core.ColorReset()...)
		} else {
			buf = append(buf, rec.Level.String()...)
		}
	}

	if rec.Logger != "" {
		space()
		buf = append(buf, '[')
		se.WriteText(&buf, rec.Logger)
		buf = append(buf, ']')
	}

	if f.showGoroutine && rec.Goroutine != 0 {
		space()
		buf = append(buf, "g="...)
		buf = strconv.AppendUint(buf, rec.Goroutine, 10)
	}

	if f.showCaller && rec.HasCaller() {
		space()
		se.WriteText(&buf, rec.File)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(rec.Line), 10)
	}

	if f.showCaller && rec.Trace != "" {
		space()
		se.WriteText(&buf, rec.Trace)
	}

	if rec.Message != "" {
		space()
		se.WriteText(&buf, rec.Message)
	}

	for i := 0; i < len(rec.Fields); i += 2 {
		space()
		se.WriteKey(&buf, fieldKey(rec.Fields, i))
		f.convertValue(&buf, fieldValue(rec.Fields, i), se, false)
	}

	return append(buf, '\n')
}

func (f *Formatter) appendJSON(buf []byte, rec core.Record, se *sanitizer.Serializer) []byte {
	buf = append(buf, '{')
	needsComma := false
	key := func(k string) {
		if needsComma {
			buf = append(buf, ',')
		}
		se.WriteKey(&buf, k)
		needsComma = true
	}

	if f.showTimestamp {
		key("time")
		buf = append(buf, '"')
		buf = rec.Time.AppendFormat(buf, f.timestampFormat)
		buf = append(buf, '"')
	}

	if f.showLevel {
		key("level")
		se.WriteString(&buf, rec.Level.String())
	}

	if rec.Logger != "" {
		key("logger")
		se.WriteString(&buf, rec.Logger)
	}

	if f.showGoroutine && rec.Goroutine != 0 {
		key("goroutine")
		buf = strconv.AppendUint(buf, rec.Goroutine, 10)
	}

	if f.showCaller && rec.HasCaller() {
		key("caller")
		se.WriteString(&buf, rec.File+":"+strconv.Itoa(rec.Line))
		if rec.Function != "" {
			key("function")
			se.WriteString(&buf, rec.Function)
		}
	}

	if f.showCaller && rec.Trace != "" {
		key("trace")
		se.WriteString(&buf, rec.Trace)
	}

	if rec.Sequence != 0 {
		key("seq")
		buf = strconv.AppendUint(buf, rec.Sequence, 10)
	}

	key("msg")
	se.WriteString(&buf, rec.Message)

	if len(rec.Fields) > 0 {
		key("fields")
		buf = append(buf, '{')
		for i := 0; i < len(rec.Fields); i += 2 {
			if i > 0 {
				buf = append(buf, ',')
			}
			se.WriteKey(&buf, fieldKey(rec.Fields, i))
			f.convertValue(&buf, fieldValue(rec.Fields, i), se, false)
		}
		buf = append(buf, '}')
	}

	return append(buf, '}', '\n')
}

// appendRaw writes the message and the field values only
func (f *Formatter) appendRaw(buf []byte, rec core.Record, se *sanitizer.Serializer) []byte {
	start := len(buf)
	se.WriteText(&buf, rec.Message)
	for i := 0; i < len(rec.Fields); i += 2 {
		f.convertValue(&buf, fieldValue(rec.Fields, i), se, len(buf) > start)
	}
	return append(buf, '\n')
}
