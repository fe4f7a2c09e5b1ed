// Package sanitizer provides a fluent and composable interface for sanitizing
// strings based on configurable rules using bitwise filter flags and transforms,
// and format-aware serializing of record values.
package sanitizer

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/davecgh/go-spew/spew"
)

// Filter flags for character matching
const (
	FilterNonPrintable uint64 = 1 << iota // Runes strconv.IsPrint rejects
	FilterControl                         // unicode.IsControl
	FilterWhitespace                      // unicode.IsSpace
	FilterShellSpecial                    // '`', '$', ';', '|', '&', '>', '<', '(', ')', '#'
)

// Transform flags for character transformation
const (
	TransformStrip      uint64 = 1 << iota // Removes the character
	TransformHexEncode                     // Encodes the character's UTF-8 bytes as "<XXYY>"
	TransformJSONEscape                    // Escapes the character with JSON-style backslashes
)

// Output formats understood by Serializer
const (
	FormatTxt  = "txt"
	FormatJSON = "json"
	FormatRaw  = "raw"
)

// PolicyPreset defines pre-configured sanitization policies
type PolicyPreset string

const (
	PolicyRaw   PolicyPreset = "raw"   // no-op
	PolicyJSON  PolicyPreset = "json"  // strings embedded in JSON
	PolicyTxt   PolicyPreset = "txt"   // text written to log files and terminals
	PolicyShell PolicyPreset = "shell" // arguments passed to shell commands
)

type rule struct {
	filter    uint64
	transform uint64
}

var policyRules = map[PolicyPreset][]rule{
	PolicyRaw:   {},
	PolicyTxt:   {{filter: FilterNonPrintable, transform: TransformHexEncode}},
	PolicyJSON:  {{filter: FilterControl, transform: TransformJSONEscape}},
	PolicyShell: {{filter: FilterShellSpecial | FilterWhitespace, transform: TransformStrip}},
}

// filterCheckers is ordered so rule evaluation is deterministic
var filterCheckers = []struct {
	flag  uint64
	check func(rune) bool
}{
	{FilterNonPrintable, func(r rune) bool { return !strconv.IsPrint(r) }},
	{FilterControl, unicode.IsControl},
	{FilterWhitespace, unicode.IsSpace},
	{FilterShellSpecial, isShellSpecial},
}

func isShellSpecial(r rune) bool {
	switch r {
	case '`', '$', ';', '|', '&', '>', '<', '(', ')', '#':
		return true
	}
	return false
}

// Sanitizer holds an ordered rule set. It is immutable once configured and
// safe for concurrent use.
type Sanitizer struct {
	rules []rule
}

// New creates a passthrough Sanitizer
func New() *Sanitizer {
	return &Sanitizer{}
}

// ForFormat returns a Sanitizer with the policy matching an output format
func ForFormat(format string) *Sanitizer {
	switch format {
	case FormatJSON:
		return New().Policy(PolicyJSON)
	case FormatTxt:
		return New().Policy(PolicyTxt)
	default:
		return New()
	}
}

// Rule appends a custom rule, earlier rules win
func (s *Sanitizer) Rule(filter uint64, transform uint64) *Sanitizer {
	s.rules = append(s.rules, rule{filter: filter, transform: transform})
	return s
}

// Policy appends the rules of a preset
func (s *Sanitizer) Policy(preset PolicyPreset) *Sanitizer {
	if rules, ok := policyRules[preset]; ok {
		s.rules = append(s.rules, rules...)
	}
	return s
}

// Sanitize applies all configured rules to data
func (s *Sanitizer) Sanitize(data string) string {
	if len(s.rules) == 0 {
		return data
	}
	return string(s.Append(make([]byte, 0, len(data)), data))
}

// Append appends the sanitized form of data to dst
func (s *Sanitizer) Append(dst []byte, data string) []byte {
	if len(s.rules) == 0 {
		return append(dst, data...)
	}
	for _, r := range data {
		matched := false
		for _, rl := range s.rules {
			if matchesFilter(r, rl.filter) {
				dst = applyTransform(dst, r, rl.transform)
				matched = true
				break
			}
		}
		if !matched {
			dst = utf8.AppendRune(dst, r)
		}
	}
	return dst
}

func matchesFilter(r rune, filterMask uint64) bool {
	for _, fc := range filterCheckers {
		if filterMask&fc.flag != 0 && fc.check(r) {
			return true
		}
	}
	return false
}

func applyTransform(buf []byte, r rune, transformMask uint64) []byte {
	switch {
	case transformMask&TransformStrip != 0:
		return buf

	case transformMask&TransformHexEncode != 0:
		var runeBytes [utf8.UTFMax]byte
		n := utf8.EncodeRune(runeBytes[:], r)
		buf = append(buf, '<')
		buf = hex.AppendEncode(buf, runeBytes[:n])
		return append(buf, '>')

	case transformMask&TransformJSONEscape != 0:
		return appendJSONEscaped(buf, r)
	}
	return utf8.AppendRune(buf, r)
}

func appendJSONEscaped(buf []byte, r rune) []byte {
	switch r {
	case '\n':
		return append(buf, '\\', 'n')
	case '\r':
		return append(buf, '\\', 'r')
	case '\t':
		return append(buf, '\\', 't')
	case '\b':
		return append(buf, '\\', 'b')
	case '\f':
		return append(buf, '\\', 'f')
	case '"':
		return append(buf, '\\', '"')
	case '\\':
		return append(buf, '\\', '\\')
	}
	if r < 0x20 || r == 0x7f {
		return fmt.Appendf(buf, "\\u%04x", r)
	}
	return utf8.AppendRune(buf, r)
}

var keySanitizer = ForFormat(FormatTxt)

// Serializer implements format-specific output of values
type Serializer struct {
	format    string
	sanitizer *Sanitizer
}

// NewSerializer creates a serializer for format; a nil sanitizer passes strings through
func NewSerializer(format string, san *Sanitizer) *Serializer {
	if san == nil {
		san = New()
	}
	return &Serializer{format: format, sanitizer: san}
}

// Format returns the output format of the serializer
func (se *Serializer) Format() string {
	return se.format
}

// WriteString writes a string value
func (se *Serializer) WriteString(buf *[]byte, s string) {
	switch se.format {
	case FormatRaw:
		*buf = se.sanitizer.Append(*buf, s)

	case FormatTxt:
		sanitized := se.sanitizer.Sanitize(s)
		if !se.NeedsQuotes(sanitized) {
			*buf = append(*buf, sanitized...)
			return
		}
		*buf = append(*buf, '"')
		for i := 0; i < len(sanitized); i++ {
			if sanitized[i] == '"' || sanitized[i] == '\\' {
				*buf = append(*buf, '\\')
			}
			*buf = append(*buf, sanitized[i])
		}
		*buf = append(*buf, '"')

	case FormatJSON:
		*buf = appendJSONString(*buf, s)
	}
}

// WriteText writes free text such as a message: sanitized, never quoted in txt
func (se *Serializer) WriteText(buf *[]byte, s string) {
	if se.format == FormatJSON {
		*buf = appendJSONString(*buf, s)
		return
	}
	*buf = se.sanitizer.Append(*buf, s)
}

// WriteKey writes a field key followed by its separator
func (se *Serializer) WriteKey(buf *[]byte, key string) {
	switch se.format {
	case FormatJSON:
		*buf = appendJSONString(*buf, key)
		*buf = append(*buf, ':')
	case FormatTxt:
		*buf = keySanitizer.Append(*buf, key)
		*buf = append(*buf, '=')
	default:
		*buf = append(*buf, key...)
		*buf = append(*buf, '=')
	}
}

func appendJSONString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= ' ' && c != '"' && c != '\\' && c < 0x7f {
			start := i
			for i < len(s) && s[i] >= ' ' && s[i] != '"' && s[i] != '\\' && s[i] < 0x7f {
				i++
			}
			buf = append(buf, s[start:i]...)
			continue
		}
		if c < utf8.RuneSelf {
			buf = appendJSONEscaped(buf, rune(c))
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf = append(buf, `\ufffd`...)
		} else {
			buf = append(buf, s[i:i+size]...)
		}
		i += size
	}
	return append(buf, '"')
}

// WriteNumber writes a number value
func (se *Serializer) WriteNumber(buf *[]byte, n string) {
	*buf = append(*buf, n...)
}

// WriteBool writes a boolean value
func (se *Serializer) WriteBool(buf *[]byte, b bool) {
	*buf = strconv.AppendBool(*buf, b)
}

// WriteNil writes a nil value
func (se *Serializer) WriteNil(buf *[]byte) {
	if se.format == FormatRaw {
		*buf = append(*buf, "nil"...)
		return
	}
	*buf = append(*buf, "null"...)
}

// WriteComplex writes maps, structs, slices and other composite values
func (se *Serializer) WriteComplex(buf *[]byte, v any) {
	switch se.format {
	case FormatRaw:
		var b bytes.Buffer
		dumper := &spew.ConfigState{
			Indent:                  " ",
			MaxDepth:                10,
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		}
		dumper.Fdump(&b, v)
		*buf = append(*buf, bytes.TrimSpace(b.Bytes())...)

	case FormatJSON:
		if encoded, err := json.Marshal(v); err == nil {
			*buf = append(*buf, encoded...)
			return
		}
		se.WriteString(buf, fmt.Sprintf("%+v", v))

	default:
		se.WriteString(buf, fmt.Sprintf("%+v", v))
	}
}

// NeedsQuotes determines if quoting is needed
func (se *Serializer) NeedsQuotes(s string) bool {
	switch se.format {
	case FormatJSON:
		return true
	case FormatTxt:
		if len(s) == 0 {
			return true
		}
		for _, r := range s {
			if unicode.IsSpace(r) || !unicode.IsPrint(r) {
				return true
			}
			switch r {
			case '"', '\'', '\\', '$', '`', '!', '&', '|', ';',
				'(', ')', '<', '>', '*', '?', '[', ']', '{', '}',
				'~', '#', '%', '=':
				return true
			}
		}
		return false
	default:
		return false
	}
}
