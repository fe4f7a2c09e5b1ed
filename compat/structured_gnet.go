package compat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/core"
)

var _ logging.Logger = (*StructuredGnetAdapter)(nil)

// keyValuePattern matches "key=%v" and "key: %v" in printf formats
var keyValuePattern = regexp.MustCompile(`(\w+)\s*[:=]\s*%[vsdqxXeEfFgGpbcU]`)

// parseFormat splits a printf-style call into a message and key/value fields.
// ok is false when the format carries no extractable pairs.
func parseFormat(format string, args []any) (msg string, fields []any, ok bool) {
	matches := keyValuePattern.FindAllStringSubmatchIndex(format, -1)
	if len(matches) == 0 || len(matches) > len(args) || strings.Count(format, "%") != len(args) {
		return fmt.Sprintf(format, args...), nil, false
	}

	fields = make([]any, 0, len(matches)*2)
	var parts []string
	lastEnd := 0
	argIndex := 0

	for _, match := range matches {
		// Text between pairs belongs to the message; each verb before the
		// match consumes an argument
		if gap := format[lastEnd:match[0]]; strings.TrimSpace(gap) != "" {
			n := strings.Count(gap, "%")
			parts = append(parts, strings.TrimSpace(fmt.Sprintf(gap, args[argIndex:argIndex+n]...)))
			argIndex += n
		}

		key := format[match[2]:match[3]]
		fields = append(fields, key, args[argIndex])
		argIndex++
		lastEnd = match[1]
	}

	if rest := format[lastEnd:]; strings.TrimSpace(rest) != "" {
		parts = append(parts, strings.TrimSpace(fmt.Sprintf(rest, args[argIndex:]...)))
	}

	return strings.Join(parts, " "), fields, true
}

// StructuredGnetAdapter is a gnet adapter that lifts "key=%v" pairs out of
// format strings into record fields
type StructuredGnetAdapter struct {
	*GnetAdapter
}

// NewStructuredGnetAdapter creates a gnet adapter with structured field extraction
func NewStructuredGnetAdapter(logger *logpipe.Logger, opts ...GnetOption) *StructuredGnetAdapter {
	return &StructuredGnetAdapter{GnetAdapter: NewGnetAdapter(logger, opts...)}
}

func (a *StructuredGnetAdapter) logf(level core.Level, format string, args []any) {
	msg, fields, _ := parseFormat(format, args)
	a.logger.LogDepth(level, 2, msg, append(fields, "source", "gnet")...)
}

// Debugf logs with structured field extraction
func (a *StructuredGnetAdapter) Debugf(format string, args ...any) {
	a.logf(core.LevelDebug, format, args)
}

// Infof logs with structured field extraction
func (a *StructuredGnetAdapter) Infof(format string, args ...any) {
	a.logf(core.LevelInfo, format, args)
}

// Warnf logs with structured field extraction
func (a *StructuredGnetAdapter) Warnf(format string, args ...any) {
	a.logf(core.LevelWarn, format, args)
}

// Errorf logs with structured field extraction
func (a *StructuredGnetAdapter) Errorf(format string, args ...any) {
	a.logf(core.LevelError, format, args)
}
