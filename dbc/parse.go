package dbc

import (
	"strconv"
	"strings"

	"CANParse/base"

	"github.com/cockroachdb/errors"
)

var log = base.Logger

const (
	kVersion = "VERSION"
	kBS      = "BS_:"
	kBO      = "BO_"
	kSG      = "SG_"
	kCM      = "CM_"
	kBA      = "BA_"

	// SPNAttribute is the only signal attribute folded into a definition.
	SPNAttribute = "SPN"
)

// ErrIncomplete is returned when the text holds no line terminator, so
// not even an Unknown record can be completed.
var ErrIncomplete = errors.New("incomplete input: no line terminator")

// grammar tries one line shape against text. On mismatch it returns false
// and the caller's text is left untouched.
type grammar func(text string) (Record, string, bool)

// grammars in priority order; the first match wins.
var grammars = []grammar{
	parseVersion,
	parseBusConfiguration,
	parseMessageDefinition,
	parseMessageDescription,
	parseMessageAttribute,
	parseSignalDefinition,
	parseSignalDescription,
	parseSignalAttribute,
}

// ParseRecord consumes one record from the front of text and returns it
// with the remaining text. Lines no grammar recognises come back as
// Unknown. ErrIncomplete means the caller must stop feeding text.
func ParseRecord(text string) (Record, string, error) {
	for _, g := range grammars {
		if rec, rest, ok := g(text); ok {
			return rec, rest, nil
		}
	}
	return parseUnknown(text)
}

// ParseLine parses a single line. The terminator is optional.
func ParseLine(line string) (Record, error) {
	if !strings.HasSuffix(line, "\n") && !strings.HasSuffix(line, "\r") {
		line += "\n"
	}
	rec, _, err := ParseRecord(line)
	return rec, err
}

func parseUnknown(text string) (Record, string, error) {
	end := strings.IndexAny(text, "\r\n")
	if end < 0 {
		return nil, text, ErrIncomplete
	}
	c := cursor{s: text[end:]}
	c.lineEnding()
	return Unknown{Text: text[:end]}, c.s, nil
}

func parseVersion(text string) (Record, string, bool) {
	c := cursor{s: text}
	if !c.tag(kVersion) || !c.tag(" ") {
		return nil, text, false
	}
	data, ok := c.quoted()
	if !ok || !c.lineEnding() {
		return nil, text, false
	}
	return Version{Text: data}, c.s, true
}

func parseBusConfiguration(text string) (Record, string, bool) {
	c := cursor{s: text}
	if !c.tag(kBS) || !c.tag(" ") {
		return nil, text, false
	}
	raw, ok := c.takeUntil("\r\n")
	if !ok {
		return nil, text, false
	}
	baud, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || !c.lineEnding() {
		return nil, text, false
	}
	return BusConfiguration{BaudRate: baud}, c.s, true
}

func parseMessageDefinition(text string) (Record, string, bool) {
	var m MessageDefinition
	var ok bool

	c := cursor{s: text}
	if !c.tag(kBO) || !c.space() {
		return nil, text, false
	}
	if m.ID, ok = c.id(); !ok || !c.space() {
		return nil, text, false
	}
	m.Name = c.takeWhile(isNameChar)
	c.space0()
	if !c.tag(":") || !c.space() {
		return nil, text, false
	}
	if m.Length, ok = c.id(); !ok || !c.space() {
		return nil, text, false
	}
	if m.SendingNode, ok = c.takeUntil(" \t\r\n"); !ok {
		return nil, text, false
	}
	c.space0()
	if !c.lineEnding() {
		return nil, text, false
	}
	return m, c.s, true
}

func parseMessageDescription(text string) (Record, string, bool) {
	var m MessageDescription
	var ok bool

	c := cursor{s: text}
	if !c.tag(kCM) || !c.space() || !c.tag(kBO) || !c.space() {
		return nil, text, false
	}
	if m.ID, ok = c.id(); !ok || !c.space() {
		return nil, text, false
	}
	if m.Description, ok = c.quoted(); !ok {
		return nil, text, false
	}
	if !c.tag(";") || !c.lineEnding() {
		return nil, text, false
	}
	return m, c.s, true
}

func parseMessageAttribute(text string) (Record, string, bool) {
	var m MessageAttribute
	var ok bool

	c := cursor{s: text}
	if !c.tag(kBA) || !c.space() {
		return nil, text, false
	}
	if m.Name, ok = c.quoted(); !ok || !c.space() {
		return nil, text, false
	}
	if !c.tag(kBO) || !c.space() {
		return nil, text, false
	}
	if m.ID, ok = c.id(); !ok || !c.space() {
		return nil, text, false
	}
	if m.Value, ok = c.digits(); !ok {
		return nil, text, false
	}
	if !c.tag(";") || !c.lineEnding() {
		return nil, text, false
	}
	return m, c.s, true
}

func parseSignalDefinition(text string) (Record, string, bool) {
	var s SignalDefinition
	var ok bool

	c := cursor{s: text}
	c.space0()
	if !c.tag(kSG) || !c.space() {
		return nil, text, false
	}
	if s.Name, ok = c.takeUntil(" \t"); !ok || !c.space() {
		return nil, text, false
	}
	if !c.tag(":") || !c.space() {
		return nil, text, false
	}
	if s.StartBit, ok = c.number(); !ok || !c.tag("|") {
		return nil, text, false
	}
	if s.BitLen, ok = c.number(); !ok || !c.tag("@") {
		return nil, text, false
	}

	order, ok := c.digit()
	if !ok {
		return nil, text, false
	}
	s.LittleEndian = order == '1'

	switch {
	case c.tag("+"):
		s.Signed = false
	case c.tag("-"):
		s.Signed = true
	default:
		return nil, text, false
	}

	if !c.space() || !c.tag("(") {
		return nil, text, false
	}
	if s.Scale, ok = c.float(); !ok || !c.tag(",") {
		return nil, text, false
	}
	if s.Offset, ok = c.float(); !ok || !c.tag(")") {
		return nil, text, false
	}
	if !c.space() || !c.tag("[") {
		return nil, text, false
	}
	if s.Min, ok = c.float(); !ok || !c.tag("|") {
		return nil, text, false
	}
	if s.Max, ok = c.float(); !ok || !c.tag("]") {
		return nil, text, false
	}
	if !c.space() {
		return nil, text, false
	}
	if s.Units, ok = c.quoted(); !ok || !c.space() {
		return nil, text, false
	}
	if s.ReceivingNode, ok = c.takeUntil(" \t\r\n"); !ok {
		return nil, text, false
	}
	if !c.lineEnding() {
		return nil, text, false
	}
	return s, c.s, true
}

func parseSignalDescription(text string) (Record, string, bool) {
	var s SignalDescription
	var ok bool

	c := cursor{s: text}
	if !c.tag(kCM) || !c.space() || !c.tag(kSG) || !c.space() {
		return nil, text, false
	}
	if s.ID, ok = c.id(); !ok || !c.space() {
		return nil, text, false
	}
	if s.SignalName, ok = c.takeUntil(" \t"); !ok || !c.space() {
		return nil, text, false
	}
	if s.Description, ok = c.quoted(); !ok {
		return nil, text, false
	}
	if !c.tag(";") || !c.lineEnding() {
		return nil, text, false
	}
	return s, c.s, true
}

func parseSignalAttribute(text string) (Record, string, bool) {
	var s SignalAttribute
	var ok bool

	c := cursor{s: text}
	if !c.tag(kBA) || !c.space() {
		return nil, text, false
	}
	if s.Name, ok = c.quoted(); !ok || !c.space() {
		return nil, text, false
	}
	if !c.tag(kSG) || !c.space() {
		return nil, text, false
	}
	if s.ID, ok = c.id(); !ok || !c.space() {
		return nil, text, false
	}
	if s.SignalName, ok = c.takeUntil(" \t"); !ok || !c.space() {
		return nil, text, false
	}
	if s.Value, ok = c.digits(); !ok {
		return nil, text, false
	}
	if !c.tag(";") || !c.lineEnding() {
		return nil, text, false
	}
	return s, c.s, true
}

func isNameChar(b byte) bool {
	return b == '_' || isDigit(b) || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}
