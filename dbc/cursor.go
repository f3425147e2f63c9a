package dbc

import (
	"strconv"
	"strings"
)

// cursor walks a line grammar over the remaining text. Every method
// either consumes what it matched or leaves s unchanged.
type cursor struct {
	s string
}

func (c *cursor) tag(t string) bool {
	if !strings.HasPrefix(c.s, t) {
		return false
	}
	c.s = c.s[len(t):]
	return true
}

// space consumes one or more spaces or tabs.
func (c *cursor) space() bool {
	n := len(c.s)
	c.space0()
	return len(c.s) < n
}

func (c *cursor) space0() {
	i := 0
	for i < len(c.s) && (c.s[i] == ' ' || c.s[i] == '\t') {
		i++
	}
	c.s = c.s[i:]
}

// lineEnding accepts "\r\n", "\n" or a lone "\r".
func (c *cursor) lineEnding() bool {
	return c.tag("\r\n") || c.tag("\n") || c.tag("\r")
}

func (c *cursor) takeWhile(f func(byte) bool) string {
	i := 0
	for i < len(c.s) && f(c.s[i]) {
		i++
	}
	out := c.s[:i]
	c.s = c.s[i:]
	return out
}

// takeUntil consumes up to, not including, the first byte from set.
// It fails when no such byte follows.
func (c *cursor) takeUntil(set string) (string, bool) {
	i := strings.IndexAny(c.s, set)
	if i < 0 {
		return "", false
	}
	out := c.s[:i]
	c.s = c.s[i:]
	return out, true
}

func (c *cursor) digits() (string, bool) {
	d := c.takeWhile(isDigit)
	return d, d != ""
}

func (c *cursor) digit() (byte, bool) {
	if c.s == "" || !isDigit(c.s[0]) {
		return 0, false
	}
	d := c.s[0]
	c.s = c.s[1:]
	return d, true
}

func (c *cursor) id() (uint32, bool) {
	save := c.s
	d, ok := c.digits()
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(d, 10, 32)
	if err != nil {
		c.s = save
		return 0, false
	}
	return uint32(v), true
}

func (c *cursor) number() (int, bool) {
	save := c.s
	d, ok := c.digits()
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(d)
	if err != nil {
		c.s = save
		return 0, false
	}
	return v, true
}

// float accepts [+-]digits[.digits][(e|E)[+-]digits]; at least one
// mantissa digit is required.
func (c *cursor) float() (float32, bool) {
	s := c.s
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	mantissa := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		mantissa++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			mantissa++
		}
	}
	if mantissa == 0 {
		return 0, false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			i = k
		}
	}

	v, err := strconv.ParseFloat(s[:i], 32)
	if err != nil {
		return 0, false
	}
	c.s = s[i:]
	return float32(v), true
}

// quoted reads a double-quoted string where only \\ and \" are escapes.
func (c *cursor) quoted() (string, bool) {
	s := c.s
	if s == "" || s[0] != '"' {
		return "", false
	}

	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '"':
			c.s = s[i+1:]
			return b.String(), true
		case '\\':
			if i+1 >= len(s) || (s[i+1] != '\\' && s[i+1] != '"') {
				return "", false
			}
			i++
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	return "", false
}
