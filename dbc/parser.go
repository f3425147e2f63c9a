package dbc

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Parser yields the records of a decoded DBC text one at a time.
//
//	p := dbc.NewParser(text)
//	for p.Next() {
//		rec := p.Record()
//	}
//	if err := p.Err(); err != nil { ... }
type Parser struct {
	rest string
	rec  Record
	line int
	next int
	err  error
}

func NewParser(text string) *Parser {
	return &Parser{
		rest: text,
		next: 1,
	}
}

// Next advances to the next record. It returns false at the end of the
// text or once an unterminated final line is reached.
func (p *Parser) Next() bool {
	if p.err != nil || p.rest == "" {
		return false
	}

	rec, rest, err := ParseRecord(p.rest)
	if err != nil {
		log.Debugf("stop at line %d, %d bytes unterminated", p.next, len(p.rest))
		p.setErr(errors.Wrapf(err, "line %d", p.next))
		return false
	}

	consumed := p.rest[:len(p.rest)-len(rest)]
	p.line = p.next
	p.next += lineCount(consumed)
	p.rec = rec
	p.rest = rest
	return true
}

// Record returns the record produced by the last successful Next.
func (p *Parser) Record() Record {
	return p.rec
}

// Line returns the 1-based line the current record started on.
func (p *Parser) Line() int {
	return p.line
}

// Remainder returns the text not yet consumed.
func (p *Parser) Remainder() string {
	return p.rest
}

// Err returns the first error that stopped the Parser, wrapping
// ErrIncomplete when the text ended without a terminator.
func (p *Parser) Err() error {
	return p.err
}

// setErr records the first error encountered.
func (p *Parser) setErr(err error) {
	if p.err == nil {
		p.err = err
	}
}

// ParseAll returns every record of text. Records before an unterminated
// tail are returned together with the ErrIncomplete error.
func ParseAll(text string) ([]Record, error) {
	var recs []Record
	p := NewParser(text)
	for p.Next() {
		recs = append(recs, p.Record())
	}
	return recs, p.Err()
}

func lineCount(s string) int {
	n := strings.Count(s, "\n")
	// lone carriage returns also end a line
	n += strings.Count(s, "\r") - strings.Count(s, "\r\n")
	return n
}
