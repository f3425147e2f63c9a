package pgn

import (
	"io"
	"os"

	"CANParse/dbc"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Load builds a library from decoded DBC text. Records that do not apply
// to a library, and signals with no message to attach to, are skipped.
// An unterminated final line is discarded. Only a malformed SPN value
// aborts the load.
func Load(text string) (*Library, error) {
	l := NewLibrary()
	if err := l.Load(text); err != nil {
		return nil, err
	}
	return l, nil
}

// LoadReader reads ISO-8859-1 encoded DBC text from r.
func LoadReader(r io.Reader) (*Library, error) {
	data, err := io.ReadAll(transform.NewReader(r, charmap.ISO8859_1.NewDecoder()))
	if err != nil {
		return nil, errors.Wrap(err, "read dbc")
	}
	return Load(string(data))
}

// LoadFile reads an ISO-8859-1 encoded DBC file.
func LoadFile(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	l, err := LoadReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	log.Debugf("Load %s success, %d messages", path, l.Len())
	return l, nil
}

// LoadExcel builds a library from the DBC sheet of an xlsx workbook.
func LoadExcel(path string) (*Library, error) {
	l := NewLibrary()
	if err := l.LoadExcel(path); err != nil {
		return nil, err
	}
	return l, nil
}

// Load merges decoded DBC text into l with the same policy as the
// package-level Load.
func (l *Library) Load(text string) error {
	p := dbc.NewParser(text)
	for p.Next() {
		if err := l.addOrSkip(p.Record()); err != nil {
			return errors.Wrapf(err, "line %d", p.Line())
		}
	}

	if err := p.Err(); err != nil {
		log.Warnf("%v, discard %d bytes", err, len(p.Remainder()))
	}
	return nil
}

// LoadExcel merges the records of an xlsx workbook into l.
func (l *Library) LoadExcel(path string) error {
	recs, err := dbc.ReadExcel(path)
	if err != nil {
		return err
	}
	for i, rec := range recs {
		if err := l.addOrSkip(rec); err != nil {
			return errors.Wrapf(err, "record %d", i)
		}
	}
	return nil
}

func (l *Library) addOrSkip(rec dbc.Record) error {
	err := l.Add(rec)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnsupportedRecord), errors.Is(err, ErrNoCurrentMessage):
		log.Debugf("skip %s: %v", rec.Kind(), err)
		return nil
	default:
		return err
	}
}
