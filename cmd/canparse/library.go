package main

import (
	"bytes"

	"CANParse/base"
	"CANParse/pgn"

	"github.com/cockroachdb/errors"
)

// DbcContent holds the DBC compiled in with the embed build tag.
var DbcContent []byte

// loadLibrary builds the library the DBC section describes: the embedded or
// on-disk DBC text, then the optional xlsx sheet merged on top.
func loadLibrary(cfg *base.DBC) (*pgn.Library, error) {
	var (
		lib *pgn.Library
		err error
	)

	switch {
	case cfg.EmbedDBC:
		if len(DbcContent) <= 0 {
			return nil, errors.New("no embedded dbc, build with -tags embed")
		}
		lib, err = pgn.LoadReader(bytes.NewReader(DbcContent))
	case cfg.DBCPath != "":
		lib, err = pgn.LoadFile(cfg.DBCPath)
	default:
		lib = pgn.NewLibrary()
	}
	if err != nil {
		return nil, err
	}

	if cfg.DBCExcel != "" {
		if err := lib.LoadExcel(cfg.DBCExcel); err != nil {
			return nil, errors.Wrapf(err, "load %s", cfg.DBCExcel)
		}
	}

	if lib.Len() == 0 {
		return nil, errors.New("dbc defines no messages")
	}
	log.Debugf("Load DBC success, %d messages", lib.Len())
	return lib, nil
}
