//go:build embed

package main

import (
	_ "embed"
)

// DbcContentRaw is the DBC served when DBC.EmbedDBC is set.
//
//go:embed can.dbc
var DbcContentRaw []byte

func init() {
	log.Debugf("embedded dbc, %d bytes", len(DbcContentRaw))
	DbcContent = DbcContentRaw
}
