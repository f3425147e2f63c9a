package dbc

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
)

const ExcelSheet = "DBC"

// columns of the DBC sheet; the first row is a header
const (
	CanId = iota
	CanName
	PeriodOfTx
	MsgLen
	StartByte
	StartBit
	BitWidth
	SignalName
	SignalSymbol
	TransmitterECU
	ExcelMaxColumn

	// optional, defaults: Intel, unsigned, (1,0) [0|0] ""
	ByteOrder = iota - 1
	ValueType
	Factor
	Offset
	Min
	Max
	Unit
)

// ReadExcel turns the DBC sheet of an xlsx workbook into records. Each
// row is one signal; a MessageDefinition is emitted whenever the CAN id
// changes from the previous row so the signals attach to it.
func ReadExcel(filename string) ([]Record, error) {
	f, err := excelize.OpenFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filename)
	}
	defer f.Close()

	rows, err := f.GetRows(ExcelSheet)
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %s", ExcelSheet)
	}

	var recs []Record
	var lastID uint32
	haveLast := false

	for idx, row := range rows {
		if idx <= 0 {
			continue
		}

		if len(row) < ExcelMaxColumn {
			return nil, errors.Newf("row %d: invalid number of columns! want(%d), has(%d)", idx+1, ExcelMaxColumn, len(row))
		}

		id, err := strconv.ParseUint(strings.TrimSpace(row[CanId]), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: can id", idx+1)
		}

		if !haveLast || uint32(id) != lastID {
			msgLen, err := strconv.ParseUint(strings.TrimSpace(row[MsgLen]), 10, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d: message length", idx+1)
			}
			recs = append(recs, MessageDefinition{
				ID:          uint32(id),
				Name:        strings.TrimSpace(row[CanName]),
				Length:      uint32(msgLen),
				SendingNode: strings.TrimSpace(row[TransmitterECU]),
			})
			lastID, haveLast = uint32(id), true
		}

		sig, err := signalFromRow(row)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", idx+1)
		}
		recs = append(recs, sig)
	}

	log.Debugf("read %d records from %s", len(recs), filename)
	return recs, nil
}

func signalFromRow(row []string) (SignalDefinition, error) {
	sig := SignalDefinition{
		Name:          strings.TrimSpace(row[SignalName]),
		LittleEndian:  cell(row, ByteOrder, "1") == "1",
		Signed:        cell(row, ValueType, "+") == "-",
		Units:         cell(row, Unit, ""),
		ReceivingNode: "Vector__XXX",
	}

	var err error
	if sig.StartBit, err = strconv.Atoi(strings.TrimSpace(row[StartBit])); err != nil {
		return sig, errors.Wrap(err, "start bit")
	}
	if sig.BitLen, err = strconv.Atoi(strings.TrimSpace(row[BitWidth])); err != nil {
		return sig, errors.Wrap(err, "bit width")
	}

	floats := []struct {
		col  int
		def  string
		dest *float32
	}{
		{Factor, "1", &sig.Scale},
		{Offset, "0", &sig.Offset},
		{Min, "0", &sig.Min},
		{Max, "0", &sig.Max},
	}
	for _, fl := range floats {
		v, err := strconv.ParseFloat(cell(row, fl.col, fl.def), 32)
		if err != nil {
			return sig, errors.Wrapf(err, "column %d", fl.col+1)
		}
		*fl.dest = float32(v)
	}

	return sig, nil
}

// cell returns the trimmed value at col, or def when the row is short or
// the cell is blank.
func cell(row []string, col int, def string) string {
	if col >= len(row) {
		return def
	}
	v := strings.TrimSpace(row[col])
	if v == "" {
		return def
	}
	return v
}
