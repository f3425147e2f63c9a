package pgn

import (
	"CANParse/can"
	"CANParse/dbc"

	einride "go.einride.tech/can"
)

// Message is the merged definition of one CAN id (a J1939 parameter group
// when the id is 29 bits wide).
type Message struct {
	ID          uint32
	Name        string
	Description string
	Length      uint32
	SendingNode string
	Signals     map[string]*Signal

	// signal names in the order first seen
	order []string
}

// SA returns the source address, the low byte of the id.
func (m *Message) SA() uint32 {
	return m.ID & 0xFF
}

// PGN returns the parameter group number of the id.
func (m *Message) PGN() uint32 {
	return (m.ID & 0x3FFFF00) >> 8
}

// SignalNames lists the message's signals in the order they were first
// merged.
func (m *Message) SignalNames() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func newMessage(id uint32) *Message {
	return &Message{
		ID:      id,
		Signals: make(map[string]*Signal),
	}
}

// merge folds rec into m. Only the fields rec carries are touched.
func (m *Message) merge(rec dbc.Record) error {
	switch r := rec.(type) {
	case dbc.MessageDefinition:
		m.ID = r.ID
		m.Length = r.Length
	case dbc.MessageDescription:
		m.ID = r.ID
		m.Description = r.Description
	case dbc.MessageAttribute:
		m.ID = r.ID
	case dbc.SignalDefinition:
		s, created := m.signal(r.Name)
		s.mergeDefinition(r)
		// max is only taken from the definition that creates the signal
		if created {
			s.Max = r.Max
		}
	case dbc.SignalDescription:
		s, _ := m.signal(r.SignalName)
		s.mergeDescription(r)
	case dbc.SignalAttribute:
		if r.Name != dbc.SPNAttribute {
			return nil
		}
		n, err := parseNumber(r.Value)
		if err != nil {
			return err
		}
		s, _ := m.signal(r.SignalName)
		s.mergeAttribute(r, n)
	default:
		return unsupported(rec)
	}
	return nil
}

// signal finds the named signal, creating it when absent.
func (m *Message) signal(name string) (*Signal, bool) {
	if s, ok := m.Signals[name]; ok {
		return s, false
	}
	s := &Signal{
		Name:         name,
		ID:           m.ID,
		LittleEndian: true,
	}
	m.Signals[name] = s
	m.order = append(m.order, name)
	return s, true
}

// Signal is the merged definition of one signal, identified by a J1939
// suspect parameter number when the DBC carries an "SPN" attribute.
type Signal struct {
	Name         string
	Number       uint64 // SPN
	ID           uint32 // owning message id
	Description  string
	StartBit     int
	BitLen       int
	LittleEndian bool
	Signed       bool
	Scale        float32
	Offset       float32
	Min          float32
	Max          float32
	Units        string
}

func (s *Signal) mergeDefinition(r dbc.SignalDefinition) {
	s.Name = r.Name
	s.StartBit = r.StartBit
	s.BitLen = r.BitLen
	s.LittleEndian = r.LittleEndian
	s.Signed = r.Signed
	s.Scale = r.Scale
	s.Offset = r.Offset
	s.Min = r.Min
	s.Units = r.Units
}

func (s *Signal) mergeDescription(r dbc.SignalDescription) {
	s.Name = r.SignalName
	s.ID = r.ID
	s.Description = r.Description
}

func (s *Signal) mergeAttribute(r dbc.SignalAttribute, number uint64) {
	s.Name = r.SignalName
	s.ID = r.ID
	s.Number = number
}

// ParseArray decodes the signal from a full 8-byte payload.
func (s *Signal) ParseArray(msg *[8]byte) (float32, bool) {
	return can.DecodeArray(s.StartBit, s.BitLen, s.LittleEndian, s.Scale, s.Offset, msg)
}

// ParseMessage decodes the signal from a payload of any length.
func (s *Signal) ParseMessage(msg []byte) (float32, bool) {
	return can.DecodeSlice(s.StartBit, s.BitLen, s.LittleEndian, s.Scale, s.Offset, msg)
}

// ParseFrame decodes the signal from the data of a CAN frame.
func (s *Signal) ParseFrame(f einride.Frame) (float32, bool) {
	n := int(f.Length)
	if n > len(f.Data) {
		n = len(f.Data)
	}
	return s.ParseMessage(f.Data[:n])
}

// Parser returns a decoder bound to a copy of the signal's geometry, so
// later merges into s do not affect it.
func (s *Signal) Parser() func([]byte) (float32, bool) {
	startBit, bitLen, le, scale, offset := s.StartBit, s.BitLen, s.LittleEndian, s.Scale, s.Offset
	return func(msg []byte) (float32, bool) {
		return can.DecodeSlice(startBit, bitLen, le, scale, offset, msg)
	}
}

// ArrayParser is Parser for fixed 8-byte payloads.
func (s *Signal) ArrayParser() func(*[8]byte) (float32, bool) {
	startBit, bitLen, le, scale, offset := s.StartBit, s.BitLen, s.LittleEndian, s.Scale, s.Offset
	return func(msg *[8]byte) (float32, bool) {
		return can.DecodeArray(startBit, bitLen, le, scale, offset, msg)
	}
}
