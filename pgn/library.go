package pgn

import (
	"slices"
	"strconv"

	"CANParse/base"
	"CANParse/dbc"

	"github.com/cockroachdb/errors"
)

var log = base.Logger

var (
	// ErrUnsupportedRecord: the record kind does not describe a message
	// or signal (Version, BusConfiguration, Unknown).
	ErrUnsupportedRecord = errors.New("record not applicable to library")
	// ErrNoCurrentMessage: a SignalDefinition arrived before any record
	// established the message it belongs to.
	ErrNoCurrentMessage = errors.New("signal definition without a current message")
	// ErrBadAttributeValue: an SPN attribute value is not an unsigned integer.
	ErrBadAttributeValue = errors.New("malformed numeric attribute value")
)

// Library merges DBC records into message and signal definitions keyed by
// CAN id. It is not safe for concurrent use; see rwmap.RWLibrary.
type Library struct {
	Messages map[uint32]*Message

	// id of the last routed record; SignalDefinitions attach to it
	lastID  uint32
	hasLast bool
}

func NewLibrary() *Library {
	return &Library{
		Messages: make(map[uint32]*Message),
	}
}

// Add merges one record into the library, creating the message and
// signal it refers to when they do not exist yet.
func (l *Library) Add(rec dbc.Record) error {
	var id uint32
	switch r := rec.(type) {
	case dbc.MessageDefinition:
		id = r.ID
	case dbc.MessageDescription:
		id = r.ID
	case dbc.MessageAttribute:
		id = r.ID
	case dbc.SignalDefinition:
		if !l.hasLast {
			return errors.Wrapf(ErrNoCurrentMessage, "signal %s", r.Name)
		}
		id = l.lastID
	case dbc.SignalDescription:
		id = r.ID
	case dbc.SignalAttribute:
		id = r.ID
		if r.Name != dbc.SPNAttribute {
			// accepted as current message, nothing else is touched
			l.lastID, l.hasLast = id, true
			return nil
		}
	default:
		return unsupported(rec)
	}

	msg, exists := l.Messages[id]
	if !exists {
		msg = newMessage(id)
		if def, ok := rec.(dbc.MessageDefinition); ok {
			msg.Name = def.Name
			msg.SendingNode = def.SendingNode
		}
	}

	if err := msg.merge(rec); err != nil {
		return err
	}

	if !exists {
		l.Messages[id] = msg
	}
	l.lastID, l.hasLast = id, true
	return nil
}

// Len returns the number of messages.
func (l *Library) Len() int {
	return len(l.Messages)
}

// Each calls f for every message in ascending id order until f returns
// false.
func (l *Library) Each(f func(id uint32, msg *Message) bool) {
	for _, id := range l.ids() {
		if !f(id, l.Messages[id]) {
			return
		}
	}
}

// Message returns the message with exactly this CAN id.
func (l *Library) Message(id uint32) (*Message, bool) {
	msg, ok := l.Messages[id]
	return msg, ok
}

// PGN returns the first message, by ascending id, whose parameter group
// number is pgn.
func (l *Library) PGN(pgn uint32) (*Message, bool) {
	var found *Message
	l.Each(func(_ uint32, msg *Message) bool {
		if msg.PGN() == pgn {
			found = msg
			return false
		}
		return true
	})
	return found, found != nil
}

// Signal returns the first signal named name, searching messages by
// ascending id.
func (l *Library) Signal(name string) (*Signal, bool) {
	var found *Signal
	l.Each(func(_ uint32, msg *Message) bool {
		if s, ok := msg.Signals[name]; ok {
			found = s
			return false
		}
		return true
	})
	return found, found != nil
}

func (l *Library) ids() []uint32 {
	ids := make([]uint32, 0, len(l.Messages))
	for id := range l.Messages {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func unsupported(rec dbc.Record) error {
	if rec == nil {
		return errors.Wrap(ErrUnsupportedRecord, "nil record")
	}
	return errors.Wrapf(ErrUnsupportedRecord, "%s", rec.Kind())
}

func parseNumber(value string) (uint64, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrBadAttributeValue, "%q", value)
	}
	return n, nil
}
