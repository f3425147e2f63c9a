package rwmap

import (
	"sync"

	"CANParse/dbc"
	"CANParse/pgn"
)

// RWLibrary guards a pgn.Library with a reader/writer lock. Lookups take the
// read lock, merges and reloads the write lock.
//
// Messages and signals returned by lookups are shared with the library;
// callers must not hold on to them across a Swap if they need a stable view.
type RWLibrary struct {
	sync.RWMutex
	l *pgn.Library
}

// 新建一个RWLibrary, l为nil时新建空库
func NewRWLibrary(l *pgn.Library) *RWLibrary {
	if l == nil {
		l = pgn.NewLibrary()
	}
	return &RWLibrary{l: l}
}

func (m *RWLibrary) Add(rec dbc.Record) error { // 合并一条记录
	m.Lock() // 锁保护
	defer m.Unlock()
	return m.l.Add(rec)
}

func (m *RWLibrary) Message(id uint32) (*pgn.Message, bool) { // 按CAN id读取
	m.RLock()
	defer m.RUnlock()
	return m.l.Message(id)
}

func (m *RWLibrary) PGN(n uint32) (*pgn.Message, bool) {
	m.RLock()
	defer m.RUnlock()
	return m.l.PGN(n)
}

func (m *RWLibrary) Signal(name string) (*pgn.Signal, bool) {
	m.RLock()
	defer m.RUnlock()
	return m.l.Signal(name)
}

// SignalNames returns the ordered signal names of message id, or nil when
// the id is unknown.
func (m *RWLibrary) SignalNames(id uint32) []string {
	m.RLock()
	defer m.RUnlock()
	if msg, ok := m.l.Message(id); ok {
		return msg.SignalNames()
	}
	return nil
}

func (m *RWLibrary) Len() int { // 消息个数
	m.RLock() // 锁保护
	defer m.RUnlock()
	return m.l.Len()
}

// Each calls f for every message in ascending id order. The messages are
// collected under the read lock and f runs without it, so f may call back
// into m.
func (m *RWLibrary) Each(f func(id uint32, msg *pgn.Message) bool) { // 遍历
	type entry struct {
		id  uint32
		msg *pgn.Message
	}

	m.RLock()
	entries := make([]entry, 0, m.l.Len())
	m.l.Each(func(id uint32, msg *pgn.Message) bool {
		entries = append(entries, entry{id, msg})
		return true
	})
	m.RUnlock()

	for _, e := range entries {
		if !f(e.id, e.msg) {
			return
		}
	}
}

// Swap installs l as the current library and returns the previous one.
func (m *RWLibrary) Swap(l *pgn.Library) *pgn.Library {
	m.Lock()
	defer m.Unlock()
	old := m.l
	m.l = l
	return old
}
