package rwmap

import (
	"sync"
	"testing"
	"time"

	"CANParse/dbc"
	"CANParse/pgn"
)

func TestRWLibrary(t *testing.T) {
	m := NewRWLibrary(nil)
	recs := []dbc.Record{
		dbc.MessageDefinition{ID: 2364539904, Name: "EEC1", Length: 8},
		dbc.SignalDefinition{Name: "Engine_Speed", StartBit: 24, BitLen: 16, LittleEndian: true, Scale: 0.125},
		dbc.SignalDefinition{Name: "Torque", StartBit: 16, BitLen: 8, LittleEndian: true, Scale: 1},
	}
	for _, rec := range recs {
		if err := m.Add(rec); err != nil {
			t.Fatal(err)
		}
	}

	if m.Len() != 1 {
		t.Errorf("Len = %d", m.Len())
	}
	if _, ok := m.PGN(0xF004); !ok {
		t.Error("PGN(0xF004) not found")
	}
	if _, ok := m.Message(2364539904); !ok {
		t.Error("Message not found")
	}
	if s, ok := m.Signal("Torque"); !ok || s.StartBit != 16 {
		t.Errorf("Signal = %+v, %v", s, ok)
	}
	if names := m.SignalNames(2364539904); len(names) != 2 || names[0] != "Engine_Speed" {
		t.Errorf("SignalNames = %v", names)
	}
	if names := m.SignalNames(1); names != nil {
		t.Errorf("SignalNames(1) = %v", names)
	}

	n := 0
	m.Each(func(uint32, *pgn.Message) bool {
		n++
		return true
	})
	if n != 1 {
		t.Errorf("Each visited %d", n)
	}
}

func TestRWLibrary_Swap(t *testing.T) {
	m := NewRWLibrary(nil)
	if err := m.Add(dbc.MessageDefinition{ID: 1, Name: "Old", Length: 8}); err != nil {
		t.Fatal(err)
	}

	next := pgn.NewLibrary()
	if err := next.Add(dbc.MessageDefinition{ID: 2, Name: "New", Length: 8}); err != nil {
		t.Fatal(err)
	}

	old := m.Swap(next)
	if _, ok := old.Message(1); !ok {
		t.Error("Swap did not return previous library")
	}
	if _, ok := m.Message(1); ok {
		t.Error("old message still visible")
	}
	if _, ok := m.Message(2); !ok {
		t.Error("new message not visible")
	}
}

func TestRWLibrary_EachCallsBack(t *testing.T) {
	m := NewRWLibrary(nil)
	for _, id := range []uint32{3, 1, 2} {
		if err := m.Add(dbc.MessageDefinition{ID: id, Name: "M", Length: 8}); err != nil {
			t.Fatal(err)
		}
	}

	done := make(chan []uint32)
	go func() {
		var ids []uint32
		m.Each(func(id uint32, _ *pgn.Message) bool {
			ids = append(ids, id)
			// a writer waiting on the lock must not block this callback
			swapped := make(chan struct{})
			go func() {
				m.Swap(m.Swap(pgn.NewLibrary()))
				close(swapped)
			}()
			<-swapped
			m.Len()
			return true
		})
		done <- ids
	}()

	select {
	case ids := <-done:
		if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
			t.Errorf("ids = %v", ids)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Each deadlocked with a concurrent Swap")
	}
}

func TestRWLibrary_Concurrent(t *testing.T) {
	m := NewRWLibrary(nil)
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base uint32) {
			defer wg.Done()
			for i := uint32(0); i < 100; i++ {
				id := base*1000 + i
				if err := m.Add(dbc.MessageDefinition{ID: id, Name: "M", Length: 8}); err != nil {
					t.Error(err)
					return
				}
				if err := m.Add(dbc.SignalDefinition{Name: "S", BitLen: 8, Scale: 1}); err != nil {
					t.Error(err)
					return
				}
			}
		}(uint32(w))
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.PGN(0)
				m.Signal("S")
				m.Len()
			}
		}()
	}
	wg.Wait()

	if m.Len() != 400 {
		t.Errorf("Len = %d, want 400", m.Len())
	}
}
