package main

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"CANParse/base"
	"CANParse/can"
	"CANParse/canjson"
	"CANParse/rwmap"
	"CANParse/whitelist"

	"github.com/eclipse/paho.golang/paho"
	"github.com/sirupsen/logrus"
)

const sampleDBC = "../../pgn/testdata/sample.dbc"

func init() {
	log.SetLevel(logrus.FatalLevel)
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*paho.Publish
}

func (f *fakePublisher) Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, p)
	return &paho.PublishResponse{}, nil
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, *paho.Publish) (*paho.PublishResponse, error) {
	return &paho.PublishResponse{}, nil
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.msgs {
		out = append(out, m.Topic)
	}
	return out
}

func testBridge(t *testing.T, cfg *base.Config, wl *whitelist.WhiteList) (*bridge, *fakePublisher) {
	t.Helper()
	lib, err := loadLibrary(&base.DBC{DBCPath: sampleDBC})
	if err != nil {
		t.Fatal(err)
	}
	library := rwmap.NewRWLibrary(lib)
	if wl == nil {
		wl = whitelist.New(library, cfg.EnableWhiteList)
	}
	pub := &fakePublisher{}
	return newBridge(cfg, canjson.NewEncoder(library, wl), pub), pub
}

var eec1Payload = []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}

func TestLoadLibrary(t *testing.T) {
	lib, err := loadLibrary(&base.DBC{DBCPath: sampleDBC})
	if err != nil {
		t.Fatal(err)
	}
	if lib.Len() != 3 {
		t.Errorf("Len = %d", lib.Len())
	}

	if _, err := loadLibrary(&base.DBC{}); err == nil {
		t.Error("expected error for empty source")
	}
	if _, err := loadLibrary(&base.DBC{DBCPath: sampleDBC, DBCExcel: filepath.Join(t.TempDir(), "none.xlsx")}); err == nil {
		t.Error("expected error for missing workbook")
	}

	saved := DbcContent
	defer func() { DbcContent = saved }()
	DbcContent = nil
	if _, err := loadLibrary(&base.DBC{EmbedDBC: true}); err == nil {
		t.Error("expected error without embedded dbc")
	}
	DbcContent = []byte("BO_ 1 M: 8 X\n")
	if lib, err := loadLibrary(&base.DBC{EmbedDBC: true, DBCPath: "ignored"}); err != nil || lib.Len() != 1 {
		t.Errorf("embedded = %v, %v", lib, err)
	}
}

func TestBridge_FilterDirection(t *testing.T) {
	cfg := base.NewConfig()
	cfg.SpecialCANs = []uint32{0x174}
	b, _ := testBridge(t, cfg, nil)

	pdus := []can.PDU{
		{CanId: 1, Direction: can.SDPERecv},
		{CanId: 2, Direction: can.SDPESend},
		{CanId: 0x174, Direction: can.SDPESend},
		{CanId: 3, Direction: 7},
	}
	got := b.filterDirection(append([]can.PDU(nil), pdus...))
	if len(got) != 2 || got[0].CanId != 1 || got[1].CanId != 0x174 {
		t.Errorf("filtered = %+v", got)
	}

	b.bidirection = true
	if got := b.filterDirection(append([]can.PDU(nil), pdus...)); len(got) != 4 {
		t.Errorf("bidirectional kept %d", len(got))
	}
}

func TestBridge_HandleData(t *testing.T) {
	cfg := base.NewConfig()
	b, pub := testBridge(t, cfg, nil)

	datagram := can.AppendDatagram(nil,
		can.PDU{CanId: 2364539904, BusId: 8, Direction: can.SDPERecv, Payload: eec1Payload},
		can.PDU{CanId: 2364539904, BusId: 8, Direction: can.SDPESend, Payload: eec1Payload},
	)
	b.handleData(context.Background(), RecvData{RecvTime: 1692179443894000, Data: datagram})

	if len(pub.msgs) != 1 {
		t.Fatalf("published %v", pub.topics())
	}
	msg := pub.msgs[0]
	if msg.Topic != cfg.MQTT.WhiteList.Topic {
		t.Errorf("topic = %s", msg.Topic)
	}
	if !bytes.Contains(msg.Payload, []byte(`"Engine_Speed":2728.5`)) {
		t.Errorf("payload = %s", msg.Payload)
	}

	// bad datagrams publish nothing
	b.handleData(context.Background(), RecvData{Data: []byte{0, 0, 1, 0, 0, 0, 0, 0, 0}})
	if len(pub.msgs) != 1 {
		t.Errorf("bad datagram published: %v", pub.topics())
	}
}

func TestBridge_HandleDataWhiteList(t *testing.T) {
	cfg := base.NewConfig()
	cfg.EnableWhiteList = true
	b, pub := testBridge(t, cfg, nil)

	datagram := can.AppendDatagram(nil,
		can.PDU{CanId: 2364539904, Payload: eec1Payload},
	)
	b.handleData(context.Background(), RecvData{RecvTime: 2000, Data: datagram})

	// nothing listed: the frame goes out raw
	topics := pub.topics()
	if len(topics) != 1 || topics[0] != cfg.MQTT.NonWhiteList.Topic {
		t.Fatalf("topics = %v", topics)
	}
	if got := string(pub.msgs[0].Payload); got != "2 2364539904 0 Rx d 8 11 22 33 44 55 66 77 88\n" {
		t.Errorf("raw = %q", got)
	}
}

func TestReadData(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := listenUDP(ctx, "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp unavailable: %v", err)
	}

	out := make(chan RecvData, 4)
	done := make(chan struct{})
	go func() {
		readData(conn, out)
		close(done)
	}()

	sender, err := net.Dial("udp", conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	datagram := can.AppendDatagram(nil, can.PDU{CanId: 0x158, Payload: []byte{0, 0, 0, 0, 0x80, 0xFF, 0x7F, 0x78}})
	if _, err := sender.Write(datagram); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-out:
		if !bytes.Equal(got.Data, datagram) {
			t.Errorf("data = %x", got.Data)
		}
		if got.RecvTime <= 0 {
			t.Error("RecvTime not set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no datagram received")
	}

	conn.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("readData did not return after close")
	}
}

func TestWriteRecords(t *testing.T) {
	text := "BO_ 2364539904 EEC1: 8 Vector__XXX\n" +
		" SG_ Engine_Speed : 24|16@1+ (0.125,0) [0|8031.88] \"rpm\" Vector__XXX\n" +
		"NS_ :\n"

	var buf bytes.Buffer
	if err := writeRecords(&buf, text, nil); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[0], `"kind":"MessageDefinition"`) || !strings.Contains(lines[0], `"line":1`) {
		t.Errorf("line 0 = %s", lines[0])
	}

	buf.Reset()
	if err := writeRecords(&buf, text, []string{"SignalDefinition"}); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 1 || !strings.Contains(buf.String(), "Engine_Speed") {
		t.Errorf("filtered = %s", buf.String())
	}
}

func TestDecode(t *testing.T) {
	lib, err := loadLibrary(&base.DBC{DBCPath: sampleDBC})
	if err != nil {
		t.Fatal(err)
	}

	payload, err := parsePayload("11 22 33 44 55 66 77 88")
	if err != nil || !bytes.Equal(payload, eec1Payload) {
		t.Fatalf("parsePayload = %x, %v", payload, err)
	}
	if _, err := parsePayload("1"); err == nil {
		t.Error("expected error for odd hex")
	}

	msg, err := findMessage(lib, 0xF004, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := findMessage(lib, 0xF004, false); err == nil {
		t.Error("0xF004 is not a CAN id")
	}

	var buf bytes.Buffer
	if err := writeDecoded(&buf, msg, payload, "text"); err != nil {
		t.Fatal(err)
	}
	want := "EEC1 id=2364539904 pgn=0xf004 sa=0\n" +
		"  Engine_Speed = 2728.5 rpm\n" +
		"  Actual_Engine_Percent_Torque = -74 %\n"
	if buf.String() != want {
		t.Errorf("text =\n%s\nwant\n%s", buf.String(), want)
	}

	buf.Reset()
	if err := writeDecoded(&buf, msg, payload, "json"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"spn":190`) || !strings.Contains(buf.String(), `"value":2728.5`) {
		t.Errorf("json = %s", buf.String())
	}
}

func BenchmarkHandleData(b *testing.B) {
	lib, err := loadLibrary(&base.DBC{DBCPath: sampleDBC})
	if err != nil {
		b.Fatal(err)
	}
	library := rwmap.NewRWLibrary(lib)
	cfg := base.NewConfig()
	br := newBridge(cfg, canjson.NewEncoder(library, whitelist.New(library, false)), discardPublisher{})

	datagram := can.AppendDatagram(nil, can.PDU{CanId: 2364539904, Payload: eec1Payload})
	data := RecvData{RecvTime: 1, Data: datagram}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		br.handleData(context.Background(), data)
	}
}
