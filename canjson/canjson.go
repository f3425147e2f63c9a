package canjson

import (
	"strconv"

	"CANParse/base"
	"CANParse/can"
	"CANParse/pgn"

	jsoniter "github.com/json-iterator/go"
)

var log = base.Logger

// MicroPerMilli converts PDU receive stamps (µs) to document stamps (ms).
const MicroPerMilli = 1000

// Library resolves a CAN id to its merged definition; rwmap.RWLibrary and
// pgn.Library implement it.
type Library interface {
	Message(id uint32) (*pgn.Message, bool)
}

// Filter selects which ids and signals are decoded; whitelist.WhiteList
// implements it.
type Filter interface {
	IsEnable() bool
	QueryByCanId(canId uint32) bool
	QueryByCanIdAndSignal(canId uint32, signal string) bool
}

type signal struct {
	signalName  string
	signalValue float32
}

type canFrame struct {
	timeStamp int64
	canName   string
	canId     uint32
	busId     uint8
	direction uint8
	signals   []signal
	payLoad   []byte
}

/*
{
	"ts": 1692179443894,
	"raw": {
		"EEC1": "1692179443894 2364539904 8 Rx d 8 11 22 33 44 55 66 77 88"
	},
	"EEC1": {
		"id": 2364539904,
		"bus": 8,
		"d": 0,
		"t": 1692179443894,
		"Engine_Speed": 2728.5
	}
}
*/

type CanData struct {
	CanId     uint32 `json:"id"`
	BusId     uint8  `json:"bus"`
	Direction uint8  `json:"d"`
	TimeStamp int64  `json:"t"`
	Signals   map[string]any
}

type JsonData struct {
	TimeStamp int64             `json:"ts"`
	Raw       map[string]string `json:"raw"`
	Attr      map[string]*CanData
}

// MarshalJSON flattens Attr and each frame's signals into the top level.
func (j *JsonData) MarshalJSON() ([]byte, error) {
	datas := make(map[string]any, len(j.Attr)+2)
	datas["ts"] = j.TimeStamp
	datas["raw"] = j.Raw

	for k, v := range j.Attr {
		cans := make(map[string]any, len(v.Signals)+4)
		cans["id"] = v.CanId
		cans["bus"] = v.BusId
		cans["d"] = v.Direction
		cans["t"] = v.TimeStamp
		for k, v := range v.Signals {
			cans[k] = v
		}

		datas[k] = cans
	}

	return jsoniter.Marshal(datas)
}

type Encoder struct {
	lib    Library
	filter Filter
}

// NewEncoder decodes against lib. A nil filter decodes every known id.
func NewEncoder(lib Library, filter Filter) *Encoder {
	return &Encoder{lib: lib, filter: filter}
}

// Encode decodes a PDU batch. Whitelisted (or, with the list disabled,
// all known) ids become one JSON document; ids outside an enabled list are
// rendered as raw text lines. Either result is nil when empty.
func (e *Encoder) Encode(pdus []can.PDU) (whiteListJson []byte, otherJson []byte) {
	var otherFrames, whiteListFrames []*canFrame
	enabled := e.filter != nil && e.filter.IsEnable()

	for i := range pdus {
		pdu := &pdus[i]
		frame := &canFrame{
			timeStamp: pdu.Timestamp / MicroPerMilli,
			canId:     pdu.CanId,
			busId:     pdu.BusId,
			direction: pdu.Direction,
			payLoad:   pdu.Payload,
		}

		if enabled && !e.filter.QueryByCanId(pdu.CanId) {
			otherFrames = append(otherFrames, frame)
			continue
		}
		if !e.decodeCan(pdu, frame, enabled) {
			continue
		}
		whiteListFrames = append(whiteListFrames, frame)
	}

	return toWhiteListJson(whiteListFrames), toOtherJson(otherFrames)
}

func (e *Encoder) decodeCan(pdu *can.PDU, frame *canFrame, enabled bool) bool {
	msg, ok := e.lib.Message(pdu.CanId)
	if !ok {
		log.Warnf("No dbc data !!! canId(%d)", pdu.CanId)
		return false
	}

	frame.canName = msg.Name
	if frame.canName == "" {
		frame.canName = strconv.FormatUint(uint64(pdu.CanId), 10)
	}

	// 按DBC内信号顺序遍历
	for _, sigName := range msg.SignalNames() {
		if enabled && !e.filter.QueryByCanIdAndSignal(pdu.CanId, sigName) {
			continue
		}

		v, ok := msg.Signals[sigName].ParseMessage(pdu.Payload)
		if !ok {
			log.Warnf("Decode (%s) failed ! canId(%d)", sigName, pdu.CanId)
			continue
		}
		frame.signals = append(frame.signals, signal{sigName, v})
	}
	return true
}

func toWhiteListJson(canFrames []*canFrame) []byte {
	if len(canFrames) <= 0 {
		return nil
	}

	timeStamp := canFrames[0].timeStamp
	jData := &JsonData{
		TimeStamp: timeStamp,
		Raw:       make(map[string]string, len(canFrames)),
		Attr:      make(map[string]*CanData, len(canFrames)),
	}

	for _, frame := range canFrames {
		jData.Raw[frame.canName] = string(appendRaw(nil, frame.timeStamp, frame))

		canData := &CanData{
			frame.canId,
			frame.busId,
			frame.direction,
			timeStamp,
			make(map[string]any, len(frame.signals)),
		}
		for _, s := range frame.signals {
			canData.Signals[s.signalName] = s.signalValue
		}
		jData.Attr[frame.canName] = canData
	}

	retJson, err := jData.MarshalJSON()
	if err != nil {
		log.Errorln(err)
		return nil
	}
	return retJson
}

func toOtherJson(canFrames []*canFrame) []byte {
	if len(canFrames) <= 0 {
		return nil
	}

	timeStamp := canFrames[0].timeStamp
	var raw []byte
	for _, frame := range canFrames {
		raw = appendRaw(raw, timeStamp, frame)
		raw = append(raw, '\n')
	}
	return raw
}

// appendRaw renders "1690681909000 372 8 Rx d 8 00 00 00 AA 0D 00 00 00".
func appendRaw(dst []byte, timeStamp int64, frame *canFrame) []byte {
	dst = strconv.AppendInt(dst, timeStamp, 10)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(frame.canId), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(frame.busId), 10)
	dst = append(dst, ' ')

	switch frame.direction {
	case can.SDPERecv:
		dst = append(dst, "Rx d "...)
	case can.SDPESend:
		dst = append(dst, "Tx d "...)
	}

	dst = strconv.AppendInt(dst, int64(len(frame.payLoad)), 10)
	for _, oneByte := range frame.payLoad {
		dst = append(dst, ' ')
		dst = appendHex(dst, oneByte)
	}
	return dst
}

const hexDigits = "0123456789ABCDEF"

func appendHex(dst []byte, b byte) []byte {
	return append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
}
