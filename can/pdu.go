package can

import (
	"encoding/binary"

	"CANParse/base"

	"github.com/cockroachdb/errors"
	einride "go.einride.tech/can"
)

var log = base.Logger

type PDU struct {
	UdpTimeStamp uint64
	Timestamp    int64
	CanId        uint32
	BusId        uint8
	Direction    uint8
	PayloadLen   uint16
	Payload      []byte
}

// SDPE Direction
const (
	SDPERecv = iota
	SDPESend
)

// datagram header
const (
	HeaderLen      = 8
	MsgTypeOffset  = 2
	CanMirrorToETH = 2
)

// pdu
const (
	TimeStampLen = 8
	CanIdLen     = 4
	BusIdLen     = 1
	DirectionLen = 1
	LengthLen    = 2

	PduHeaderLen = TimeStampLen + CanIdLen + BusIdLen + DirectionLen + LengthLen
)

var (
	ErrShortDatagram = errors.New("datagram shorter than header")
	ErrMsgType       = errors.New("unknown msg type")
	ErrTruncatedPDU  = errors.New("truncated pdu")
)

// ParsePDUs splits one mirrored-CAN datagram into PDUs stamped with
// recvTime. PDUs parsed before a truncated one are returned with the error.
func ParsePDUs(data []byte, recvTime int64) ([]PDU, error) {
	if len(data) <= HeaderLen {
		return nil, errors.Wrapf(ErrShortDatagram, "dataLen(%d)", len(data))
	}

	if msgType := data[MsgTypeOffset]; msgType != CanMirrorToETH {
		return nil, errors.Wrapf(ErrMsgType, "msgType(%d)", msgType)
	}

	var out []PDU
	pdus := data[HeaderLen:]
	for len(pdus) > 0 {
		if len(pdus) < PduHeaderLen {
			return out, errors.Wrapf(ErrTruncatedPDU, "header dataLen(%d)", len(pdus))
		}

		var pdu PDU
		pdu.Timestamp = recvTime
		pdu.UdpTimeStamp = binary.BigEndian.Uint64(pdus[:TimeStampLen])
		pdu.CanId = binary.BigEndian.Uint32(pdus[TimeStampLen : TimeStampLen+CanIdLen])
		pdu.BusId = pdus[TimeStampLen+CanIdLen]
		pdu.Direction = pdus[PduHeaderLen-LengthLen-DirectionLen]
		pdu.PayloadLen = binary.BigEndian.Uint16(pdus[PduHeaderLen-LengthLen : PduHeaderLen])

		pduLen := PduHeaderLen + int(pdu.PayloadLen)
		if len(pdus) < pduLen {
			return out, errors.Wrapf(ErrTruncatedPDU, "pduLen want(%d), has(%d), canId(%d)", pduLen, len(pdus), pdu.CanId)
		}
		pdu.Payload = pdus[PduHeaderLen:pduLen]
		pdus = pdus[pduLen:]

		log.Debugf("recvCanId(%d), pduLength(%d), Payload:%v", pdu.CanId, pduLen, pdu.Payload)
		out = append(out, pdu)
	}

	return out, nil
}

// AppendDatagram encodes pdus in the format ParsePDUs reads.
func AppendDatagram(dst []byte, pdus ...PDU) []byte {
	var header [HeaderLen]byte
	header[MsgTypeOffset] = CanMirrorToETH
	dst = append(dst, header[:]...)

	for _, pdu := range pdus {
		dst = binary.BigEndian.AppendUint64(dst, pdu.UdpTimeStamp)
		dst = binary.BigEndian.AppendUint32(dst, pdu.CanId)
		dst = append(dst, pdu.BusId, pdu.Direction)
		dst = binary.BigEndian.AppendUint16(dst, uint16(len(pdu.Payload)))
		dst = append(dst, pdu.Payload...)
	}
	return dst
}

// Frame converts the PDU into a classic CAN frame. Payload beyond 8 bytes
// is dropped.
func (p *PDU) Frame() einride.Frame {
	var f einride.Frame
	f.ID = p.CanId
	f.IsExtended = p.CanId > einride.MaxID
	f.Length = uint8(copy(f.Data[:], p.Payload))
	return f
}
