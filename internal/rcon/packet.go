package rcon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	packetIDBadAuth = -1
	payloadMaxSize  = 1460

	typeAuth         = 3
	typeAuthResponse = 2
	typeExecCommand  = 2
	typeResponse     = 0

	// id, type and the two trailing zero bytes
	packetHeaderSize = 4 + 4 + 2
)

// packet layout, all integers 32-bit little-endian signed:
//
//	size | id | type | body | 0x00 0x00
type packet struct {
	body []byte
	id   int32
	kind int32
}

func (p *packet) size() int32 {
	return int32(len(p.body) + packetHeaderSize)
}

func (p *packet) marshal() ([]byte, error) {
	buf := new(bytes.Buffer)

	for _, v := range []any{p.size(), p.id, p.kind, p.body, []byte{0, 0}} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
		}
	}
	if buf.Len() >= payloadMaxSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPacketTooLarge, buf.Len(), payloadMaxSize)
	}

	return buf.Bytes(), nil
}

func readPacket(r io.Reader) (*packet, error) {
	var size int32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("read packet size: %w", err)
	}
	if size < packetHeaderSize || size > 1<<16 {
		return nil, fmt.Errorf("%w: size %d", ErrMalformedPacket, size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read packet body: %w", err)
	}

	return &packet{
		id:   int32(binary.LittleEndian.Uint32(buf[:4])),
		kind: int32(binary.LittleEndian.Uint32(buf[4:8])),
		body: bytes.TrimRight(buf[8:size-2], "\x00"),
	}, nil
}
