// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package flowrecord

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Wire format (C1): a length-prefixed binary encoding designed to be the
// value of one bus message per flow. Every variable-length field (strings,
// byte slices) is itself length-prefixed so the whole frame is self
// describing and can be read back without external framing. The payload
// starts with a one-byte format version (wireVersion), which Decode checks;
// it is not compressed. The source-wire decoder that
// produces this representation from raw NetFlow/IPFIX/sFlow packets is out
// of scope (spec §1) — Encode/Decode operate purely on the in-memory Flow
// model.
const wireVersion uint8 = 1

// Encode writes the length-prefixed binary encoding of f: a 4-byte
// big-endian frame length followed by the payload.
func Encode(f *Flow) ([]byte, error) {
	var body bytes.Buffer
	if err := encodeBody(&body, f); err != nil {
		return nil, err
	}
	frame := make([]byte, 4+body.Len())
	binary.BigEndian.PutUint32(frame, uint32(body.Len()))
	copy(frame[4:], body.Bytes())
	return frame, nil
}

// Decode reads one length-prefixed flow frame from b, returning the flow and
// the number of bytes consumed. b may contain trailing bytes belonging to a
// subsequent frame.
func Decode(b []byte) (*Flow, int, error) {
	if len(b) < 4 {
		return nil, 0, fmt.Errorf("flowrecord: short frame header: %d bytes", len(b))
	}
	n := int(binary.BigEndian.Uint32(b))
	if len(b) < 4+n {
		return nil, 0, fmt.Errorf("flowrecord: truncated frame: want %d have %d", n, len(b)-4)
	}
	f, err := decodeBody(bytes.NewReader(b[4 : 4+n]))
	if err != nil {
		return nil, 0, err
	}
	return f, 4 + n, nil
}

func encodeBody(w *bytes.Buffer, f *Flow) error {
	w.WriteByte(wireVersion)
	writeString(w, f.Exporter.ForeignSource)
	writeString(w, f.Exporter.ForeignID)
	writeInt32(w, f.Exporter.NodeID)
	writeString(w, f.Exporter.Location)
	writeUint16(w, uint16(len(f.Exporter.Categories)))
	for _, c := range f.Exporter.Categories {
		writeString(w, c)
	}
	writeInt32(w, f.InputSnmp)
	writeInt32(w, f.OutputSnmp)
	writeString(w, f.SrcAddress)
	writeString(w, f.DstAddress)
	writeUint16(w, f.SrcPort)
	writeUint16(w, f.DstPort)
	w.WriteByte(f.Protocol)
	writeString(w, f.Application)
	writeUint64(w, f.NumBytes)
	writeInt64(w, f.FirstSwitched)
	writeInt64(w, f.DeltaSwitched)
	writeInt64(w, f.LastSwitched)
	w.WriteByte(byte(f.Direction))
	return nil
}

func decodeBody(r io.Reader) (*Flow, error) {
	br := &byteReader{r: r}
	version, err := br.readByte()
	if err != nil {
		return nil, err
	}
	if version != wireVersion {
		return nil, fmt.Errorf("flowrecord: unsupported wire version %d", version)
	}
	f := &Flow{}
	f.Exporter.ForeignSource, err = br.readString()
	if err != nil {
		return nil, err
	}
	if f.Exporter.ForeignID, err = br.readString(); err != nil {
		return nil, err
	}
	if f.Exporter.NodeID, err = br.readInt32(); err != nil {
		return nil, err
	}
	if f.Exporter.Location, err = br.readString(); err != nil {
		return nil, err
	}
	catCount, err := br.readUint16()
	if err != nil {
		return nil, err
	}
	for i := uint16(0); i < catCount; i++ {
		cat, err := br.readString()
		if err != nil {
			return nil, err
		}
		f.Exporter.Categories = append(f.Exporter.Categories, cat)
	}
	if f.InputSnmp, err = br.readInt32(); err != nil {
		return nil, err
	}
	if f.OutputSnmp, err = br.readInt32(); err != nil {
		return nil, err
	}
	if f.SrcAddress, err = br.readString(); err != nil {
		return nil, err
	}
	if f.DstAddress, err = br.readString(); err != nil {
		return nil, err
	}
	if f.SrcPort, err = br.readUint16(); err != nil {
		return nil, err
	}
	if f.DstPort, err = br.readUint16(); err != nil {
		return nil, err
	}
	if f.Protocol, err = br.readByte(); err != nil {
		return nil, err
	}
	if f.Application, err = br.readString(); err != nil {
		return nil, err
	}
	if f.NumBytes, err = br.readUint64(); err != nil {
		return nil, err
	}
	if f.FirstSwitched, err = br.readInt64(); err != nil {
		return nil, err
	}
	if f.DeltaSwitched, err = br.readInt64(); err != nil {
		return nil, err
	}
	if f.LastSwitched, err = br.readInt64(); err != nil {
		return nil, err
	}
	dir, err := br.readByte()
	if err != nil {
		return nil, err
	}
	f.Direction = Direction(dir)
	return f, nil
}

func writeString(w *bytes.Buffer, s string) {
	writeUint16(w, uint16(len(s)))
	w.WriteString(s)
}

func writeUint16(w *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func writeInt32(w *bytes.Buffer, v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.Write(b[:])
}

func writeUint64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func writeInt64(w *bytes.Buffer, v int64) {
	writeUint64(w, uint64(v))
}

// byteReader is a tiny helper over io.Reader that reads the fixed-width and
// length-prefixed fields written above, erroring on short reads.
type byteReader struct {
	r io.Reader
}

func (b *byteReader) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(b.r, buf); err != nil {
		return nil, fmt.Errorf("flowrecord: short read: %w", err)
	}
	return buf, nil
}

func (b *byteReader) readByte() (byte, error) {
	buf, err := b.readN(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (b *byteReader) readUint16() (uint16, error) {
	buf, err := b.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

func (b *byteReader) readInt32() (int32, error) {
	buf, err := b.readN(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf)), nil
}

func (b *byteReader) readUint64() (uint64, error) {
	buf, err := b.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf), nil
}

func (b *byteReader) readInt64() (int64, error) {
	v, err := b.readUint64()
	return int64(v), err
}

func (b *byteReader) readString() (string, error) {
	n, err := b.readUint16()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf, err := b.readN(int(n))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
