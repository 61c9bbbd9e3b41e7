package journal

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/mirkobrombin/go-cachetx/pkg/mutation"
)

var ErrCorrupt = errors.New("journal: corrupt record")

// Record describes a flush that did not reach the store.
type Record struct {
	TxID      string
	Strict    bool
	Reason    string
	At        time.Time
	Mutations []mutation.Mutation
}

// Keys returns the distinct keys touched by the record, in first-touch order.
func (r Record) Keys() []string {
	return mutation.Keys(r.Mutations)
}

// frame layout: [Checksum:8][PayloadLen:4][Payload:N]
// the payload is the zstd-compressed body.
const frameHeaderSize = 8 + 4

// encodeBody lays out a record as
// [At:8][Strict:1][TxIDLen:4][TxID][ReasonLen:4][Reason][Count:4] then per mutation
// [Kind:1][KeyLen:4][Key][ValueLen:4][Value].
func encodeBody(r Record) []byte {
	size := 8 + 1 + 4 + len(r.TxID) + 4 + len(r.Reason) + 4
	for _, m := range r.Mutations {
		size += 1 + 4 + len(m.Key) + 4 + len(m.Value)
	}

	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint64(buf, uint64(r.At.UnixNano()))
	if r.Strict {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendString(buf, r.TxID)
	buf = appendString(buf, r.Reason)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Mutations)))
	for _, m := range r.Mutations {
		buf = append(buf, byte(m.Kind))
		buf = appendString(buf, m.Key)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(m.Value)))
		buf = append(buf, m.Value...)
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func decodeBody(buf []byte) (Record, error) {
	d := decoder{buf: buf}

	var r Record
	r.At = time.Unix(0, int64(d.u64()))
	r.Strict = d.u8() == 1
	r.TxID = string(d.blob())
	r.Reason = string(d.blob())

	count := d.u32()
	if d.err == nil && int(count) > len(buf) {
		return Record{}, ErrCorrupt
	}
	r.Mutations = make([]mutation.Mutation, 0, count)
	for i := uint32(0); i < count && d.err == nil; i++ {
		m := mutation.Mutation{Kind: mutation.Kind(d.u8())}
		m.Key = string(d.blob())
		v := d.blob()
		switch {
		case m.Kind != mutation.KindSet:
		case v == nil:
			m.Value = []byte{}
		default:
			m.Value = v
		}
		r.Mutations = append(r.Mutations, m)
	}

	if d.err != nil || d.off != len(buf) {
		return Record{}, ErrCorrupt
	}
	return r, nil
}

func checksum(payload []byte) uint64 {
	return xxhash.Sum64(payload)
}

type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.buf) {
		d.err = ErrCorrupt
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u8() byte {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (d *decoder) blob() []byte {
	n := d.u32()
	b := d.take(int(n))
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
