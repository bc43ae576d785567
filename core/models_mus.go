package core

import (
	"errors"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// ErrNegativeLength is returned when a MUS-encoded slice length is negative.
var ErrNegativeLength = errors.New("negative length")

// FlowMUS serializes Flow descriptors in MUS format.
//
// Field order: Name, Table, Stamp, Dependencies, Priority, Hash, Seq, UpdatedAt.
// UpdatedAt is stored as Unix microseconds, 0 meaning the zero time.
var FlowMUS = flowMUS{}

type flowMUS struct{}

func (flowMUS) Marshal(v Flow, bs []byte) (n int) {
	n = ord.String.Marshal(v.Name, bs)
	n += ord.String.Marshal(v.Table, bs[n:])
	n += ord.String.Marshal(v.Stamp, bs[n:])
	n += varint.Int.Marshal(len(v.Dependencies), bs[n:])
	for _, dep := range v.Dependencies {
		n += ord.String.Marshal(dep, bs[n:])
	}
	n += varint.Int.Marshal(v.Priority, bs[n:])
	n += ord.String.Marshal(v.Hash, bs[n:])
	n += varint.Uint64.Marshal(v.Seq, bs[n:])
	n += varint.Int64.Marshal(unixMicro(v.UpdatedAt), bs[n:])
	return
}

func (flowMUS) Unmarshal(bs []byte) (v Flow, n int, err error) {
	var n1 int
	if v.Name, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.Table, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Stamp, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1

	var count int
	if count, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if count < 0 {
		err = ErrNegativeLength
		return
	}
	if count > 0 {
		v.Dependencies = make([]string, count)
		for i := range count {
			if v.Dependencies[i], n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return
			}
			n += n1
		}
	}

	if v.Priority, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Hash, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Seq, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1

	var micros int64
	if micros, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if micros != 0 {
		v.UpdatedAt = time.UnixMicro(micros).UTC()
	}
	return
}

func (flowMUS) Size(v Flow) (size int) {
	size = ord.String.Size(v.Name)
	size += ord.String.Size(v.Table)
	size += ord.String.Size(v.Stamp)
	size += varint.Int.Size(len(v.Dependencies))
	for _, dep := range v.Dependencies {
		size += ord.String.Size(dep)
	}
	size += varint.Int.Size(v.Priority)
	size += ord.String.Size(v.Hash)
	size += varint.Uint64.Size(v.Seq)
	size += varint.Int64.Size(unixMicro(v.UpdatedAt))
	return
}

func unixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}
