package rpc

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// CodecHandle is the Binc handle shared by every client and server codec.
func CodecHandle() codec.Handle {
	h := codec.BincHandle{}
	h.StructToArray = true
	h.OptimumSize = true
	return &h
}

// SerializedSizeOf returns the encoded size of e under CodecHandle.
func SerializedSizeOf(e interface{}) (int, error) {
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, CodecHandle()).Encode(e); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}
