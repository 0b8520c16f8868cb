package quic

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/zeusync/posesync/internal/core/protocol"
)

const (
	lengthPrefix = 2
	maxFrameSize = 1<<16 - 1
)

// appendLengthPrefixed appends a 2-byte big-endian length followed by frame.
func appendLengthPrefixed(dst, frame []byte) ([]byte, error) {
	if len(frame) > maxFrameSize {
		return dst, protocol.ErrFrameTooLarge
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(frame)))
	return append(dst, frame...), nil
}

// readLengthPrefixed reads one frame written by appendLengthPrefixed. The
// returned slice is freshly allocated.
func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var header [lengthPrefix]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	frame := make([]byte, binary.BigEndian.Uint16(header[:]))
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, errors.Wrap(err, "truncated stream frame")
	}
	return frame, nil
}
