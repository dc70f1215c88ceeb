package ws

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Encoder turns JSON frames into zstd frames for pages that negotiated
// ProtocolZstd. One Encoder is shared by every connection of a hub.
type Encoder struct {
	w *zstd.Encoder
}

func NewEncoder() (*Encoder, error) {
	w, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &Encoder{w: w}, nil
}

// Compress is safe for concurrent use.
func (e *Encoder) Compress(msg []byte) []byte {
	return e.w.EncodeAll(msg, make([]byte, 0, len(msg)/2))
}

func (e *Encoder) Close() {
	_ = e.w.Close()
}
