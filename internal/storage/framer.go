package storage

import "io"

// UploadQuantum is the fixed chunk-size alignment for resumable uploads
// (spec §4.3): every non-final chunk's total size is an exact multiple of
// this value.
const UploadQuantum = 256 * 1024

// Framer splits a Source into upload chunks aligned to UploadQuantum,
// carrying a remainder buffer across calls when a source yields a buffer
// that straddles the quantum boundary (spec §4.3). Grounded on the
// teacher's chunk-alignment loop in upload.go (uploadAllChunks), adapted
// from "chunk an io.ReaderAt" to "frame a pull-based streaming source with
// carried remainder bytes".
type Framer struct {
	source    Source
	remainder []byte
	done      bool
}

// NewFramer wraps source for chunked framing.
func NewFramer(source Source) *Framer {
	return &Framer{source: source}
}

// Reset discards any buffered remainder and clears completion state. Callers
// that reposition the underlying Source directly (spec §4.9's short-persist
// rewind) must call Reset afterward: NextChunk's peek-ahead (see below) may
// have already pulled bytes from beyond the rewind point, and those bytes
// would otherwise resurface out of order.
func (f *Framer) Reset() {
	f.remainder = nil
	f.done = false
}

// Chunk is one frame produced by NextChunk: its bytes and whether it is
// the final (short, or exactly-quantum-but-source-exhausted) chunk.
type Chunk struct {
	Data  []byte
	Final bool
}

// NextChunk implements the per-call algorithm of spec §4.3:
//  1. If a remainder exists: split, return, or absorb it against
//     targetSize.
//  2. Pull buffers from the source until the accumulated chunk would
//     exceed targetSize, splitting the overflowing buffer at the boundary.
//  3. On source exhaustion before reaching targetSize, return the
//     accumulated short chunk as final.
//
// Both upload drivers call it with targetSize == UploadQuantum.
func (f *Framer) NextChunk(targetSize int) (Chunk, error) {
	if f.done {
		return Chunk{Final: true}, io.EOF
	}

	var acc []byte

	if len(f.remainder) > 0 {
		switch {
		case len(f.remainder) > targetSize:
			acc = f.remainder[:targetSize]
			f.remainder = f.remainder[targetSize:]

			return Chunk{Data: acc}, nil
		case len(f.remainder) == targetSize:
			acc = f.remainder
			f.remainder = nil

			return Chunk{Data: acc}, nil
		default:
			acc = append(acc, f.remainder...)
			f.remainder = nil
		}
	}

	for len(acc) < targetSize {
		buf, err := f.source.Next()
		if len(buf) > 0 {
			remainingRoom := targetSize - len(acc)
			if len(buf) > remainingRoom {
				acc = append(acc, buf[:remainingRoom]...)
				f.remainder = append([]byte(nil), buf[remainingRoom:]...)

				return Chunk{Data: acc}, nil
			}

			acc = append(acc, buf...)
		}

		if err == io.EOF {
			f.done = true

			return Chunk{Data: acc, Final: true}, nil
		}

		if err != nil {
			return Chunk{}, &Error{Kind: KindIo, Message: "reading upload source", Err: err}
		}
	}

	// acc has reached targetSize exactly with no split-off remainder, so
	// finality is still unknown per spec §4.3 ("terminal is identified by
	// a short frame"). Peek one more read to resolve it without waiting
	// for an extra top-level call: an immediate EOF makes this chunk
	// final; a real buffer becomes next call's remainder.
	buf, err := f.source.Next()
	if err == io.EOF {
		f.done = true
		return Chunk{Data: acc, Final: true}, nil
	}

	if err != nil {
		return Chunk{}, &Error{Kind: KindIo, Message: "reading upload source", Err: err}
	}

	if len(buf) > 0 {
		f.remainder = append([]byte(nil), buf...)
	}

	return Chunk{Data: acc}, nil
}
