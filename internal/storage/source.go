package storage

import "io"

// SizeHint bounds how many bytes a Source will yield. Upper is nil when
// unknown. The engine uses only Lower, to choose between the single-shot
// and resumable upload paths (spec §4.1).
type SizeHint struct {
	Lower int64
	Upper *int64
}

// Source is a lazy byte producer: each call to Next either returns the
// next buffer, signals end-of-stream with io.EOF, or fails with a source
// error. Buffers returned by a source must not be mutated by the engine;
// the engine may slice them but never overwrite their contents.
type Source interface {
	// Next returns the next chunk of bytes. It returns io.EOF (with a nil
	// or empty buf) once the source is exhausted.
	Next() (buf []byte, err error)
	// SizeHint reports the source's expected size, if known.
	SizeHint() SizeHint
}

// SeekableSource additionally supports seeking to an absolute byte offset;
// subsequent Next calls resume from that offset (spec §4.1). Required by
// the unbuffered upload driver and by checksum precompute mode.
type SeekableSource interface {
	Source
	Seek(absoluteOffset int64) error
}

// readerSource adapts an io.Reader into a Source, reading in fixed-size
// buffers. Grounded on the teacher's io.ReaderAt-based chunk loop in
// upload.go, generalized to a pull-based streaming abstraction.
type readerSource struct {
	r        io.Reader
	bufSize  int
	sizeHint SizeHint
	haveHint bool
}

// NewReaderSource wraps r as a Source reading bufSize-byte buffers. Pass a
// non-negative knownSize when the caller knows the total length (e.g. from
// os.File.Stat); pass -1 when unknown.
func NewReaderSource(r io.Reader, bufSize int, knownSize int64) Source {
	s := &readerSource{r: r, bufSize: bufSize}
	if knownSize >= 0 {
		s.sizeHint = SizeHint{Lower: knownSize, Upper: &knownSize}
		s.haveHint = true
	}

	return s
}

func (s *readerSource) Next() ([]byte, error) {
	buf := make([]byte, s.bufSize)

	n, err := io.ReadFull(s.r, buf)
	if n > 0 {
		if err == io.ErrUnexpectedEOF {
			return buf[:n], nil
		}

		if err == nil {
			return buf, nil
		}

		return buf[:n], err
	}

	return nil, err
}

func (s *readerSource) SizeHint() SizeHint {
	if s.haveHint {
		return s.sizeHint
	}

	return SizeHint{}
}

// seekableReaderSource adapts an io.ReadSeeker into a SeekableSource.
type seekableReaderSource struct {
	readerSource
	rs io.ReadSeeker
}

// NewSeekableSource wraps rs (e.g. *os.File) as a SeekableSource.
func NewSeekableSource(rs io.ReadSeeker, bufSize int, knownSize int64) SeekableSource {
	s := &seekableReaderSource{rs: rs}
	s.r = rs
	s.bufSize = bufSize

	if knownSize >= 0 {
		s.sizeHint = SizeHint{Lower: knownSize, Upper: &knownSize}
		s.haveHint = true
	}

	return s
}

func (s *seekableReaderSource) Seek(absoluteOffset int64) error {
	_, err := s.rs.Seek(absoluteOffset, io.SeekStart)
	if err != nil {
		return &Error{Kind: KindIo, Message: "seeking source", Err: err}
	}

	return nil
}

// BytesSource wraps an in-memory buffer as a SeekableSource, useful for
// small payloads and tests.
func BytesSource(data []byte, bufSize int) SeekableSource {
	r := &byteReader{data: data}
	return NewSeekableSource(r, bufSize, int64(len(data)))
}

// byteReader is a minimal io.ReadSeeker over a byte slice.
type byteReader struct {
	data []byte
	pos  int
}

func (b *byteReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}

	n := copy(p, b.data[b.pos:])
	b.pos += n

	return n, nil
}

func (b *byteReader) Seek(offset int64, whence int) (int64, error) {
	var newPos int64

	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = int64(b.pos) + offset
	case io.SeekEnd:
		newPos = int64(len(b.data)) + offset
	}

	if newPos < 0 || newPos > int64(len(b.data)) {
		return 0, &Error{Kind: KindBinding, Message: "seek out of range"}
	}

	b.pos = int(newPos)

	return newPos, nil
}
