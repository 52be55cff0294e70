package storage

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"hash"
	"hash/crc32"
)

// crc32cTable is the Castagnoli polynomial table (spec §4.2). GCS always
// computes CRC32C over this polynomial, never IEEE.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// ChecksumEngine incrementally accumulates CRC32C and/or MD5 over bytes
// delivered strictly in offset order (spec §3, §4.2). Either algorithm can
// be turned off; a caller supplying known_crc32c()/known_md5() disables
// client-side computation for that algorithm entirely by never
// constructing the corresponding hash.
type ChecksumEngine struct {
	crc32c hash.Hash32
	md5    hash.Hash

	expectedNextOffset int64
}

// NewChecksumEngine starts an accumulator. crc32cOn/md5On select which
// algorithms to compute; the caller combines this with known-checksum
// opt-outs before ever calling Update.
func NewChecksumEngine(crc32cOn, md5On bool) *ChecksumEngine {
	e := &ChecksumEngine{}
	if crc32cOn {
		e.crc32c = crc32.New(crc32cTable)
	}

	if md5On {
		e.md5 = md5.New()
	}

	return e
}

// Update feeds buf, which must begin at offset (spec §3: "update(offset,
// bytes) may be called only with offsets in strictly non-decreasing order
// and contiguous coverage; a call out of order is a programming error").
func (e *ChecksumEngine) Update(offset int64, buf []byte) {
	if offset != e.expectedNextOffset {
		panic("storage: checksum engine fed out-of-order offset")
	}

	if e.crc32c != nil {
		e.crc32c.Write(buf)
	}

	if e.md5 != nil {
		e.md5.Write(buf)
	}

	e.expectedNextOffset += int64(len(buf))
}

// Digest is the finalized output of a ChecksumEngine (spec §4.2).
type Digest struct {
	CRC32C    uint32
	CRC32CSet bool
	MD5       []byte // 16 raw bytes, nil when MD5 was not computed
}

// Finalize emits the accumulated digests. Calling Update afterward is
// undefined; the engine is meant to be used once per attempt.
func (e *ChecksumEngine) Finalize() Digest {
	var d Digest

	if e.crc32c != nil {
		d.CRC32C = e.crc32c.Sum32()
		d.CRC32CSet = true
	}

	if e.md5 != nil {
		d.MD5 = e.md5.Sum(nil)
	}

	return d
}

// crc32cBase64 base64-encodes a CRC32C value as big-endian 4 bytes, the
// wire format the service declares it in (spec §6).
func crc32cBase64(v uint32) string {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)

	return base64.StdEncoding.EncodeToString(buf[:])
}

// md5Base64 base64-encodes 16 raw MD5 bytes.
func md5Base64(sum []byte) string {
	return base64.StdEncoding.EncodeToString(sum)
}

// decodeCRC32C reverses crc32cBase64, failing with a Deser error on
// malformed input.
func decodeCRC32C(s string) (uint32, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != 4 {
		return 0, &Error{Kind: KindDeser, Message: "malformed crc32c hash value"}
	}

	return binary.BigEndian.Uint32(raw), nil
}

// decodeMD5 reverses md5Base64, failing with a Deser error on malformed
// input.
func decodeMD5(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != 16 {
		return nil, &Error{Kind: KindDeser, Message: "malformed md5 hash value"}
	}

	return raw, nil
}

// compareCRC32C compares two CRC32C values by their byte representation in
// constant time (spec §3: "compared ... by constant-time equality on the
// byte representation"), returning a ChecksumMismatch error on disagreement.
func compareCRC32C(expected, got uint32) error {
	var a, b [4]byte
	binary.BigEndian.PutUint32(a[:], expected)
	binary.BigEndian.PutUint32(b[:], got)

	if subtle.ConstantTimeCompare(a[:], b[:]) != 1 {
		return checksumMismatchError(ChecksumCRC32C, crc32cBase64(expected), crc32cBase64(got))
	}

	return nil
}

// compareMD5 compares two MD5 digests in constant time, returning a
// ChecksumMismatch error on disagreement.
func compareMD5(expected, got []byte) error {
	if len(expected) != len(got) || subtle.ConstantTimeCompare(expected, got) != 1 {
		return checksumMismatchError(ChecksumMD5, md5Base64(expected), md5Base64(got))
	}

	return nil
}
