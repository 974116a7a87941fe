package codec

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// DefaultVersion is the format revision new records are created with and
// the only revision a default codec accepts.
const DefaultVersion uint8 = 1

// CodecConfig controls decode policy.
type CodecConfig struct {
	// SupportedVersions lists the format revisions the codec accepts.
	// Empty means the default set, which is DefaultVersion only.
	SupportedVersions []uint8

	// StrictTrailing rejects input with bytes left over after the
	// declared structure. The default is to ignore trailing bytes, which
	// tolerates records embedded in larger buffers.
	StrictTrailing bool
}

// RecordCodec encodes and decodes leaf records. The zero value is not
// usable. Construct with NewRecordCodec or NewRecordCodecWithConfig. A
// codec is safe for concurrent use.
type RecordCodec struct {
	versions map[uint8]struct{}
	strict   bool
}

// NewRecordCodec creates a codec accepting only DefaultVersion and
// ignoring trailing bytes.
func NewRecordCodec() *RecordCodec {
	return NewRecordCodecWithConfig(CodecConfig{})
}

// NewRecordCodecWithConfig creates a codec with explicit decode policy.
func NewRecordCodecWithConfig(cfg CodecConfig) *RecordCodec {
	supported := cfg.SupportedVersions
	if len(supported) == 0 {
		supported = []uint8{DefaultVersion}
	}

	versions := make(map[uint8]struct{}, len(supported))
	for _, v := range supported {
		versions[v] = struct{}{}
	}

	return &RecordCodec{versions: versions, strict: cfg.StrictTrailing}
}

// Decode parses one record from the front of data in a single pass.
//
// The version byte is checked against the supported set before anything
// else is parsed. Every length prefix is validated against the remaining
// input before its payload is read, so a declared length can never cause
// a read past the end of data. The returned record owns copies of all
// variable-length fields and does not alias data.
func (c *RecordCodec) Decode(data []byte) (*Record, error) {
	rd := newWireReader(data)

	version, err := rd.uint8()
	if err != nil {
		return nil, errors.Wrap(err, "reading version")
	}
	if _, ok := c.versions[version]; !ok {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", version)
	}

	r := &Record{Version: version}

	if r.Type, err = rd.uint8(); err != nil {
		return nil, errors.Wrap(err, "reading type")
	}

	descSize, err := rd.uint8()
	if err != nil {
		return nil, errors.Wrap(err, "reading description size")
	}
	if r.Description, err = rd.bytes(int(descSize)); err != nil {
		return nil, errors.Wrapf(err, "reading description (%d bytes)", descSize)
	}

	hashSize, err := rd.uint8()
	if err != nil {
		return nil, errors.Wrap(err, "reading hash size")
	}
	if r.Hash, err = rd.bytes(int(hashSize)); err != nil {
		return nil, errors.Wrapf(err, "reading hash (%d bytes)", hashSize)
	}

	if r.ExpiryMS, err = rd.uint64(); err != nil {
		return nil, errors.Wrap(err, "reading expiry")
	}

	extCount, err := rd.uint16()
	if err != nil {
		return nil, errors.Wrap(err, "reading extension count")
	}

	// Cap the preallocation by what the remaining input could possibly
	// hold, so a lying count cannot force a large allocation.
	capHint := int(extCount)
	if most := rd.remaining() / extensionHeaderSize; capHint > most {
		capHint = most
	}

	r.Extensions = make([]Extension, 0, capHint)
	for i := 0; i < int(extCount); i++ {
		var ext Extension
		if ext.Type, err = rd.uint8(); err != nil {
			return nil, errors.Wrapf(err, "reading extension %d type", i)
		}
		extSize, err := rd.uint16()
		if err != nil {
			return nil, errors.Wrapf(err, "reading extension %d size", i)
		}
		if ext.Data, err = rd.bytes(int(extSize)); err != nil {
			return nil, errors.Wrapf(err, "reading extension %d data (%d bytes)", i, extSize)
		}
		r.Extensions = append(r.Extensions, ext)
	}

	if c.strict && rd.remaining() > 0 {
		return nil, errors.Wrapf(ErrTrailingData, "%d bytes after record", rd.remaining())
	}

	return r, nil
}

// Encode serializes a record into its wire form. Field sizes are checked
// against the wire limits before any bytes are produced, and the record's
// version must be in the codec's supported set. The returned buffer is
// exactly r.Size() bytes.
func (c *RecordCodec) Encode(r *Record) ([]byte, error) {
	if _, ok := c.versions[r.Version]; !ok {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", r.Version)
	}
	if len(r.Description) > MaxDescriptionSize {
		return nil, errors.Wrapf(ErrFieldTooLarge, "description is %d bytes, limit %d", len(r.Description), MaxDescriptionSize)
	}
	if len(r.Hash) > MaxHashSize {
		return nil, errors.Wrapf(ErrFieldTooLarge, "hash is %d bytes, limit %d", len(r.Hash), MaxHashSize)
	}
	if len(r.Extensions) > MaxExtensionCount {
		return nil, errors.Wrapf(ErrFieldTooLarge, "%d extensions, limit %d", len(r.Extensions), MaxExtensionCount)
	}
	for i, ext := range r.Extensions {
		if len(ext.Data) > MaxExtensionSize {
			return nil, errors.Wrapf(ErrFieldTooLarge, "extension %d is %d bytes, limit %d", i, len(ext.Data), MaxExtensionSize)
		}
	}

	buf := make([]byte, r.Size())
	off := 0

	buf[off] = r.Version
	off++
	buf[off] = r.Type
	off++

	buf[off] = uint8(len(r.Description))
	off++
	off += copy(buf[off:], r.Description)

	buf[off] = uint8(len(r.Hash))
	off++
	off += copy(buf[off:], r.Hash)

	binary.BigEndian.PutUint64(buf[off:], r.ExpiryMS)
	off += 8

	binary.BigEndian.PutUint16(buf[off:], uint16(len(r.Extensions)))
	off += 2

	for _, ext := range r.Extensions {
		buf[off] = ext.Type
		off++
		binary.BigEndian.PutUint16(buf[off:], uint16(len(ext.Data)))
		off += 2
		off += copy(buf[off:], ext.Data)
	}

	return buf, nil
}

// wireReader is a bounds-checked cursor over an input buffer. Every read
// verifies the remaining length first and fails with ErrTruncated instead
// of slicing past the end.
type wireReader struct {
	buf []byte
	off int
}

func newWireReader(buf []byte) *wireReader {
	return &wireReader{buf: buf}
}

func (rd *wireReader) remaining() int {
	return len(rd.buf) - rd.off
}

func (rd *wireReader) uint8() (uint8, error) {
	if rd.remaining() < 1 {
		return 0, errors.Wrapf(ErrTruncated, "need 1 byte at offset %d, have 0", rd.off)
	}
	v := rd.buf[rd.off]
	rd.off++
	return v, nil
}

func (rd *wireReader) uint16() (uint16, error) {
	if rd.remaining() < 2 {
		return 0, errors.Wrapf(ErrTruncated, "need 2 bytes at offset %d, have %d", rd.off, rd.remaining())
	}
	v := binary.BigEndian.Uint16(rd.buf[rd.off:])
	rd.off += 2
	return v, nil
}

func (rd *wireReader) uint64() (uint64, error) {
	if rd.remaining() < 8 {
		return 0, errors.Wrapf(ErrTruncated, "need 8 bytes at offset %d, have %d", rd.off, rd.remaining())
	}
	v := binary.BigEndian.Uint64(rd.buf[rd.off:])
	rd.off += 8
	return v, nil
}

// bytes reads n bytes and returns a copy, so decoded records never alias
// the input buffer. n == 0 returns an empty, non-nil slice.
func (rd *wireReader) bytes(n int) ([]byte, error) {
	if rd.remaining() < n {
		return nil, errors.Wrapf(ErrTruncated, "need %d bytes at offset %d, have %d", n, rd.off, rd.remaining())
	}
	out := make([]byte, n)
	copy(out, rd.buf[rd.off:])
	rd.off += n
	return out, nil
}
