package codec

import "time"

// Wire limits implied by the length prefixes. A field longer than its
// prefix can declare is unrepresentable and rejected at encode time.
const (
	// MaxDescriptionSize is the largest description the 8-bit length
	// prefix can declare.
	MaxDescriptionSize = 255

	// MaxHashSize is the largest hash the 8-bit length prefix can
	// declare.
	MaxHashSize = 255

	// MaxExtensionSize is the largest extension payload the 16-bit
	// length prefix can declare.
	MaxExtensionSize = 65535

	// MaxExtensionCount is the largest number of entries the 16-bit
	// extension table count can declare.
	MaxExtensionCount = 65535
)

// minRecordSize is the encoded size of a record whose variable-length
// fields are all empty: version(1) + type(1) + desc_size(1) + hash_size(1) +
// expiry_ms(8) + extension_count(2).
const minRecordSize = 14

// extensionHeaderSize is the fixed prefix of one extension entry:
// type(1) + size(2).
const extensionHeaderSize = 3

// Record is one decoded transparency-log leaf.
//
// Description and Hash are opaque payloads whose interpretation belongs to
// the caller. ExpiryMS counts milliseconds since the Unix epoch. Extensions
// preserves the exact order of the encoded extension table, including
// duplicate type codes.
type Record struct {
	Version     uint8       // Format revision of the record
	Type        uint8       // Log data type tag
	Description []byte      // Human-readable label, may be empty
	Hash        []byte      // Content hash of the associated raw data
	ExpiryMS    uint64      // Expiry in milliseconds since the Unix epoch
	Extensions  []Extension // Ordered extension table
}

// Extension is one type-length-value entry from a record's extension
// table. Data is opaque to the codec.
type Extension struct {
	Type uint8
	Data []byte
}

// NewRecord creates a record with the current default version. Extensions
// are added with AddExtension.
func NewRecord(typ uint8, description, hash []byte, expiry time.Time) *Record {
	return &Record{
		Version:     DefaultVersion,
		Type:        typ,
		Description: description,
		Hash:        hash,
		ExpiryMS:    uint64(expiry.UnixMilli()),
	}
}

// AddExtension appends one extension entry, keeping insertion order.
func (r *Record) AddExtension(typ uint8, data []byte) {
	r.Extensions = append(r.Extensions, Extension{Type: typ, Data: data})
}

// Expiry returns ExpiryMS as a wall-clock time in UTC.
func (r *Record) Expiry() time.Time {
	return time.UnixMilli(int64(r.ExpiryMS)).UTC()
}

// Expired reports whether the record's expiry lies before now.
func (r *Record) Expired(now time.Time) bool {
	return r.Expiry().Before(now)
}

// Size returns the exact number of bytes Encode will produce for the
// record.
func (r *Record) Size() int {
	n := minRecordSize + len(r.Description) + len(r.Hash)
	for _, ext := range r.Extensions {
		n += extensionHeaderSize + len(ext.Data)
	}
	return n
}
