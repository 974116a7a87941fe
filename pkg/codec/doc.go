// Package codec implements the binary leaf record format used by
// attestation transparency logs.
//
// The codec package parses and serializes the signed, attested entries
// published at a log's leaves. It knows the byte layout and nothing else.
// Fetching raw bytes, verifying hashes, and interpreting payloads all
// belong to callers; this is the foundation the rest of atleaf builds on.
//
// # Record Format
//
// Records are serialized in a binary format with the following structure:
//
//	[Version(1)][Type(1)][DescSize(1)][Description][HashSize(1)][Hash][ExpiryMS(8)][ExtCount(2)][Extensions]
//
// Fields:
//   - Version: 8-bit format revision, checked before anything else is parsed
//   - Type: 8-bit log data type tag
//   - DescSize: 8-bit length of the description that follows
//   - Description: Variable-length human-readable label
//   - HashSize: 8-bit length of the hash that follows
//   - Hash: Variable-length content hash of the associated raw data
//   - ExpiryMS: 64-bit expiry in milliseconds since the Unix epoch (big-endian)
//   - ExtCount: 16-bit number of extension entries (big-endian)
//   - Extensions: ExtCount entries of [Type(1)][Size(2)][Data]
//
// All multi-byte integers are big-endian. The minimum record size is 14
// bytes, reached when every variable-length field is empty. An empty
// field is a valid value, not an absent one, and survives a round trip
// as empty.
//
// # Decode Policy
//
// Decoding is a single forward pass. Every length prefix is validated
// against the remaining input before its payload is read, so declared
// lengths can never cause reads past the end of the buffer. Failures are
// reported through the sentinel errors ErrTruncated,
// ErrUnsupportedVersion, ErrTrailingData and ErrFieldTooLarge; wrap
// context is positional, so match with errors.Is.
//
// By default the codec ignores bytes after the declared structure, which
// tolerates records embedded in larger buffers. CodecConfig.StrictTrailing
// turns leftovers into ErrTrailingData.
//
// # Usage
//
// Basic encoding and decoding:
//
//	codec := codec.NewRecordCodec()
//
//	// Decode a leaf fetched from a log
//	record, err := codec.Decode(leaf)
//	if err != nil {
//	    return err
//	}
//
//	// Encode a record
//	encoded, err := codec.Encode(record)
//	if err != nil {
//	    return err
//	}
//
// Encode is the exact inverse of Decode: for every record that encodes
// successfully, decoding the output yields an identical record.
//
// # Extensions
//
// Extension entries are opaque type-length-value pairs. The codec
// preserves their order and never interprets their payloads. Callers that
// understand specific type codes can register ExtensionDecoder functions
// on an ExtensionRegistry and resolve payloads to typed values after
// decoding.
//
// # Thread Safety
//
// RecordCodec and ExtensionRegistry instances are safe for concurrent
// use. Decoded records own copies of their variable-length fields and
// share no state with the input buffer or the codec.
package codec
