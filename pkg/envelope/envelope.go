// Package envelope extracts leaf records from the protobuf envelopes
// transparency logs publish them in.
//
// Log nodes wrap each raw leaf in a small protobuf message; the record
// bytes sit in one length-delimited field of that message. The package
// walks the wire format directly with protowire, so no schema
// compilation or generated bindings are involved. Everything outside the
// requested field is skipped, not interpreted.
package envelope

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// DefaultMutationField is the envelope field that carries the leaf
// record in the log nodes observed so far. Logs that lay their envelope
// out differently can pass another field number.
const DefaultMutationField = protowire.Number(3)

var (
	// ErrFieldAbsent indicates the envelope parsed cleanly but does not
	// contain the requested field.
	ErrFieldAbsent = errors.New("envelope: field absent")

	// ErrMalformedEnvelope indicates the input is not a well-formed
	// protobuf message.
	ErrMalformedEnvelope = errors.New("envelope: malformed protobuf")
)

// Unwrap returns the payload of the first occurrence of the given
// length-delimited field. The returned slice is a copy and does not
// alias raw.
func Unwrap(raw []byte, field protowire.Number) ([]byte, error) {
	if !field.IsValid() {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "invalid field number %d", field)
	}

	rest := raw
	for len(rest) > 0 {
		num, typ, n := protowire.ConsumeTag(rest)
		if n < 0 {
			return nil, errors.Wrapf(ErrMalformedEnvelope, "reading tag at offset %d: %v", len(raw)-len(rest), protowire.ParseError(n))
		}
		rest = rest[n:]

		if num == field {
			if typ != protowire.BytesType {
				return nil, errors.Wrapf(ErrMalformedEnvelope, "field %d has wire type %d, want bytes", field, typ)
			}
			payload, n := protowire.ConsumeBytes(rest)
			if n < 0 {
				return nil, errors.Wrapf(ErrMalformedEnvelope, "reading field %d payload: %v", field, protowire.ParseError(n))
			}
			out := make([]byte, len(payload))
			copy(out, payload)
			return out, nil
		}

		n = protowire.ConsumeFieldValue(num, typ, rest)
		if n < 0 {
			return nil, errors.Wrapf(ErrMalformedEnvelope, "skipping field %d: %v", num, protowire.ParseError(n))
		}
		rest = rest[n:]
	}

	return nil, errors.Wrapf(ErrFieldAbsent, "field %d", field)
}

// Wrap builds a minimal envelope holding payload as a single
// length-delimited field. Unwrap(Wrap(p, f), f) returns p.
func Wrap(payload []byte, field protowire.Number) ([]byte, error) {
	if !field.IsValid() {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "invalid field number %d", field)
	}

	buf := protowire.AppendTag(nil, field, protowire.BytesType)
	buf = protowire.AppendBytes(buf, payload)
	return buf, nil
}
