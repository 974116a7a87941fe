package codec

import "github.com/cockroachdb/errors"

// Decode and encode failures are reported through these sentinels so that
// callers can branch with errors.Is regardless of the positional context
// wrapped around them.
var (
	// ErrTruncated indicates the input ended before a fixed field or a
	// declared variable-length payload could be read in full.
	ErrTruncated = errors.New("codec: truncated record")

	// ErrUnsupportedVersion indicates the record's format revision is not
	// in the codec's supported set. No field past the version byte is
	// parsed when this is returned.
	ErrUnsupportedVersion = errors.New("codec: unsupported record version")

	// ErrTrailingData indicates bytes remain after the declared structure
	// and the codec was configured with StrictTrailing.
	ErrTrailingData = errors.New("codec: trailing data after record")

	// ErrFieldTooLarge indicates an encode-side field exceeds what its
	// wire length prefix can declare. Nothing is written when this is
	// returned.
	ErrFieldTooLarge = errors.New("codec: field exceeds wire limit")

	// ErrNoExtensionDecoder indicates no decoder is registered for an
	// extension's type code.
	ErrNoExtensionDecoder = errors.New("codec: no decoder registered for extension type")
)
