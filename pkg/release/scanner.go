package release

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/atleaf/atleaf/pkg/codec"
	"github.com/atleaf/atleaf/pkg/envelope"
	"github.com/atleaf/atleaf/pkg/source"
)

// ScanStats counts per-record outcomes accumulated across Scan calls.
type ScanStats struct {
	// Decoded counts records that made it into the output.
	Decoded int `json:"decoded"`
	// Skipped counts records dropped by the type filter.
	Skipped int `json:"skipped"`
	// Failed counts records that could not be unwrapped or decoded.
	Failed int `json:"failed"`
	// HashesVerified counts records whose raw payload matched the
	// embedded hash.
	HashesVerified int `json:"hashes_verified"`
	// HashMismatches counts records whose raw payload did not match
	// the embedded hash. Such records still count as Decoded unless
	// StrictHashes dropped them.
	HashMismatches int `json:"hash_mismatches"`
}

// ScannerConfig controls how a Scanner treats each leaf.
type ScannerConfig struct {
	// Codec decodes leaf payloads. Nil means codec.NewRecordCodec().
	Codec *codec.RecordCodec

	// UnwrapEnvelope strips the protobuf change-log envelope from each
	// leaf before decoding.
	UnwrapEnvelope bool

	// MutationField is the envelope field holding the record payload.
	// Zero means envelope.DefaultMutationField.
	MutationField protowire.Number

	// Types keeps only records whose type byte is listed. Empty keeps
	// every type.
	Types []uint8

	// VerifyHashes checks SHA-256 of each raw payload against the
	// record's embedded hash.
	VerifyHashes bool

	// StrictHashes drops records whose hash check fails instead of
	// keeping them alongside the mismatch counter.
	StrictHashes bool

	// Logger receives per-record warnings. Nil means the logrus
	// standard logger.
	Logger *logrus.Logger
}

// Scanner decodes batches of log leaves into releases. Failures are
// isolated per record: a leaf that cannot be unwrapped, decoded, or
// verified is counted and dropped without stopping the batch.
//
// A Scanner is not safe for concurrent use.
type Scanner struct {
	cfg   ScannerConfig
	codec *codec.RecordCodec
	field protowire.Number
	types map[uint8]struct{}
	log   *logrus.Logger
	stats ScanStats
}

// NewScanner builds a Scanner from cfg, filling in defaults for the
// codec, mutation field, and logger.
func NewScanner(cfg ScannerConfig) *Scanner {
	c := cfg.Codec
	if c == nil {
		c = codec.NewRecordCodec()
	}
	field := cfg.MutationField
	if field == 0 {
		field = envelope.DefaultMutationField
	}
	var types map[uint8]struct{}
	if len(cfg.Types) > 0 {
		types = make(map[uint8]struct{}, len(cfg.Types))
		for _, t := range cfg.Types {
			types[t] = struct{}{}
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scanner{cfg: cfg, codec: c, field: field, types: types, log: logger}
}

// Scan decodes leaves into releases. Stats accumulate across calls on
// the same Scanner.
func (s *Scanner) Scan(leaves []source.Leaf) []Release {
	releases := make([]Release, 0, len(leaves))
	for _, leaf := range leaves {
		if rel, ok := s.scanOne(leaf); ok {
			releases = append(releases, rel)
		}
	}
	return releases
}

// ScanSource pulls leaves [from, to] out of src and scans them.
func (s *Scanner) ScanSource(ctx context.Context, src source.Source, from, to uint64) ([]Release, error) {
	leaves, err := src.Leaves(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return s.Scan(leaves), nil
}

// Stats reports the outcome counters accumulated so far.
func (s *Scanner) Stats() ScanStats {
	return s.stats
}

func (s *Scanner) scanOne(leaf source.Leaf) (Release, bool) {
	payload := leaf.Leaf
	if s.cfg.UnwrapEnvelope {
		inner, err := envelope.Unwrap(payload, s.field)
		if err != nil {
			s.stats.Failed++
			s.log.WithError(err).WithField("index", leaf.Index).Warn("failed to unwrap leaf envelope")
			return Release{}, false
		}
		payload = inner
	}

	rec, err := s.codec.Decode(payload)
	if err != nil {
		s.stats.Failed++
		s.log.WithError(err).WithField("index", leaf.Index).Warn("failed to decode leaf")
		return Release{}, false
	}

	if s.types != nil {
		if _, ok := s.types[rec.Type]; !ok {
			s.stats.Skipped++
			return Release{}, false
		}
	}

	if s.cfg.VerifyHashes && len(rec.Hash) > 0 && len(leaf.Raw) > 0 {
		if err := VerifyHash(rec, leaf.Raw); err != nil {
			s.stats.HashMismatches++
			s.log.WithError(err).WithField("index", leaf.Index).Warn("leaf hash mismatch")
			if s.cfg.StrictHashes {
				return Release{}, false
			}
		} else {
			s.stats.HashesVerified++
		}
	}

	rel := Release{
		Index:       leaf.Index,
		Description: string(rec.Description),
		Expiry:      rec.Expiry(),
		Hash:        rec.Hash,
		Leaf:        rec,
		Raw:         leaf.Raw,
	}
	if rec.Type == DataTypeRelease && len(leaf.Raw) > 0 {
		tickets, err := SplitTickets(leaf.Raw)
		if err != nil {
			s.log.WithError(err).WithField("index", leaf.Index).Warn("failed to split release tickets")
		} else {
			rel.Tickets = tickets
		}
	}
	s.stats.Decoded++
	return rel, true
}
