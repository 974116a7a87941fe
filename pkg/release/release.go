// Package release interprets decoded transparency-log records as signed
// release artifacts. The codec stays policy free; everything a research
// tool layers on top of a decoded record lives here: data-type
// discrimination, hash verification against the raw signed payload,
// DER ticket splitting, and on-disk dumps.
package release

import (
	"bytes"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/atleaf/atleaf/pkg/codec"
)

// Data-type discriminators carried in a record's type byte. The codec
// treats the byte as opaque; these values describe the logs this tool
// targets and are defaults, not wire constraints.
const (
	DataTypeUnknown uint8 = 0
	DataTypeRelease uint8 = 1
)

// ticketVersion is the only DER ticket sequence version this tool
// understands.
const ticketVersion = 1

// ErrHashMismatch is returned by VerifyHash when the SHA-256 of the raw
// payload does not match the hash embedded in the record.
var ErrHashMismatch = errors.New("release: raw payload does not match record hash")

// Release is the assembled view of one release-type log entry: the
// decoded record plus the raw signed payload and, when the payload
// parses, the split ticket set.
type Release struct {
	Index       uint64
	Description string
	Expiry      time.Time
	Hash        []byte
	Leaf        *codec.Record
	Raw         []byte
	Tickets     *TicketSet
}

// TicketSet holds the signing tickets split out of a release's raw
// payload.
type TicketSet struct {
	APTicket       []byte
	CryptexTickets [][]byte
}

// ticketSequence mirrors the DER layout of a release payload:
//
//	SEQUENCE {
//	    version         INTEGER,
//	    apTicket        OCTET STRING,
//	    cryptexTickets  SET OF OCTET STRING
//	}
type ticketSequence struct {
	Version        int
	APTicket       []byte
	CryptexTickets [][]byte `asn1:"set"`
}

// VerifyHash checks that the SHA-256 of raw matches the hash embedded
// in the record. It returns nil when there is nothing to verify: a nil
// record, an empty raw payload, or a record without a hash.
func VerifyHash(rec *codec.Record, raw []byte) error {
	if rec == nil || len(rec.Hash) == 0 || len(raw) == 0 {
		return nil
	}
	sum := sha256.Sum256(raw)
	if !bytes.Equal(sum[:], rec.Hash) {
		return errors.Wrapf(ErrHashMismatch, "got %x, want %x", sum, rec.Hash)
	}
	return nil
}

// SplitTickets parses a release's raw payload as a DER ticket sequence
// and splits it into the AP ticket and the cryptex tickets.
func SplitTickets(der []byte) (*TicketSet, error) {
	var seq ticketSequence
	rest, err := asn1.Unmarshal(der, &seq)
	if err != nil {
		return nil, errors.Wrap(err, "release: parsing ticket sequence")
	}
	if len(rest) != 0 {
		return nil, errors.Newf("release: %d trailing bytes after ticket sequence", len(rest))
	}
	if seq.Version != ticketVersion {
		return nil, errors.Newf("release: unsupported ticket sequence version %d", seq.Version)
	}
	return &TicketSet{
		APTicket:       seq.APTicket,
		CryptexTickets: seq.CryptexTickets,
	}, nil
}

// leafDocument is the JSON shape Dump writes for a decoded record.
// Byte fields serialize as base64.
type leafDocument struct {
	Index       uint64              `json:"index"`
	Version     uint8               `json:"version"`
	Type        uint8               `json:"type"`
	Description string              `json:"description"`
	Hash        []byte              `json:"hash"`
	Expiry      string              `json:"expiry"`
	Extensions  []extensionDocument `json:"extensions,omitempty"`
}

type extensionDocument struct {
	Type uint8  `json:"type"`
	Data []byte `json:"data"`
}

// Dump writes the release's artifacts under dir/<index>/:
//
//	leaf.json                decoded record (byte fields base64)
//	raw.der                  raw signed payload, when present
//	apticket.der             AP ticket, when the payload split
//	cryptex_tickets/<n>.der  one file per cryptex ticket
func (r *Release) Dump(dir string) error {
	if r.Leaf == nil {
		return errors.New("release: no decoded record to dump")
	}

	base := filepath.Join(dir, strconv.FormatUint(r.Index, 10))
	if err := os.MkdirAll(base, 0750); err != nil {
		return errors.Wrapf(err, "creating release directory %s", base)
	}

	doc := leafDocument{
		Index:       r.Index,
		Version:     r.Leaf.Version,
		Type:        r.Leaf.Type,
		Description: string(r.Leaf.Description),
		Hash:        r.Leaf.Hash,
		Expiry:      r.Expiry.UTC().Format(time.RFC3339),
	}
	for _, ext := range r.Leaf.Extensions {
		doc.Extensions = append(doc.Extensions, extensionDocument{Type: ext.Type, Data: ext.Data})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding leaf.json")
	}
	if err := os.WriteFile(filepath.Join(base, "leaf.json"), data, 0600); err != nil {
		return errors.Wrap(err, "writing leaf.json")
	}

	if len(r.Raw) > 0 {
		if err := os.WriteFile(filepath.Join(base, "raw.der"), r.Raw, 0600); err != nil {
			return errors.Wrap(err, "writing raw.der")
		}
	}

	if r.Tickets == nil {
		return nil
	}
	if len(r.Tickets.APTicket) > 0 {
		if err := os.WriteFile(filepath.Join(base, "apticket.der"), r.Tickets.APTicket, 0600); err != nil {
			return errors.Wrap(err, "writing apticket.der")
		}
	}
	if len(r.Tickets.CryptexTickets) > 0 {
		ticketDir := filepath.Join(base, "cryptex_tickets")
		if err := os.MkdirAll(ticketDir, 0750); err != nil {
			return errors.Wrap(err, "creating cryptex_tickets directory")
		}
		for i, ticket := range r.Tickets.CryptexTickets {
			name := filepath.Join(ticketDir, fmt.Sprintf("%d.der", i))
			if err := os.WriteFile(name, ticket, 0600); err != nil {
				return errors.Wrapf(err, "writing cryptex ticket %d", i)
			}
		}
	}
	return nil
}
