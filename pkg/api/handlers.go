package api

import (
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/atleaf/atleaf/pkg/cache"
	"github.com/atleaf/atleaf/pkg/codec"
	"github.com/atleaf/atleaf/pkg/release"
	"github.com/atleaf/atleaf/pkg/source"
)

// maxDecodeBodySize bounds the POST /decode request body.
const maxDecodeBodySize = 1 << 20

// Server holds the API server state
type Server struct {
	store   LeafStore
	codec   *codec.RecordCodec
	config  ServerConfig
	metrics *Metrics
	log     *logrus.Logger
}

// NewServer creates a new API server. The codec is built from the
// config's version and trailing policy. metrics may be nil.
func NewServer(store LeafStore, config ServerConfig, metrics *Metrics, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		store: store,
		codec: codec.NewRecordCodecWithConfig(codec.CodecConfig{
			SupportedVersions: config.SupportedVersions,
			StrictTrailing:    config.StrictTrailing,
		}),
		config:  config,
		metrics: metrics,
		log:     logger,
	}
}

// recordView is the JSON shape of a decoded record. Byte fields
// serialize as base64.
type recordView struct {
	Version     uint8           `json:"version"`
	Type        uint8           `json:"type"`
	Description string          `json:"description"`
	Hash        []byte          `json:"hash"`
	Expiry      time.Time       `json:"expiry"`
	Expired     bool            `json:"expired"`
	Extensions  []extensionView `json:"extensions,omitempty"`
}

type extensionView struct {
	Type uint8  `json:"type"`
	Data []byte `json:"data"`
}

func newRecordView(rec *codec.Record) *recordView {
	view := &recordView{
		Version:     rec.Version,
		Type:        rec.Type,
		Description: string(rec.Description),
		Hash:        rec.Hash,
		Expiry:      rec.Expiry(),
		Expired:     rec.Expired(time.Now()),
	}
	for _, ext := range rec.Extensions {
		view.Extensions = append(view.Extensions, extensionView{Type: ext.Type, Data: ext.Data})
	}
	return view
}

// leafDetail is the response for a single cached leaf.
type leafDetail struct {
	Index       uint64      `json:"index"`
	FetchedAt   time.Time   `json:"fetched_at"`
	Record      *recordView `json:"record,omitempty"`
	DecodeError string      `json:"decode_error,omitempty"`
	RawSize     int         `json:"raw_size"`
	RawHex      string      `json:"raw_hex,omitempty"`
}

// releaseView summarizes one decoded release.
type releaseView struct {
	Index        uint64    `json:"index"`
	Description  string    `json:"description"`
	Expiry       time.Time `json:"expiry"`
	Hash         []byte    `json:"hash"`
	HasTickets   bool      `json:"has_tickets"`
	CryptexCount int       `json:"cryptex_count"`
}

// parseRange reads the from/to query parameters. Absent parameters
// cover the whole index space.
func parseRange(r *http.Request) (uint64, uint64, error) {
	from := uint64(0)
	to := uint64(math.MaxUint64)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid from parameter %q", raw)
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid to parameter %q", raw)
		}
		to = parsed
	}
	if from > to {
		return 0, 0, fmt.Errorf("from %d is past to %d", from, to)
	}
	return from, to, nil
}

// handleHealth reports server liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleListLeaves serves cached leaves in an index range, in the
// shape source.HTTPSource consumes
func (s *Server) handleListLeaves(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := LeavesData{Leaves: []LeafPayload{}}
	err = s.store.Range(from, to, func(leaf *cache.CachedLeaf) error {
		data.Leaves = append(data.Leaves, LeafPayload{
			Index: leaf.Index,
			Leaf:  leaf.Leaf,
			Raw:   leaf.Raw,
		})
		return nil
	})
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to list leaves: %v", err), http.StatusInternalServerError)
		return
	}

	sendSuccess(w, data)
}

// handleGetLeaf serves one cached leaf, decoded. ?raw=hex includes the
// raw payload hex encoded.
func (s *Server) handleGetLeaf(w http.ResponseWriter, r *http.Request) {
	indexParam := chi.URLParam(r, "index")
	index, err := strconv.ParseUint(indexParam, 10, 64)
	if err != nil {
		sendError(w, fmt.Sprintf("Invalid leaf index %q", indexParam), http.StatusBadRequest)
		return
	}

	leaf, err := s.store.Get(index)
	if err != nil {
		if errors.Is(err, cache.ErrNotCached) {
			sendError(w, "Leaf not cached", http.StatusNotFound)
			return
		}
		sendError(w, fmt.Sprintf("Failed to read leaf: %v", err), http.StatusInternalServerError)
		return
	}

	detail := leafDetail{
		Index:     leaf.Index,
		FetchedAt: leaf.FetchedAt,
		RawSize:   len(leaf.Raw),
	}

	rec, err := s.codec.Decode(leaf.Leaf)
	if err != nil {
		s.metrics.RecordDecode(false)
		detail.DecodeError = err.Error()
	} else {
		s.metrics.RecordDecode(true)
		detail.Record = newRecordView(rec)
	}

	if r.URL.Query().Get("raw") == "hex" {
		detail.RawHex = hex.EncodeToString(leaf.Raw)
	}

	sendSuccess(w, detail)
}

// handleListReleases scans cached leaves in an index range and serves
// the ones carrying release data
func (s *Server) handleListReleases(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var leaves []source.Leaf
	err = s.store.Range(from, to, func(leaf *cache.CachedLeaf) error {
		leaves = append(leaves, source.Leaf{Index: leaf.Index, Leaf: leaf.Leaf, Raw: leaf.Raw})
		return nil
	})
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to read leaves: %v", err), http.StatusInternalServerError)
		return
	}

	scanner := release.NewScanner(release.ScannerConfig{
		Codec:        s.codec,
		Types:        []uint8{release.DataTypeRelease},
		VerifyHashes: s.config.VerifyHashes,
		Logger:       s.log,
	})
	releases := scanner.Scan(leaves)
	stats := scanner.Stats()
	s.metrics.RecordScan(stats)

	views := make([]releaseView, 0, len(releases))
	for _, rel := range releases {
		view := releaseView{
			Index:       rel.Index,
			Description: rel.Description,
			Expiry:      rel.Expiry,
			Hash:        rel.Hash,
		}
		if rel.Tickets != nil {
			view.HasTickets = true
			view.CryptexCount = len(rel.Tickets.CryptexTickets)
		}
		views = append(views, view)
	}

	sendSuccess(w, map[string]interface{}{
		"releases": views,
		"stats":    stats,
	})
}

// handleDecode decodes a posted record with the server's codec policy.
// A text/plain body is read as hex; anything else is raw binary.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDecodeBodySize))
	if err != nil {
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		sendError(w, "Request body is empty", http.StatusBadRequest)
		return
	}

	data := body
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/plain") {
		cleaned := strings.Map(func(c rune) rune {
			if c == ' ' || c == '\n' || c == '\r' || c == '\t' {
				return -1
			}
			return c
		}, string(body))
		data, err = hex.DecodeString(cleaned)
		if err != nil {
			sendError(w, fmt.Sprintf("Invalid hex body: %v", err), http.StatusBadRequest)
			return
		}
	}

	rec, err := s.codec.Decode(data)
	if err != nil {
		s.metrics.RecordDecode(false)
		sendError(w, fmt.Sprintf("Decode failed: %v", err), http.StatusBadRequest)
		return
	}

	s.metrics.RecordDecode(true)
	sendSuccess(w, newRecordView(rec))
}

// handleStats reports cache counts and the server's codec policy
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count()
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to count cached leaves: %v", err), http.StatusInternalServerError)
		return
	}
	s.metrics.UpdateCachedLeaves(count)

	sendSuccess(w, map[string]interface{}{
		"cached_leaves": count,
		"codec": map[string]interface{}{
			"supported_versions": s.config.SupportedVersions,
			"strict_trailing":    s.config.StrictTrailing,
		},
		"verify_hashes": s.config.VerifyHashes,
	})
}

// startMetricsUpdater refreshes gauge metrics in the background
func (s *Server) startMetricsUpdater() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		count, err := s.store.Count()
		if err != nil {
			s.log.WithError(err).Debug("failed to refresh cached leaves gauge")
			continue
		}
		s.metrics.UpdateCachedLeaves(count)
	}
}
