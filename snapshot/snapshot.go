// Package snapshot compresses and stores the serialized working set of
// deactivated tabs. Blobs record original and compressed sizes, the
// compression ratio, and a BLAKE3 digest of the uncompressed payload that
// is verified on every decompression. With a database path configured,
// blobs are persisted to bbolt so deactivated tabs survive a restart.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	instantnav "github.com/wolfeidau/instant-nav"
	"github.com/wolfeidau/instant-nav/telemetry"
	"go.etcd.io/bbolt"
)

const (
	// DefaultLevel is the default compression level (zstd scale 1-9).
	DefaultLevel = 3

	// MinLevel and MaxLevel bound the configurable compression level.
	MinLevel = 1
	MaxLevel = 9
)

var (
	// ErrCorrupted is returned when a decompressed payload fails digest
	// verification.
	ErrCorrupted = errors.New("payload digest mismatch")

	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// Error is a typed compression failure. Prior stored state for the id is
// left untouched, so callers can retry with fresh input or treat the tab
// as non-recoverable.
type Error struct {
	Op  string // "serialize", "compress" or "decompress"
	ID  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("snapshot: %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config holds snapshot store configuration.
type Config struct {
	// Level is the compression level on the zstd 1-9 scale. Default: 3.
	Level int

	// Path is an optional bbolt database file. When set, blobs are
	// persisted and reloaded on open. Empty means memory only.
	Path string

	// Logger for store events.
	Logger *slog.Logger
}

// Blob is a compressed snapshot. OriginalSize and CompressedSize are
// computed together at compression time and never mutated independently.
type Blob struct {
	ID             string          `json:"id"`
	Data           []byte          `json:"data"`
	OriginalSize   int64           `json:"original_size"`
	CompressedSize int64           `json:"compressed_size"`
	Ratio          float64         `json:"ratio"`
	Digest         instantnav.Hash `json:"digest"`
	CreatedAt      time.Time       `json:"created_at"`
	Elapsed        time.Duration   `json:"elapsed"`
}

// Stats is an aggregate view of the store.
type Stats struct {
	Blobs           int           `json:"blobs"`
	OriginalBytes   int64         `json:"original_bytes"`
	CompressedBytes int64         `json:"compressed_bytes"`
	Ratio           float64       `json:"ratio"`
	Compressions    uint64        `json:"compressions"`
	Decompressions  uint64        `json:"decompressions"`
	Failures        uint64        `json:"failures"`
	CompressTime    time.Duration `json:"compress_time"`
}

// Store holds compressed tab snapshots keyed by id.
type Store struct {
	mu      sync.Mutex
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	blobs   map[string]*Blob
	db      *bbolt.DB
	logger  *slog.Logger
	now     func() time.Time

	compressions   uint64
	decompressions uint64
	failures       uint64
	compressTime   time.Duration
}

// NewStore creates a snapshot store. When cfg.Path is set, existing blobs
// are loaded so previously deactivated tabs remain reactivatable.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Level == 0 {
		cfg.Level = DefaultLevel
	}
	if cfg.Level < MinLevel || cfg.Level > MaxLevel {
		return nil, fmt.Errorf("snapshot: compression level %d out of range [%d, %d]", cfg.Level, MinLevel, MaxLevel)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(cfg.Level)))
	if err != nil {
		return nil, fmt.Errorf("snapshot: creating zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("snapshot: creating zstd decoder: %w", err)
	}

	s := &Store{
		encoder: enc,
		decoder: dec,
		blobs:   make(map[string]*Blob),
		logger:  cfg.Logger,
		now:     time.Now,
	}

	if cfg.Path != "" {
		if err := s.openDB(cfg.Path); err != nil {
			enc.Close()
			dec.Close()
			return nil, err
		}
	}

	return s, nil
}

// Close releases codec resources and the database handle, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encoder != nil {
		s.encoder.Close()
		s.encoder = nil
	}
	if s.decoder != nil {
		s.decoder.Close()
		s.decoder = nil
	}
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Compress compresses payload and stores it under id, overwriting any prior
// blob for the same id. On failure the prior blob is left untouched.
func (s *Store) Compress(ctx context.Context, id string, payload []byte) (*Blob, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encoder == nil {
		return nil, &Error{Op: "compress", ID: id, Err: ErrClosed}
	}

	compressed := s.encoder.EncodeAll(payload, nil)

	ratio := 0.0
	if len(payload) > 0 {
		ratio = float64(len(compressed)) / float64(len(payload))
	}

	blob := &Blob{
		ID:             id,
		Data:           compressed,
		OriginalSize:   int64(len(payload)),
		CompressedSize: int64(len(compressed)),
		Ratio:          ratio,
		Digest:         instantnav.HashBytes(payload),
		CreatedAt:      s.now(),
		Elapsed:        time.Since(start),
	}

	if s.db != nil {
		if err := s.persistLocked(blob); err != nil {
			s.failures++
			telemetry.RecordSnapshotCompress(blob.OriginalSize, 0, time.Since(start), "error")
			return nil, &Error{Op: "compress", ID: id, Err: err}
		}
	}

	s.blobs[id] = blob
	s.compressions++
	s.compressTime += blob.Elapsed
	telemetry.RecordSnapshotCompress(blob.OriginalSize, blob.CompressedSize, blob.Elapsed, "success")

	s.logger.Debug("compressed snapshot",
		"id", id,
		"original_size", blob.OriginalSize,
		"compressed_size", blob.CompressedSize,
		"ratio", blob.Ratio,
	)

	out := *blob
	return &out, nil
}

// Decompress returns the original payload for id. It is read-only: the
// stored blob is not removed or mutated, so repeated calls are idempotent.
// An absent id returns (nil, false, nil).
func (s *Store) Decompress(ctx context.Context, id string) ([]byte, bool, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.decoder == nil {
		return nil, false, &Error{Op: "decompress", ID: id, Err: ErrClosed}
	}

	blob, ok := s.blobs[id]
	if !ok {
		return nil, false, nil
	}

	payload, err := s.decoder.DecodeAll(blob.Data, nil)
	if err != nil {
		s.failures++
		telemetry.RecordSnapshotDecompress(time.Since(start), "error")
		return nil, false, &Error{Op: "decompress", ID: id, Err: err}
	}

	if instantnav.HashBytes(payload) != blob.Digest {
		s.failures++
		telemetry.RecordSnapshotDecompress(time.Since(start), "error")
		return nil, false, &Error{Op: "decompress", ID: id, Err: ErrCorrupted}
	}

	s.decompressions++
	telemetry.RecordSnapshotDecompress(time.Since(start), "success")
	return payload, true, nil
}

// Remove deletes the blob for id, returning whether it existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[id]; !ok {
		return false, nil
	}

	if s.db != nil {
		if err := s.deletePersistedLocked(id); err != nil {
			return false, &Error{Op: "remove", ID: id, Err: err}
		}
	}

	delete(s.blobs, id)
	return true, nil
}

// Contains reports whether a blob exists for id.
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[id]
	return ok
}

// Len returns the number of stored blobs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// Stats returns aggregate statistics. The resident totals are recomputed
// from the live blob set; op counters are cumulative since open.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Blobs:          len(s.blobs),
		Compressions:   s.compressions,
		Decompressions: s.decompressions,
		Failures:       s.failures,
		CompressTime:   s.compressTime,
	}
	for _, blob := range s.blobs {
		st.OriginalBytes += blob.OriginalSize
		st.CompressedBytes += blob.CompressedSize
	}
	if st.OriginalBytes > 0 {
		st.Ratio = float64(st.CompressedBytes) / float64(st.OriginalBytes)
	}
	return st
}
