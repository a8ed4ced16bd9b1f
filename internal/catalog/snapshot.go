package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"ouvidoria/internal/query"
	"ouvidoria/internal/storage/parquet"
)

// snapshotVersion changes whenever Options changes shape.
const snapshotVersion = 1

// ErrStale means the snapshot was built from another artifact version.
var ErrStale = errors.New("catalog: snapshot is stale")

type snapshot struct {
	Version     int      `msgpack:"v"`
	Fingerprint string   `msgpack:"fp"`
	Options     *Options `msgpack:"options"`
}

// SaveSnapshot writes o, tagged with the artifact fingerprint, as zstd
// compressed msgpack. The file is replaced atomically.
func SaveSnapshot(path, fingerprint string, o *Options) error {
	raw, err := msgpack.Marshal(snapshot{Version: snapshotVersion, Fingerprint: fingerprint, Options: o})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd encoder: %w", err)
	}
	defer enc.Close()
	data := enc.EncodeAll(raw, make([]byte, 0, len(raw)/2))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadSnapshot reads a snapshot and returns its options when it was built
// from the artifact with the given fingerprint; otherwise ErrStale.
func LoadSnapshot(path, fingerprint string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	var s snapshot
	if err := msgpack.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != snapshotVersion || s.Fingerprint != fingerprint || s.Options == nil {
		return nil, ErrStale
	}
	return s.Options, nil
}

// Cached returns the options for the artifact at path, reusing the snapshot at
// snapPath when it matches the artifact and rebuilding it otherwise. An empty
// snapPath disables caching. A fallback catalog is never persisted.
func Cached(ctx context.Context, eng *query.Engine, path, snapPath string) *Options {
	if snapPath == "" {
		return Build(ctx, eng, path)
	}
	fp, err := parquet.Fingerprint(path)
	if err != nil {
		log.Printf("catalog: %v; using fallback options", err)
		return Fallback()
	}
	o, err := LoadSnapshot(snapPath, fp)
	if err == nil {
		log.Printf("catalog: snapshot %s reused fingerprint=%s", snapPath, fp)
		return o
	}
	if !errors.Is(err, os.ErrNotExist) {
		log.Printf("catalog: snapshot %s: %v; rebuilding", snapPath, err)
	}

	o = Build(ctx, eng, path)
	if !o.Fallback {
		if err := SaveSnapshot(snapPath, fp, o); err != nil {
			log.Printf("catalog: save snapshot: %v", err)
		}
	}
	return o
}
