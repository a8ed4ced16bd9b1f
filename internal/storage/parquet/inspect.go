package parquet

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/zeebo/xxh3"
)

// Info is what readers need to know about an artifact without scanning it.
type Info struct {
	Schema  *arrow.Schema
	Rows    int64
	RunID   string
	Created string
}

// Has reports whether the artifact carries column name.
func (i Info) Has(name string) bool {
	return i.Schema != nil && len(i.Schema.FieldIndices(name)) > 0
}

// ReadSchema opens the artifact footer and returns its Arrow schema, row count
// and run metadata. Row data is not read.
func ReadSchema(path string) (Info, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return Info{}, fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return Info{}, fmt.Errorf("artifact reader: %w", err)
	}
	sc, err := fr.Schema()
	if err != nil {
		return Info{}, fmt.Errorf("artifact schema: %w", err)
	}
	info := Info{Schema: sc, Rows: rdr.NumRows()}
	if kv := rdr.MetaData().KeyValueMetadata(); kv != nil {
		if v := kv.FindValue(MetaRunID); v != nil {
			info.RunID = *v
		}
		if v := kv.FindValue(MetaCreatedAt); v != nil {
			info.Created = *v
		}
	}
	// The stored Arrow schema carries the same keys.
	md := sc.Metadata()
	if i := md.FindKey(MetaRunID); i >= 0 && info.RunID == "" {
		info.RunID = md.Values()[i]
	}
	if i := md.FindKey(MetaCreatedAt); i >= 0 && info.Created == "" {
		info.Created = md.Values()[i]
	}
	return info, nil
}

// footerWindow is how many trailing bytes feed the fingerprint. The Parquet
// footer (schema, row groups, statistics) lives there.
const footerWindow = 64 << 10

// Fingerprint identifies an artifact version cheaply: xxh3 over its size,
// modification time and trailing footerWindow bytes. Any ETL run changes it.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	h := xxh3.New()
	var hdr [16]byte
	binary.LittleEndian.PutUint64(hdr[:8], uint64(fi.Size()))
	binary.LittleEndian.PutUint64(hdr[8:], uint64(fi.ModTime().UnixNano()))
	_, _ = h.Write(hdr[:])

	off := fi.Size() - footerWindow
	if off < 0 {
		off = 0
	}
	if _, err := io.Copy(h, io.NewSectionReader(f, off, fi.Size()-off)); err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
