package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/ozlaw/internal/embedding"
	"github.com/hyperjump/ozlaw/internal/errs"
	"github.com/hyperjump/ozlaw/internal/models"
	"github.com/hyperjump/ozlaw/pkg/utils"
	"go.uber.org/zap"
)

// memoryIndexFile is the file the memory store keeps inside its directory.
const memoryIndexFile = "index.bin"

var memoryMagic = [4]byte{'O', 'Z', 'V', 'S'}

const memoryFormatVersion uint32 = 1

type memoryEntry struct {
	id       string
	content  string
	metadata map[string]string
	vector   []float32 // unit length
}

// MemoryStore is a brute-force store held in memory and rewritten to a single binary
// file in its directory after every ingest. Suitable for tests and small corpora.
type MemoryStore struct {
	path       string
	embedder   embedding.Embedder
	logger     *zap.Logger
	dimensions int
	entries    []memoryEntry
	mu         sync.RWMutex
}

// NewMemoryStore opens the memory store in dir, loading any entries saved there.
// dir is created if it does not exist.
func NewMemoryStore(dir string, embedder embedding.Embedder, logger *zap.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	m := &MemoryStore{
		path:     filepath.Join(dir, memoryIndexFile),
		embedder: embedder,
		logger:   logger,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Ingest embeds the chunks, appends them, and rewrites the index file.
func (m *MemoryStore) Ingest(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vecs, err := embedChunks(ctx, m.embedder, chunks)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	added := make([]memoryEntry, 0, len(chunks))
	for i, ch := range chunks {
		dims := m.dimensions
		if dims == 0 {
			dims = len(vecs[i])
		}
		if len(vecs[i]) != dims || dims == 0 {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vecs[i]), dims)
		}
		m.dimensions = dims
		added = append(added, memoryEntry{
			id:       ch.ID,
			content:  ch.Content,
			metadata: chunkMetadata(ch),
			vector:   utils.Normalized(vecs[i]),
		})
	}
	m.entries = append(m.entries, added...)
	if err := m.save(); err != nil {
		m.entries = m.entries[:len(m.entries)-len(added)]
		return err
	}
	m.logger.Debug("memory store ingested chunks", zap.Int("count", len(added)), zap.Int("total", len(m.entries)))
	return nil
}

// Query returns the top-k entries by cosine similarity.
func (m *MemoryStore) Query(ctx context.Context, query []float32, k int) ([]*models.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k = effectiveK(k, len(m.entries))
	if k == 0 {
		return []*models.ScoredChunk{}, nil
	}
	if len(query) != m.dimensions {
		return nil, errs.Errorf(errs.KindProvider, "query vector store", "query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	q := utils.Normalized(query)
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(m.entries))
	for i, e := range m.entries {
		scores[i] = scored{idx: i, score: InnerProduct(q, e.vector)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	result := make([]*models.ScoredChunk, k)
	for i := 0; i < k; i++ {
		e := m.entries[scores[i].idx]
		result[i] = &models.ScoredChunk{
			Chunk: chunkFromEntry(e.id, e.content, copyMetadata(e.metadata)),
			Score: scores[i].score,
		}
	}
	return result, nil
}

// Count returns the number of entries.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op; every ingest is already on disk.
func (m *MemoryStore) Close() error {
	return nil
}

// save writes the index to a temp file and renames it over the old one. Format:
// magic (4), version (4), dimensions (4), n (4), then per entry: id, content,
// metadata count (4) and key/value pairs, vector (dimensions*4 bytes).
// Strings are a 4-byte length followed by the bytes. All integers are little endian.
func (m *MemoryStore) save() error {
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	w := bufio.NewWriter(f)
	werr := m.writeTo(w)
	if werr == nil {
		werr = w.Flush()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write index file: %w", werr)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

func (m *MemoryStore) writeTo(w io.Writer) error {
	if _, err := w.Write(memoryMagic[:]); err != nil {
		return err
	}
	for _, v := range []uint32{memoryFormatVersion, uint32(m.dimensions), uint32(len(m.entries))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, e := range m.entries {
		if err := writeString(w, e.id); err != nil {
			return err
		}
		if err := writeString(w, e.content); err != nil {
			return err
		}
		keys := make([]string, 0, len(e.metadata))
		for k := range e.metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(keys))); err != nil {
			return err
		}
		for _, k := range keys {
			if err := writeString(w, k); err != nil {
				return err
			}
			if err := writeString(w, e.metadata[k]); err != nil {
				return err
			}
		}
		if _, err := w.Write(float32SliceToBytes(e.vector)); err != nil {
			return err
		}
	}
	return nil
}

// load reads the index file if present. A missing file leaves the store empty.
func (m *MemoryStore) load() error {
	f, err := os.Open(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if magic != memoryMagic {
		return fmt.Errorf("not a vector index file: %s", m.path)
	}
	var version, dim, n uint32
	for _, p := range []*uint32{&version, &dim, &n} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return fmt.Errorf("read header: %w", err)
		}
	}
	if version != memoryFormatVersion {
		return fmt.Errorf("unsupported index version %d", version)
	}
	entries := make([]memoryEntry, 0, n)
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		var e memoryEntry
		if e.id, err = readString(r); err != nil {
			return fmt.Errorf("read entry %d: %w", i, err)
		}
		if e.content, err = readString(r); err != nil {
			return fmt.Errorf("read entry %d: %w", i, err)
		}
		var nmeta uint32
		if err := binary.Read(r, binary.LittleEndian, &nmeta); err != nil {
			return fmt.Errorf("read entry %d: %w", i, err)
		}
		e.metadata = make(map[string]string, nmeta)
		for j := uint32(0); j < nmeta; j++ {
			k, err := readString(r)
			if err != nil {
				return fmt.Errorf("read entry %d: %w", i, err)
			}
			v, err := readString(r)
			if err != nil {
				return fmt.Errorf("read entry %d: %w", i, err)
			}
			e.metadata[k] = v
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector %d: %w", i, err)
		}
		e.vector = bytesToFloat32Slice(buf)
		entries = append(entries, e)
	}
	m.dimensions = int(dim)
	m.entries = entries
	m.logger.Debug("memory store loaded", zap.String("path", m.path), zap.Int("entries", len(entries)))
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func copyMetadata(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
