package vectorstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/oriondocs/orion/internal/paths"
)

// Columnar container format. Each dataset is an independently compressed
// block with a CRC-32 of the uncompressed payload. Vectors are stored as a
// flat float32 little-endian array, byte-shuffled before compression so the
// exponent bytes group together and deflate better.
//
// Layout:
//
//	magic "OR1C" | version uint16 | block count uint16
//	per block: name (uint16 len + bytes) | flags uint8 |
//	           uncompressed size uint64 | crc32 uint32 |
//	           compressed size uint64 | gzip payload
const (
	columnarMagic   = "OR1C"
	columnarVersion = 1

	flagShuffled = 1 << 0
)

// Dataset names within the container.
const (
	dsEmbeddings = "embeddings"
	dsTexts      = "texts"
	dsFilenames  = "filenames"
	dsTokens     = "token_counts"
	dsModels     = "embedding_models"
	dsAttributes = "attributes"
)

// columnarAttrs is the JSON attribute block stored alongside the datasets.
type columnarAttrs struct {
	FileID             string   `json:"file_id"`
	EmbeddingCount     int      `json:"embedding_count"`
	EmbeddingDimension int      `json:"embedding_dimension"`
	StorageFormat      string   `json:"storage_format"`
	Metadata           Metadata `json:"metadata"`
}

// ColumnarStore persists one compressed binary file per document under the
// traditional .h5 extension.
type ColumnarStore struct {
	resolver *paths.Resolver
}

// NewColumnarStore creates a columnar-format store rooted at the resolver's
// base.
func NewColumnarStore(resolver *paths.Resolver) *ColumnarStore {
	return &ColumnarStore{resolver: resolver}
}

var _ Store = (*ColumnarStore)(nil)

func (s *ColumnarStore) path(userID, docID string) string {
	return filepath.Join(s.resolver.ProcessedVectors(userID), docID+"_embeddings.h5")
}

// Save encodes and writes the set via temp-file rename.
func (s *ColumnarStore) Save(userID string, set *EmbeddingSet) error {
	data, err := encodeColumnar(set)
	if err != nil {
		return err
	}
	return writeAtomic(s.path(userID, set.FileID), data)
}

// Load reads and decodes the set for one document.
func (s *ColumnarStore) Load(userID, docID string) (*EmbeddingSet, error) {
	data, err := os.ReadFile(s.path(userID, docID))
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding set; %w", err)
	}
	return decodeColumnar(data)
}

// Exists reports whether the document's file is present.
func (s *ColumnarStore) Exists(userID, docID string) bool {
	_, err := os.Stat(s.path(userID, docID))
	return err == nil
}

// Delete removes the document's file if present.
func (s *ColumnarStore) Delete(userID, docID string) error {
	err := os.Remove(s.path(userID, docID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete embedding set; %w", err)
	}
	return nil
}

// List returns the persisted document ids, sorted ascending.
func (s *ColumnarStore) List(userID string) ([]string, error) {
	return listByExt(s.resolver.ProcessedVectors(userID), ".h5")
}

func encodeColumnar(set *EmbeddingSet) ([]byte, error) {
	n := len(set.Embeddings)
	dim := set.Dimension()

	vecs := make([]byte, 0, n*dim*4)
	texts := make([]string, n)
	filenames := make([]string, n)
	tokens := make([]int32, n)
	models := make([]string, n)

	var buf [4]byte
	for i, e := range set.Embeddings {
		if len(e.Embedding) != dim {
			return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(e.Embedding), dim)
		}
		for _, v := range e.Embedding {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
			vecs = append(vecs, buf[:]...)
		}
		texts[i] = e.Text
		filenames[i] = e.Filename
		tokens[i] = int32(e.TokenCount)
		models[i] = e.EmbeddingModel
	}

	attrs, err := json.Marshal(columnarAttrs{
		FileID:             set.FileID,
		EmbeddingCount:     n,
		EmbeddingDimension: dim,
		StorageFormat:      "hdf5",
		Metadata:           set.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attributes; %w", err)
	}

	var out bytes.Buffer
	out.WriteString(columnarMagic)
	writeUint16(&out, columnarVersion)
	writeUint16(&out, 6)

	if err := writeBlock(&out, dsEmbeddings, shuffleBytes(vecs, 4), flagShuffled); err != nil {
		return nil, err
	}
	for _, b := range []struct {
		name string
		data []byte
	}{
		{dsTexts, encodeStrings(texts)},
		{dsFilenames, encodeStrings(filenames)},
		{dsTokens, encodeInt32s(tokens)},
		{dsModels, encodeStrings(models)},
		{dsAttributes, attrs},
	} {
		if err := writeBlock(&out, b.name, b.data, 0); err != nil {
			return nil, err
		}
	}

	return out.Bytes(), nil
}

func decodeColumnar(data []byte) (*EmbeddingSet, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != columnarMagic {
		return nil, fmt.Errorf("not a columnar embedding file")
	}
	version, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	if version != columnarVersion {
		return nil, fmt.Errorf("unsupported columnar version %d", version)
	}
	count, err := readUint16(r)
	if err != nil {
		return nil, err
	}

	blocks := make(map[string][]byte, count)
	for i := 0; i < int(count); i++ {
		name, payload, err := readBlock(r)
		if err != nil {
			return nil, err
		}
		blocks[name] = payload
	}

	var attrs columnarAttrs
	if err := json.Unmarshal(blocks[dsAttributes], &attrs); err != nil {
		return nil, fmt.Errorf("failed to parse attributes; %w", err)
	}

	texts, err := decodeStrings(blocks[dsTexts])
	if err != nil {
		return nil, err
	}
	filenames, err := decodeStrings(blocks[dsFilenames])
	if err != nil {
		return nil, err
	}
	models, err := decodeStrings(blocks[dsModels])
	if err != nil {
		return nil, err
	}
	tokens, err := decodeInt32s(blocks[dsTokens])
	if err != nil {
		return nil, err
	}

	n, dim := attrs.EmbeddingCount, attrs.EmbeddingDimension
	vecs := blocks[dsEmbeddings]
	if len(vecs) != n*dim*4 {
		return nil, fmt.Errorf("embeddings dataset is %d bytes, expected %d", len(vecs), n*dim*4)
	}
	if len(texts) != n || len(filenames) != n || len(models) != n || len(tokens) != n {
		return nil, fmt.Errorf("dataset lengths disagree with embedding_count %d", n)
	}

	embeddings := make([]ChunkEmbedding, n)
	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			off := (i*dim + j) * 4
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(vecs[off : off+4]))
		}
		embeddings[i] = ChunkEmbedding{
			ChunkIndex:     i,
			Filename:       filenames[i],
			Text:           texts[i],
			Embedding:      vec,
			TokenCount:     int(tokens[i]),
			EmbeddingModel: models[i],
		}
	}

	return &EmbeddingSet{
		FileID:     attrs.FileID,
		Embeddings: embeddings,
		Metadata:   attrs.Metadata,
	}, nil
}

// writeBlock compresses payload at the maximum gzip level and frames it with
// its name, sizes, and a CRC-32 of the uncompressed bytes.
func writeBlock(out *bytes.Buffer, name string, payload []byte, flags byte) error {
	writeUint16(out, uint16(len(name)))
	out.WriteString(name)
	out.WriteByte(flags)
	writeUint64(out, uint64(len(payload)))
	writeUint32(out, crc32.ChecksumIEEE(payload))

	var comp bytes.Buffer
	gz, err := gzip.NewWriterLevel(&comp, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer; %w", err)
	}
	if _, err := gz.Write(payload); err != nil {
		return fmt.Errorf("failed to compress %s; %w", name, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to flush %s; %w", name, err)
	}

	writeUint64(out, uint64(comp.Len()))
	out.Write(comp.Bytes())
	return nil
}

func readBlock(r *bytes.Reader) (string, []byte, error) {
	nameLen, err := readUint16(r)
	if err != nil {
		return "", nil, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return "", nil, fmt.Errorf("failed to read block name; %w", err)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read block flags; %w", err)
	}
	rawSize, err := readUint64(r)
	if err != nil {
		return "", nil, err
	}
	sum, err := readUint32(r)
	if err != nil {
		return "", nil, err
	}
	compSize, err := readUint64(r)
	if err != nil {
		return "", nil, err
	}

	comp := make([]byte, compSize)
	if _, err := io.ReadFull(r, comp); err != nil {
		return "", nil, fmt.Errorf("failed to read block %s; %w", name, err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(comp))
	if err != nil {
		return "", nil, fmt.Errorf("failed to open gzip block %s; %w", name, err)
	}
	payload := make([]byte, rawSize)
	if _, err := io.ReadFull(gz, payload); err != nil {
		return "", nil, fmt.Errorf("failed to decompress block %s; %w", name, err)
	}
	gz.Close()

	if crc32.ChecksumIEEE(payload) != sum {
		return "", nil, fmt.Errorf("checksum mismatch in block %s", name)
	}
	if flags&flagShuffled != 0 {
		payload = unshuffleBytes(payload, 4)
	}
	return string(name), payload, nil
}

// shuffleBytes regroups an array of width-byte elements so that all first
// bytes come before all second bytes, and so on.
func shuffleBytes(data []byte, width int) []byte {
	n := len(data) / width
	if n == 0 || len(data)%width != 0 {
		return data
	}
	out := make([]byte, len(data))
	for i := 0; i < n; i++ {
		for j := 0; j < width; j++ {
			out[j*n+i] = data[i*width+j]
		}
	}
	return out
}

func unshuffleBytes(data []byte, width int) []byte {
	n := len(data) / width
	if n == 0 || len(data)%width != 0 {
		return data
	}
	out := make([]byte, len(data))
	for i := 0; i < n; i++ {
		for j := 0; j < width; j++ {
			out[i*width+j] = data[j*n+i]
		}
	}
	return out
}

func encodeStrings(items []string) []byte {
	var out bytes.Buffer
	writeUint32(&out, uint32(len(items)))
	for _, s := range items {
		writeUint32(&out, uint32(len(s)))
		out.WriteString(s)
	}
	return out.Bytes()
}

func decodeStrings(data []byte) ([]string, error) {
	r := bytes.NewReader(data)
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read string count; %w", err)
	}
	out := make([]string, count)
	for i := range out {
		size, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read string length; %w", err)
		}
		b := make([]byte, size)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, fmt.Errorf("failed to read string payload; %w", err)
		}
		out[i] = string(b)
	}
	return out, nil
}

func encodeInt32s(items []int32) []byte {
	out := make([]byte, 4+4*len(items))
	binary.LittleEndian.PutUint32(out, uint32(len(items)))
	for i, v := range items {
		binary.LittleEndian.PutUint32(out[4+4*i:], uint32(v))
	}
	return out
}

func decodeInt32s(data []byte) ([]int32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("int32 dataset too short")
	}
	count := binary.LittleEndian.Uint32(data)
	if len(data) != int(4+4*count) {
		return nil, fmt.Errorf("int32 dataset is %d bytes, expected %d", len(data), 4+4*count)
	}
	out := make([]int32, count)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(data[4+4*i:]))
	}
	return out, nil
}

func writeUint16(out *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	out.Write(b[:])
}

func writeUint32(out *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	out.Write(b[:])
}

func writeUint64(out *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	out.Write(b[:])
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("failed to read uint16; %w", err)
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("failed to read uint32; %w", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("failed to read uint64; %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
