package vector

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// ErrCorrupt is returned when a vector file cannot be decoded.
var ErrCorrupt = errors.New("corrupt vector file")

// maxDimensions guards against allocating from a garbage header.
const maxDimensions = 1 << 16

// Vector file format, little-endian: dimensions (uint32), count (uint32), then count*dimensions
// float32 values in position order.

// WriteVectors encodes vectors of the given dimension to w.
func WriteVectors(w io.Writer, dimensions int, vectors [][]float32) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint32(dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	buf := make([]byte, dimensions*4)
	for i, v := range vectors {
		if len(v) != dimensions {
			return fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(v), dimensions)
		}
		for j, x := range v {
			binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(x))
		}
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("write vector %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// ReadVectors decodes a vector file from r.
func ReadVectors(r io.Reader) (dimensions int, vectors [][]float32, err error) {
	br := bufio.NewReader(r)
	var dim, n uint32
	if err := binary.Read(br, binary.LittleEndian, &dim); err != nil {
		return 0, nil, fmt.Errorf("read dimensions: %w: %v", ErrCorrupt, err)
	}
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return 0, nil, fmt.Errorf("read count: %w: %v", ErrCorrupt, err)
	}
	if dim == 0 || dim > maxDimensions {
		return 0, nil, fmt.Errorf("dimensions %d: %w", dim, ErrCorrupt)
	}
	buf := make([]byte, int(dim)*4)
	vectors = make([][]float32, 0, min(int(n), 1<<16))
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return 0, nil, fmt.Errorf("read vector %d: %w: %v", i, ErrCorrupt, err)
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		vectors = append(vectors, v)
	}
	if _, err := br.ReadByte(); err != io.EOF {
		return 0, nil, fmt.Errorf("trailing data: %w", ErrCorrupt)
	}
	return int(dim), vectors, nil
}

// WriteFile writes vectors to path, creating parent directories, and returns the hex SHA-256
// of the written bytes.
func WriteFile(path string, dimensions int, vectors [][]float32) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create vector file: %w", err)
	}
	h := sha256.New()
	if err := WriteVectors(io.MultiWriter(f, h), dimensions, vectors); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("sync vector file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close vector file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadFile reads the vector file at path and returns its dimension, vectors and the hex SHA-256
// of its bytes.
func ReadFile(path string) (dimensions int, vectors [][]float32, checksum string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, "", err
	}
	defer f.Close()
	h := sha256.New()
	dimensions, vectors, err = ReadVectors(io.TeeReader(f, h))
	if err != nil {
		return 0, nil, "", err
	}
	return dimensions, vectors, hex.EncodeToString(h.Sum(nil)), nil
}
