package indexer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/mosif16/index-mcp/internal/security"
)

// sniffWindow is how much of a file's head is inspected for a null byte
// when deciding whether the file is binary.
const sniffWindow = 1024

// ReadResult is the outcome of reading and hashing one candidate file.
type ReadResult struct {
	Content  string // empty when Binary is true or StoreContent was false
	SHA256   string // hex-encoded
	Size     int64
	Binary   bool
	ValidUTF8 bool
}

// FileReader streams a candidate file's bytes through a hash, classifies
// it as binary/text, and optionally retains its decoded content.
type FileReader struct {
	storeContent bool
}

// NewFileReader constructs a FileReader. When storeContent is false,
// Read still hashes and classifies the file but discards its bytes.
func NewFileReader(storeContent bool) *FileReader {
	return &FileReader{storeContent: storeContent}
}

// Read hashes absPath's contents and sniffs for binary data. When content
// is stored and the file looks like text, it also validates UTF-8; when
// content is not stored, ValidUTF8 is reported true for text files without
// inspecting their bytes. absPath must be within root.
func (r *FileReader) Read(ctx context.Context, root, absPath string) (ReadResult, error) {
	if _, err := security.ValidatePathWithinBase(absPath, root); err != nil {
		return ReadResult{}, fmt.Errorf("invalid file path: %w", err)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return ReadResult{}, fmt.Errorf("open %s: %w", absPath, err)
	}
	defer f.Close()

	head := make([]byte, sniffWindow)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ReadResult{}, fmt.Errorf("sniff %s: %w", absPath, err)
	}
	head = head[:n]
	binary := bytes.IndexByte(head, 0) >= 0

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return ReadResult{}, fmt.Errorf("seek %s: %w", absPath, err)
	}

	hasher := sha256.New()
	var buf bytes.Buffer
	var dst io.Writer = hasher
	if r.storeContent && !binary {
		dst = io.MultiWriter(hasher, &buf)
	}

	size, err := io.Copy(dst, &contextReader{ctx: ctx, r: f})
	if err != nil {
		return ReadResult{}, fmt.Errorf("read %s: %w", absPath, err)
	}

	result := ReadResult{
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
		Size:   size,
		Binary: binary,
	}

	if !binary {
		result.ValidUTF8 = utf8.Valid(buf.Bytes())
		if r.storeContent && result.ValidUTF8 {
			result.Content = buf.String()
		}
	}

	return result, nil
}

// contextReader aborts a Read once ctx is done, so a large file copy
// can be cancelled between chunks.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	select {
	case <-c.ctx.Done():
		return 0, c.ctx.Err()
	default:
	}
	return c.r.Read(p)
}
