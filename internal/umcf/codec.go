package umcf

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Format is the on-disk encoding of a curriculum file.
type Format string

const (
	// FormatPlain is indented JSON with a .umcf extension.
	FormatPlain Format = "umcf"
	// FormatCompressed is gzip-compressed JSON with a .umcfz extension.
	FormatCompressed Format = "umcfz"
)

// Extension returns the file extension for the format, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".umcf", ".umlcf", ".json":
		return FormatPlain, nil
	case ".umcfz", ".umlcfz":
		return FormatCompressed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Default size ceilings.
const (
	DefaultMaxFileBytes         int64 = 100 * 1024 * 1024
	DefaultMaxDecompressedBytes int64 = 500 * 1024 * 1024
)

// Package is the result of reading a curriculum file.
type Package struct {
	Document *Document
	Assets   map[string][]byte
	Format   Format
	// Metadata is set only when the file used the archive layout.
	Metadata *Metadata
}

// Codec reads and writes UMCF files under fixed size ceilings.
type Codec struct {
	maxFileBytes         int64
	maxDecompressedBytes int64
	createdBy            string
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxFileBytes sets the on-disk size ceiling.
func WithMaxFileBytes(n int64) Option {
	return func(c *Codec) { c.maxFileBytes = n }
}

// WithMaxDecompressedBytes sets the decompressed size ceiling.
func WithMaxDecompressedBytes(n int64) Option {
	return func(c *Codec) { c.maxDecompressedBytes = n }
}

// WithCreatedBy sets the createdBy field written into archive metadata.
func WithCreatedBy(name string) Option {
	return func(c *Codec) { c.createdBy = name }
}

// NewCodec creates a codec with the default ceilings unless overridden.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		maxFileBytes:         DefaultMaxFileBytes,
		maxDecompressedBytes: DefaultMaxDecompressedBytes,
		createdBy:            "umcf",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read loads a curriculum file, choosing the decoder from its extension.
func (c *Codec) Read(path string) (*Package, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileRead, err)
	}
	if info.Size() > c.maxFileBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, info.Size(), c.maxFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileRead, err)
	}

	pkg, err := c.Decode(data, format)
	if err != nil {
		return nil, err
	}
	slog.Debug("curriculum file read",
		"path", path,
		"format", format,
		"assets", len(pkg.Assets),
	)
	return pkg, nil
}

// Decode parses file bytes in the given format.
func (c *Codec) Decode(data []byte, format Format) (*Package, error) {
	if int64(len(data)) > c.maxFileBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, len(data), c.maxFileBytes)
	}

	switch format {
	case FormatPlain:
		doc, err := decodeDocument(data)
		if err != nil {
			return nil, err
		}
		return &Package{Document: doc, Assets: map[string][]byte{}, Format: FormatPlain}, nil

	case FormatCompressed:
		raw, err := c.decompress(data)
		if err != nil {
			return nil, err
		}

		// A bare document is tried first; only then the archive envelope.
		if doc, err := decodeDocument(raw); err == nil {
			return &Package{Document: doc, Assets: map[string][]byte{}, Format: FormatCompressed}, nil
		}

		archive, err := decodeArchive(raw)
		if err != nil {
			return nil, err
		}
		return &Package{
			Document: archive.Manifest,
			Assets:   archive.Assets,
			Format:   FormatCompressed,
			Metadata: &archive.Metadata,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func (c *Codec) decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, c.maxDecompressedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	if int64(len(raw)) > c.maxDecompressedBytes {
		return nil, fmt.Errorf("%w: limit %d", ErrDecompressedTooLarge, c.maxDecompressedBytes)
	}
	return raw, nil
}

func decodeDocument(data []byte) (*Document, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrDecode)
	}
	if err := ValidateDocument(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &doc, nil
}

// Write encodes doc to path. A non-empty asset map selects the archive layout,
// which is only available for the compressed format.
func (c *Codec) Write(doc *Document, path string, format Format, assets map[string][]byte) error {
	data, err := c.Encode(doc, format, assets)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileWrite, err)
	}
	tmp, err := os.CreateTemp(dir, ".umcf-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileWrite, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrFileWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %v", ErrFileWrite, err)
	}

	slog.Debug("curriculum file written", "path", path, "format", format, "assets", len(assets))
	return nil
}

// Encode serializes doc in the given format.
func (c *Codec) Encode(doc *Document, format Format, assets map[string][]byte) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrEncode)
	}
	if doc.Content == nil {
		d := *doc
		d.Content = []ContentNode{}
		doc = &d
	}

	switch format {
	case FormatPlain:
		if len(assets) > 0 {
			return nil, fmt.Errorf("%w: assets require the compressed format", ErrEncode)
		}
		return encodeSorted(doc)

	case FormatCompressed:
		var payload any = doc
		if len(assets) > 0 {
			archive, err := newArchive(doc, assets, c.createdBy)
			if err != nil {
				return nil, err
			}
			payload = archive.wire()
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncode, err)
		}
		return compress(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// encodeSorted produces indented JSON with object keys in lexical order.
// Struct fields marshal in declaration order, so the document is round-tripped
// through a generic map, which encoding/json always writes sorted.
func encodeSorted(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	out, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return append(out, '\n'), nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}
	return buf.Bytes(), nil
}

// IsSecurityViolation reports whether err was caused by a rejected asset id.
func IsSecurityViolation(err error) bool {
	return errors.Is(err, ErrSecurityViolation)
}
