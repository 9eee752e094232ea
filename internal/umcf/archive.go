package umcf

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// PackageVersion is written into the metadata of every archive.
const PackageVersion = "1.0.0"

// Metadata describes an archive package.
type Metadata struct {
	PackageVersion string `json:"packageVersion"`
	CreatedAt      string `json:"createdAt"`
	CreatedBy      string `json:"createdBy,omitempty"`
	Checksum       string `json:"checksum,omitempty"`
	TotalSize      int64  `json:"totalSize,omitempty"`
	AssetCount     int    `json:"assetCount"`
}

// Archive is a manifest document bundled with binary assets.
type Archive struct {
	Manifest *Document
	Assets   map[string][]byte
	Metadata Metadata
}

type archiveWire struct {
	Manifest *Document         `json:"manifest"`
	Assets   map[string]string `json:"assets"`
	Metadata Metadata          `json:"metadata"`
}

func newArchive(doc *Document, assets map[string][]byte, createdBy string) (*Archive, error) {
	var total int64
	for id, data := range assets {
		if err := ValidateAssetID(id); err != nil {
			return nil, err
		}
		total += int64(len(data))
	}

	sum, err := manifestChecksum(doc)
	if err != nil {
		return nil, err
	}

	return &Archive{
		Manifest: doc,
		Assets:   assets,
		Metadata: Metadata{
			PackageVersion: PackageVersion,
			CreatedAt:      time.Now().UTC().Format(time.RFC3339),
			CreatedBy:      createdBy,
			Checksum:       sum,
			TotalSize:      total,
			AssetCount:     len(assets),
		},
	}, nil
}

func (a *Archive) wire() archiveWire {
	encoded := make(map[string]string, len(a.Assets))
	for id, data := range a.Assets {
		encoded[id] = base64.StdEncoding.EncodeToString(data)
	}
	return archiveWire{Manifest: a.Manifest, Assets: encoded, Metadata: a.Metadata}
}

// decodeArchive parses the archive envelope. Every asset id is validated before
// any payload is decoded, so a single bad id yields no assets at all.
func decodeArchive(data []byte) (*Archive, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	manifestRaw, ok := top["manifest"]
	if !ok {
		return nil, ErrMissingManifest
	}
	if err := validateArchive(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	var wire struct {
		Assets   map[string]string `json:"assets"`
		Metadata Metadata          `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	ids := make([]string, 0, len(wire.Assets))
	for id := range wire.Assets {
		if err := ValidateAssetID(id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	manifest, err := decodeDocument(manifestRaw)
	if err != nil {
		return nil, err
	}

	if wire.Metadata.Checksum != "" {
		// The stored bytes are hashed, not a re-encoding of the decoded manifest.
		var compact bytes.Buffer
		if err := json.Compact(&compact, manifestRaw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
		}
		sum := blake2b.Sum256(compact.Bytes())
		if !strings.EqualFold(hex.EncodeToString(sum[:]), wire.Metadata.Checksum) {
			return nil, fmt.Errorf("%w: manifest checksum mismatch", ErrInvalidArchive)
		}
	}

	assets := make(map[string][]byte, len(ids))
	for _, id := range ids {
		b, err := base64.StdEncoding.DecodeString(wire.Assets[id])
		if err != nil {
			return nil, fmt.Errorf("%w: asset %q: %v", ErrAssetExtraction, id, err)
		}
		assets[id] = b
	}

	return &Archive{Manifest: manifest, Assets: assets, Metadata: wire.Metadata}, nil
}

// manifestChecksum is the hex BLAKE2b-256 of the compact manifest JSON as it is
// written inside the archive envelope.
func manifestChecksum(doc *Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ValidateAssetID rejects ids that could escape the asset directory.
func ValidateAssetID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty asset id", ErrSecurityViolation)
	}
	if strings.HasPrefix(id, "/") || strings.HasPrefix(id, `\`) {
		return fmt.Errorf("%w: absolute asset id %q", ErrSecurityViolation, id)
	}
	if len(id) >= 2 && id[1] == ':' {
		return fmt.Errorf("%w: drive-qualified asset id %q", ErrSecurityViolation, id)
	}
	for _, seg := range strings.FieldsFunc(id, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return fmt.Errorf("%w: parent segment in asset id %q", ErrSecurityViolation, id)
		}
	}
	return nil
}
