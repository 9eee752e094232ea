package umcf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExtractAssets writes asset payloads under dir and returns asset id -> file path.
// Ids are validated again here since callers may build the map themselves.
func ExtractAssets(dir string, assets map[string][]byte) (map[string]string, error) {
	paths := make(map[string]string, len(assets))
	if len(assets) == 0 {
		return paths, nil
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetExtraction, err)
	}

	ids := make([]string, 0, len(assets))
	for id := range assets {
		if err := ValidateAssetID(id); err != nil {
			return nil, err
		}
		target := filepath.Join(root, filepath.FromSlash(id))
		if !within(root, target) {
			return nil, fmt.Errorf("%w: asset %q resolves outside %s", ErrSecurityViolation, id, dir)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		target := filepath.Join(root, filepath.FromSlash(id))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAssetExtraction, err)
		}
		if err := os.WriteFile(target, assets[id], 0o644); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAssetExtraction, err)
		}
		paths[id] = target
	}
	return paths, nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// LoadAssetDir reads every regular file under dir into an asset map keyed by
// slash-separated relative path.
func LoadAssetDir(dir string) (map[string][]byte, error) {
	assets := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		assets[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileRead, err)
	}
	return assets, nil
}

var mimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".pdf":  "application/pdf",
}

// MimeType guesses a media type from the asset file extension.
func MimeType(name string) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return "application/octet-stream"
}

// AnnotateMimeTypes fills the empty mimeType of every embedded asset whose id or
// localPath names a bundled payload. It returns how many assets were updated.
func AnnotateMimeTypes(doc *Document, assets map[string][]byte) int {
	var walk func(nodes []ContentNode) int
	walk = func(nodes []ContentNode) int {
		n := 0
		for i := range nodes {
			if m := nodes[i].Media; m != nil {
				for j := range m.Embedded {
					a := &m.Embedded[j]
					if a.MimeType != "" {
						continue
					}
					for _, key := range []string{a.ID, a.LocalPath} {
						if _, ok := assets[key]; ok && key != "" {
							a.MimeType = MimeType(key)
							n++
							break
						}
					}
				}
			}
			n += walk(nodes[i].Children)
		}
		return n
	}
	return walk(doc.Content)
}
