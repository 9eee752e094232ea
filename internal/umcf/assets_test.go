package umcf_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirfifer/voicelearn-ios-sub011/internal/umcf"
)

func TestValidateAssetID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"diagram.png", false},
		{"img/diagram.png", false},
		{"img/..hidden.png", false},
		{"", true},
		{"../secret", true},
		{"/etc/passwd", true},
		{`\windows\system32`, true},
		{"C:/boot.ini", true},
		{"a/b/../../../c", true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := umcf.ValidateAssetID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAssetID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !umcf.IsSecurityViolation(err) {
				t.Errorf("error = %v, want ErrSecurityViolation", err)
			}
		})
	}
}

func TestExtractAssets(t *testing.T) {
	dir := t.TempDir()
	paths, err := umcf.ExtractAssets(dir, map[string][]byte{
		"a.png":     {1},
		"img/b.svg": []byte("<svg/>"),
	})
	if err != nil {
		t.Fatalf("ExtractAssets() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("len(paths) = %d, want 2", len(paths))
	}

	data, err := os.ReadFile(paths["img/b.svg"])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "<svg/>" {
		t.Errorf("content = %q", data)
	}
}

func TestExtractAssets_RejectsWholeBatch(t *testing.T) {
	dir := t.TempDir()
	_, err := umcf.ExtractAssets(dir, map[string][]byte{
		"a.png":     {1},
		"../secret": {2},
	})
	if !errors.Is(err, umcf.ErrSecurityViolation) {
		t.Fatalf("ExtractAssets() error = %v, want ErrSecurityViolation", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("extracted %d entries, want 0", len(entries))
	}
}

func TestLoadAssetDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "img"), 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "img", "x.png"), []byte{1, 2, 3}, 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644)

	assets, err := umcf.LoadAssetDir(dir)
	if err != nil {
		t.Fatalf("LoadAssetDir() error = %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("len(assets) = %d, want 2", len(assets))
	}
	if len(assets["img/x.png"]) != 3 {
		t.Errorf("img/x.png = %v", assets["img/x.png"])
	}
}

func TestMimeType(t *testing.T) {
	tests := map[string]string{
		"a.PNG":  "image/png",
		"b.jpeg": "image/jpeg",
		"c.svg":  "image/svg+xml",
		"d.bin":  "application/octet-stream",
	}
	for name, want := range tests {
		if got := umcf.MimeType(name); got != want {
			t.Errorf("MimeType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestAnnotateMimeTypes(t *testing.T) {
	doc := &umcf.Document{
		Content: []umcf.ContentNode{{
			Title: "Unit",
			Media: &umcf.MediaCollection{Embedded: []umcf.MediaAsset{
				{ID: "img/a.png"},
				{ID: "diagram", LocalPath: "img/b.svg"},
				{ID: "img/c.gif", MimeType: "image/custom"},
				{ID: "not-bundled.jpg"},
			}},
			Children: []umcf.ContentNode{{
				Title: "Topic",
				Media: &umcf.MediaCollection{Embedded: []umcf.MediaAsset{{ID: "img/d.webp"}}},
			}},
		}},
	}
	assets := map[string][]byte{
		"img/a.png":  {1},
		"img/b.svg":  {2},
		"img/c.gif":  {3},
		"img/d.webp": {4},
	}

	if n := umcf.AnnotateMimeTypes(doc, assets); n != 3 {
		t.Errorf("AnnotateMimeTypes() = %d, want 3", n)
	}

	emb := doc.Content[0].Media.Embedded
	want := []string{"image/png", "image/svg+xml", "image/custom", ""}
	for i, w := range want {
		if emb[i].MimeType != w {
			t.Errorf("embedded[%d].MimeType = %q, want %q", i, emb[i].MimeType, w)
		}
	}
	if got := doc.Content[0].Children[0].Media.Embedded[0].MimeType; got != "image/webp" {
		t.Errorf("nested MimeType = %q, want image/webp", got)
	}
}
