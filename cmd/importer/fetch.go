package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/sirfifer/voicelearn-ios-sub011/internal/umcf"
)

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// download saves rawURL into dir and returns the file path. The file keeps the
// URL's extension so the codec can pick the format. Bodies over maxBytes are rejected.
func download(ctx context.Context, client *http.Client, rawURL string, maxBytes int64, dir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	format, err := umcf.FormatFromPath(path.Base(u.Path))
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > maxBytes {
		return "", fmt.Errorf("%w: %d bytes", umcf.ErrFileTooLarge, resp.ContentLength)
	}

	f, err := os.CreateTemp(dir, "curriculum-*"+format.Extension())
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	if n > maxBytes {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("%w: more than %d bytes", umcf.ErrFileTooLarge, maxBytes)
	}
	return f.Name(), nil
}
