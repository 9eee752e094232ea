package umcf

import "errors"

var (
	ErrUnsupportedFormat    = errors.New("umcf: unsupported file extension")
	ErrDecompression        = errors.New("umcf: decompression failed")
	ErrCompression          = errors.New("umcf: compression failed")
	ErrInvalidArchive       = errors.New("umcf: invalid archive structure")
	ErrMissingManifest      = errors.New("umcf: archive has no manifest")
	ErrDecode               = errors.New("umcf: decode failed")
	ErrEncode               = errors.New("umcf: encode failed")
	ErrFileRead             = errors.New("umcf: file read failed")
	ErrFileWrite            = errors.New("umcf: file write failed")
	ErrAssetExtraction      = errors.New("umcf: asset extraction failed")
	ErrSecurityViolation    = errors.New("umcf: security violation")
	ErrFileTooLarge         = errors.New("umcf: file exceeds size limit")
	ErrDecompressedTooLarge = errors.New("umcf: decompressed content exceeds size limit")
)
