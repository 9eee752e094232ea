package docproc

import "errors"

var (
	ErrUnsupportedDocumentType = errors.New("docproc: unsupported document type")
	ErrFileNotFound            = errors.New("docproc: file not found")
	ErrPageExtraction          = errors.New("docproc: no text could be extracted from any page")
	ErrExtraction              = errors.New("docproc: text extraction failed")
	ErrEncoding                = errors.New("docproc: text is not valid UTF-8 or UTF-16")
	ErrEmbedding               = errors.New("docproc: embedding failed")
	ErrSummary                 = errors.New("docproc: summary generation failed")
)
