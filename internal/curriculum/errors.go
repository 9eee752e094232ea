package curriculum

import "errors"

var (
	ErrCurriculumNotFound = errors.New("curriculum not found")
	ErrTopicNotFound      = errors.New("topic not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrProgressNotFound   = errors.New("progress not found")
	ErrInvalidTopicOrder  = errors.New("invalid topic order")
	ErrSave               = errors.New("curriculum save failed")
	ErrLoad               = errors.New("curriculum load failed")
	ErrNoActiveCurriculum = errors.New("no active curriculum")
	ErrContextGeneration  = errors.New("context generation failed")
)
