package types

import "fmt"

// EmptyUploadError is returned when no file, or a zero-length file, was submitted.
type EmptyUploadError struct{}

func (e *EmptyUploadError) Error() string {
	return "no image uploaded"
}

// AnalysisServiceError wraps a failed remote analyze call. It aborts the whole request.
type AnalysisServiceError struct {
	Err error
}

func (e *AnalysisServiceError) Error() string {
	return fmt.Sprintf("analysis service: %v", e.Err)
}

func (e *AnalysisServiceError) Unwrap() error { return e.Err }

// RenderStage names the local step of the annotation path that failed.
type RenderStage string

const (
	StageDecode  RenderStage = "decode"
	StageDraw    RenderStage = "draw"
	StageEncode  RenderStage = "encode"
	StagePersist RenderStage = "persist"
)

// RenderError reports a local failure while producing the annotated image.
type RenderError struct {
	Stage RenderStage
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render (%s): %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// ThumbnailGenerationError reports a failed thumbnail call or thumbnail write.
type ThumbnailGenerationError struct {
	Err error
}

func (e *ThumbnailGenerationError) Error() string {
	return fmt.Sprintf("thumbnail generation: %v", e.Err)
}

func (e *ThumbnailGenerationError) Unwrap() error { return e.Err }
