package orchestrator

import (
	"go.uber.org/multierr"

	"github.com/menta2k/image-annotator/pkg/projection"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Result is the bundle produced for one upload. AnnotatedImage and Thumbnail are nil
// when the corresponding step failed; the failure is then listed in Warnings.
type Result struct {
	RequestID      string
	AnnotatedImage *types.Artifact
	Thumbnail      *types.Artifact
	Analysis       projection.AnalysisResult
	Record         *types.AnalysisRecord
	Detections     []types.Detection
	Warnings       []error
}

// View is the display model handed to the presentation layer
type View struct {
	AnnotatedImagePath string      `json:"annotatedImagePath,omitempty"`
	ThumbnailPath     string      `json:"thumbnailPath,omitempty"`
	Description       string      `json:"description"`
	Tags              []types.Tag `json:"tags"`
	Categories        string      `json:"categories"`
	Brands            string      `json:"brands"`
	Objects           string      `json:"objects"`
	AdultContent      string      `json:"adultContent"`
	IsAdultContent    bool        `json:"isAdultContent"`
	Warnings          []string    `json:"warnings,omitempty"`
}

// View flattens r into the display model
func (r *Result) View() View {
	v := View{
		Description:    r.Analysis.Description,
		Tags:           r.Analysis.Tags,
		Categories:     r.Analysis.Categories,
		Brands:         r.Analysis.Brands,
		Objects:        r.Analysis.Objects,
		AdultContent:   r.Analysis.AdultContent,
		IsAdultContent: r.Analysis.IsAdultContent,
	}
	if r.AnnotatedImage != nil {
		v.AnnotatedImagePath = r.AnnotatedImage.Path
	}
	if r.Thumbnail != nil {
		v.ThumbnailPath = r.Thumbnail.Path
	}
	for _, w := range r.Warnings {
		v.Warnings = append(v.Warnings, w.Error())
	}
	return v
}

// Err combines the warnings of r, or returns nil for a clean run.
func (r *Result) Err() error {
	return multierr.Combine(r.Warnings...)
}
