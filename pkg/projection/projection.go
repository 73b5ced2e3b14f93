// Package projection flattens a raw analysis record into display-ready values.
package projection

import (
	"strings"

	"github.com/samber/lo"

	"github.com/menta2k/image-annotator/pkg/types"
)

// NoDescription is shown when the service produced no caption.
const NoDescription = "No description available."

const separator = ", "

// AnalysisResult is the display projection of an AnalysisRecord.
type AnalysisResult struct {
	Description string      `json:"description"`
	Tags        []types.Tag `json:"tags"`
	Categories  string      `json:"categories"`
	Brands      string      `json:"brands"`
	Objects     string      `json:"objects"`
	// AdultContent is the "Yes"/"No" label; IsAdultContent keeps the raw flag.
	AdultContent   string `json:"adultContent"`
	IsAdultContent bool   `json:"isAdultContent"`
}

// Project maps rec to an AnalysisResult. A nil record projects to the defaults.
func Project(rec *types.AnalysisRecord) AnalysisResult {
	if rec == nil {
		rec = &types.AnalysisRecord{}
	}

	res := AnalysisResult{
		Description: NoDescription,
		Tags:        rec.Tags,
		Categories: strings.Join(lo.Map(rec.Categories, func(c types.Category, _ int) string {
			return c.Name
		}), separator),
		Brands: strings.Join(lo.Map(rec.Brands, func(b types.Brand, _ int) string {
			return b.Name
		}), separator),
		Objects: strings.Join(lo.Map(rec.Objects, func(d types.Detection, _ int) string {
			return d.Label
		}), separator),
	}
	if len(rec.Captions) > 0 && rec.Captions[0].Text != "" {
		res.Description = rec.Captions[0].Text
	}
	if res.Tags == nil {
		res.Tags = []types.Tag{}
	}

	res.IsAdultContent = rec.Adult != nil && rec.Adult.IsAdultContent
	res.AdultContent = YesNo(res.IsAdultContent)
	return res
}

// YesNo renders a boolean flag for display.
func YesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
