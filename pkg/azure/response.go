package azure

import (
	"github.com/menta2k/image-annotator/pkg/types"
)

type rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (r rect) box() types.Box {
	return types.Box{X: r.X, Y: r.Y, W: r.W, H: r.H}
}

type caption struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type analyzeResponse struct {
	Categories []struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	} `json:"categories"`
	Adult *struct {
		IsAdultContent bool    `json:"isAdultContent"`
		IsRacyContent  bool    `json:"isRacyContent"`
		IsGoryContent  bool    `json:"isGoryContent"`
		AdultScore     float64 `json:"adultScore"`
		RacyScore      float64 `json:"racyScore"`
		GoreScore      float64 `json:"goreScore"`
	} `json:"adult"`
	Tags []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"tags"`
	Description *struct {
		Tags     []string  `json:"tags"`
		Captions []caption `json:"captions"`
	} `json:"description"`
	Objects []struct {
		Rectangle  rect    `json:"rectangle"`
		Object     string  `json:"object"`
		Confidence float64 `json:"confidence"`
	} `json:"objects"`
	Brands []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
		Rectangle  rect    `json:"rectangle"`
	} `json:"brands"`
	RequestID string `json:"requestId"`
	Metadata  struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
	} `json:"metadata"`
}

// record maps the wire reply to an AnalysisRecord, keeping service order
func (r *analyzeResponse) record() *types.AnalysisRecord {
	rec := &types.AnalysisRecord{
		Width:  r.Metadata.Width,
		Height: r.Metadata.Height,
		Format: r.Metadata.Format,
	}

	for _, t := range r.Tags {
		rec.Tags = append(rec.Tags, types.Tag{Name: t.Name, Confidence: t.Confidence})
	}
	for _, c := range r.Categories {
		rec.Categories = append(rec.Categories, types.Category{Name: c.Name, Score: c.Score})
	}
	for _, b := range r.Brands {
		rec.Brands = append(rec.Brands, types.Brand{Name: b.Name, Confidence: b.Confidence, Box: b.Rectangle.box()})
	}
	for _, o := range r.Objects {
		rec.Objects = append(rec.Objects, types.Detection{Box: o.Rectangle.box(), Label: o.Object, Confidence: o.Confidence})
	}
	if r.Description != nil {
		for _, c := range r.Description.Captions {
			rec.Captions = append(rec.Captions, types.Caption{Text: c.Text, Confidence: c.Confidence})
		}
	}
	if r.Adult != nil {
		rec.Adult = &types.AdultInfo{
			IsAdultContent: r.Adult.IsAdultContent,
			IsRacyContent:  r.Adult.IsRacyContent,
			IsGoryContent:  r.Adult.IsGoryContent,
			AdultScore:     r.Adult.AdultScore,
			RacyScore:      r.Adult.RacyScore,
			GoreScore:      r.Adult.GoreScore,
		}
	}
	return rec
}
