package gcv

import (
	"image"
	"math"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/menta2k/image-annotator/pkg/types"
)

// toRecord maps one annotate response. Localized objects come back with normalized
// vertices and are scaled to the width x height of the upload.
func toRecord(resp *visionpb.AnnotateImageResponse, width, height int) *types.AnalysisRecord {
	rec := &types.AnalysisRecord{Width: width, Height: height}

	for _, l := range resp.GetLabelAnnotations() {
		rec.Tags = append(rec.Tags, types.Tag{Name: l.GetDescription(), Confidence: float64(l.GetScore())})
	}
	for _, l := range resp.GetLogoAnnotations() {
		rec.Brands = append(rec.Brands, types.Brand{
			Name:       l.GetDescription(),
			Confidence: float64(l.GetScore()),
			Box:        rectBox(polyRect(l.GetBoundingPoly())),
		})
	}
	for _, o := range resp.GetLocalizedObjectAnnotations() {
		rec.Objects = append(rec.Objects, types.Detection{
			Box:        rectBox(normPolyRect(o.GetBoundingPoly(), width, height)),
			Label:      o.GetName(),
			Confidence: float64(o.GetScore()),
		})
	}

	web := resp.GetWebDetection()
	for _, e := range web.GetWebEntities() {
		if e.GetDescription() == "" {
			continue
		}
		rec.Categories = append(rec.Categories, types.Category{Name: e.GetDescription(), Score: float64(e.GetScore())})
	}
	for _, l := range web.GetBestGuessLabels() {
		if l.GetLabel() != "" {
			rec.Captions = append(rec.Captions, types.Caption{Text: l.GetLabel()})
		}
	}

	if ss := resp.GetSafeSearchAnnotation(); ss != nil {
		rec.Adult = &types.AdultInfo{
			IsAdultContent: likely(ss.GetAdult()),
			IsRacyContent:  likely(ss.GetRacy()),
			IsGoryContent:  likely(ss.GetViolence()),
			AdultScore:     likelihoodScore(ss.GetAdult()),
			RacyScore:      likelihoodScore(ss.GetRacy()),
			GoreScore:      likelihoodScore(ss.GetViolence()),
		}
	}
	return rec
}

func likely(l visionpb.Likelihood) bool {
	return l >= visionpb.Likelihood_LIKELY
}

// likelihoodScore spreads the five likelihood buckets over [0,1]
func likelihoodScore(l visionpb.Likelihood) float64 {
	if l <= visionpb.Likelihood_UNKNOWN {
		return 0
	}
	return float64(l-visionpb.Likelihood_VERY_UNLIKELY) / float64(visionpb.Likelihood_VERY_LIKELY-visionpb.Likelihood_VERY_UNLIKELY)
}

func rectBox(r image.Rectangle) types.Box {
	return types.Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// polyRect returns the bounding rectangle of a pixel-space polygon
func polyRect(p *visionpb.BoundingPoly) image.Rectangle {
	vs := p.GetVertices()
	if len(vs) == 0 {
		return image.Rectangle{}
	}
	minX, minY := math.MaxInt32, math.MaxInt32
	maxX, maxY := math.MinInt32, math.MinInt32
	for _, v := range vs {
		x, y := int(v.GetX()), int(v.GetY())
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	return image.Rect(minX, minY, maxX, maxY)
}

func normPolyRect(p *visionpb.BoundingPoly, width, height int) image.Rectangle {
	vs := p.GetNormalizedVertices()
	if len(vs) == 0 {
		return image.Rectangle{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range vs {
		x, y := float64(v.GetX()), float64(v.GetY())
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return image.Rect(
		int(math.Round(minX*float64(width))),
		int(math.Round(minY*float64(height))),
		int(math.Round(maxX*float64(width))),
		int(math.Round(maxY*float64(height))),
	)
}
