package types

import (
	"bytes"
	"image"
	"io"
)

// NormBox represents a normalized bounding box with coordinates in [0,1] range
type NormBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Box is a bounding box in image pixel space. It is not clamped to the image bounds.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Detection is one detected object as returned by the vision service.
type Detection struct {
	Box        Box     `json:"box"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Tag is a content tag with its confidence.
type Tag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Caption is a generated image description.
type Caption struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Category is a taxonomy category assigned to the image.
type Category struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Brand is a detected brand or logo.
type Brand struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// AdultInfo holds the content moderation verdicts.
type AdultInfo struct {
	IsAdultContent bool    `json:"isAdultContent"`
	IsRacyContent  bool    `json:"isRacyContent"`
	IsGoryContent  bool    `json:"isGoryContent"`
	AdultScore     float64 `json:"adultScore"`
	RacyScore      float64 `json:"racyScore"`
	GoreScore      float64 `json:"goreScore"`
}

// AnalysisRecord is the raw analysis returned by a vision backend.
// Any field may be empty; consumers must not assume presence.
type AnalysisRecord struct {
	Captions   []Caption   `json:"captions"`
	Tags       []Tag       `json:"tags"`
	Categories []Category  `json:"categories"`
	Brands     []Brand     `json:"brands"`
	Objects    []Detection `json:"objects"`
	Adult      *AdultInfo  `json:"adult,omitempty"`
	Width      int         `json:"width,omitempty"`
	Height     int         `json:"height,omitempty"`
	Format     string      `json:"format,omitempty"`
}

// Feature is a visual feature requested from the vision service.
type Feature string

const (
	FeatureDescription Feature = "Description"
	FeatureTags        Feature = "Tags"
	FeatureCategories  Feature = "Categories"
	FeatureBrands      Feature = "Brands"
	FeatureObjects     Feature = "Objects"
	FeatureAdult       Feature = "Adult"
)

// AnalysisFeatures is the fixed feature set requested for every upload.
var AnalysisFeatures = []Feature{
	FeatureDescription,
	FeatureTags,
	FeatureCategories,
	FeatureBrands,
	FeatureObjects,
	FeatureAdult,
}

// Artifact describes a derived file once it has been handed to storage.
type Artifact struct {
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Upload is a user-submitted image buffered once in memory.
// The payload is never modified after construction.
type Upload struct {
	name string
	data []byte
}

// NewUpload copies data into a new Upload.
func NewUpload(name string, data []byte) *Upload {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Upload{name: name, data: buf}
}

// ReadUpload buffers everything from r.
func ReadUpload(name string, r io.Reader) (*Upload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &Upload{name: name, data: data}, nil
}

// Name returns the original filename.
func (u *Upload) Name() string {
	return u.name
}

// Len returns the payload size in bytes.
func (u *Upload) Len() int {
	if u == nil {
		return 0
	}
	return len(u.data)
}

// Bytes returns the payload. Callers must treat it as read-only.
func (u *Upload) Bytes() []byte {
	return u.data
}

// Reader returns an independent reader positioned at the start of the payload.
func (u *Upload) Reader() *bytes.Reader {
	return bytes.NewReader(u.data)
}
