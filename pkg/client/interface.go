package client

import (
	"context"

	"github.com/menta2k/image-annotator/pkg/types"
)

// VisionClient is the remote vision-analysis service. Implementations make a single
// attempt per call; retries are not part of this contract.
type VisionClient interface {
	Analyze(ctx context.Context, image []byte, features []types.Feature) (*types.AnalysisRecord, error)
	GenerateThumbnail(ctx context.Context, width, height int, image []byte, smartCrop bool) ([]byte, error)
}

// ChatClient sends one prompt plus one image to a vision language model.
type ChatClient interface {
	Query(ctx context.Context, model, prompt string, image []byte) (string, error)
}
