package ports

import (
	"context"

	"antigravity/internal/domain"
)

// SentimentClassifier classifies a batch of texts into one directional
// sentiment with a confidence score in [0, 1].
type SentimentClassifier interface {
	Classify(ctx context.Context, texts []string) (domain.Direction, float64, error)
}

// HeadlineSource fetches recent news headlines to feed the classifier.
type HeadlineSource interface {
	Headlines(ctx context.Context) ([]string, error)
}

// WhaleSource fetches recent large on-chain transfers. It returns text
// summaries (fed to the classifier alongside headlines) and an overall
// directional bias derived from exchange in/out flows.
type WhaleSource interface {
	Movements(ctx context.Context) (summaries []string, bias domain.Direction, err error)
}
