package gate

import (
	"context"

	domacc "github.com/kailas-cloud/taleforge/internal/domain/account"
)

// Store is the persistence contract for the daily counter and the story cap.
type Store interface {
	Get(ctx context.Context, id string) (domacc.Account, error)
	ConsumeUnits(ctx context.Context, req domacc.ConsumeRequest) (domacc.ConsumeOutcome, error)
	OpenStory(ctx context.Context, req domacc.StoryRequest) (domacc.StoryOutcome, error)
	CloseStory(ctx context.Context, id string) (int64, error)
}
