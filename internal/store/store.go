package store

import (
	"context"
	"time"

	"github.com/hyperengineering/pocportal/internal/types"
)

// Store defines the record store contract shared by the API, the CLI and
// the risk snapshot worker. POCs are addressed by their public poc_uid.
type Store interface {
	RegisterPOC(ctx context.Context, req types.RegisterRequest, at time.Time) (*types.RegisterResult, error)
	DeregisterPOC(ctx context.Context, uid string, at time.Time) (bool, error)
	RecordHeartbeat(ctx context.Context, uid string, useCases []types.HeartbeatUseCase, at time.Time) (int, error)
	SetUseCaseCompletion(ctx context.Context, uid, code string, completed bool, at time.Time) error
	SetRating(ctx context.Context, uid, code string, rating int, at time.Time) error
	AddComment(ctx context.Context, uid, code string, kind types.CommentKind, text string, at time.Time) (string, error)
	UpdateOutcome(ctx context.Context, uid string, patch types.OutcomeUpdate, at time.Time) (*types.POC, error)
	SetUserRegion(ctx context.Context, email, region string) error
	GetPOC(ctx context.Context, uid string) (*types.POC, []types.Assignment, error)
	LoadSnapshot(ctx context.Context) (*types.Snapshot, error)
	SaveRiskStatuses(ctx context.Context, updates []types.RiskStatusUpdate) (int, error)
	GetStats(ctx context.Context) (*types.StoreStats, error)
	Close() error
}
