package lifecycle

import (
	"time"

	"github.com/hyperengineering/pocportal/internal/types"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

func activeUC(code string) types.Assignment {
	return types.Assignment{
		ID:       code,
		IsActive: true,
		UseCase:  &types.UseCase{Code: code, EstimateHours: ptr(2.0)},
	}
}

func completedUC(code string, at time.Time) types.Assignment {
	a := activeUC(code)
	a.IsCompleted = true
	a.CompletedAt = &at
	return a
}

func prepUC(code string, hours float64) types.Assignment {
	return types.Assignment{
		ID:       code,
		IsActive: true,
		UseCase:  &types.UseCase{Code: code, IsCustomerPrep: true, EstimateHours: &hours},
	}
}
