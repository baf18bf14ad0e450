package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperengineering/pocportal/internal/types"
)

// LoadSnapshot reads every POC, assignment and user in one consistent
// read transaction.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*types.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	snap := &types.Snapshot{
		POCs:        []types.POC{},
		Assignments: map[string][]types.Assignment{},
		Users:       map[string]types.User{},
	}

	rows, err := tx.QueryContext(ctx, `SELECT `+pocColumns+` FROM pocs p ORDER BY p.created_at ASC, p.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pocs: %w", err)
	}
	for rows.Next() {
		p, err := scanPOC(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan poc: %w", err)
		}
		snap.POCs = append(snap.POCs, *p)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close poc rows: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pocs: %w", err)
	}

	snap.Assignments, err = queryAssignments(ctx, tx, "")
	if err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx, `SELECT id, email, display_name, role, region, created_at FROM users`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			u         types.User
			role      string
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &role, &u.Region, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = types.Role(role)
		u.CreatedAt = parseTime(createdAt)
		snap.Users[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return snap, nil
}

func (s *SQLiteStore) queryAssignments(ctx context.Context, where string, args ...any) (map[string][]types.Assignment, error) {
	return queryAssignments(ctx, s.db, where, args...)
}

// queryAssignments loads assignments joined with their use case, grouped
// by POC ID and ordered by sort order, then code.
func queryAssignments(ctx context.Context, q querier, where string, args ...any) (map[string][]types.Assignment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT a.id, a.poc_id, a.use_case_id, a.is_active, a.is_completed, a.completed_at,
		       a.rating, a.estimate_hours_override, a.sort_order,
		       u.code, u.version, u.title, u.description, u.product_family, u.product,
		       u.category, u.author, u.estimate_hours, u.is_customer_prep
		FROM poc_use_cases a JOIN use_cases u ON u.id = a.use_case_id
		`+where+`
		ORDER BY a.poc_id, a.sort_order IS NULL, a.sort_order, u.code
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	out := map[string][]types.Assignment{}
	for rows.Next() {
		var (
			a                  types.Assignment
			uc                 types.UseCase
			active, done, prep int
			completedAt        sql.NullString
			rating, sortOrder  sql.NullInt64
			override, estimate sql.NullFloat64
		)
		err := rows.Scan(&a.ID, &a.POCID, &a.UseCaseID, &active, &done, &completedAt,
			&rating, &override, &sortOrder,
			&uc.Code, &uc.Version, &uc.Title, &uc.Description, &uc.ProductFamily, &uc.Product,
			&uc.Category, &uc.Author, &estimate, &prep)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}

		a.IsActive = active == 1
		a.IsCompleted = done == 1
		a.CompletedAt = parseNullTime(completedAt)
		if rating.Valid {
			v := int(rating.Int64)
			a.Rating = &v
		}
		if override.Valid {
			v := override.Float64
			a.EstimateHoursOverride = &v
		}
		if sortOrder.Valid {
			v := int(sortOrder.Int64)
			a.Order = &v
		}
		uc.ID = a.UseCaseID
		uc.IsCustomerPrep = prep == 1
		if estimate.Valid {
			v := estimate.Float64
			uc.EstimateHours = &v
		}
		a.UseCase = &uc
		out[a.POCID] = append(out[a.POCID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return out, nil
}

// SaveRiskStatuses persists derived classification columns in one
// transaction and returns how many rows changed.
func (s *SQLiteStore) SaveRiskStatuses(ctx context.Context, updates []types.RiskStatusUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE pocs SET risk_status = ?, completion_date_auto = ?
		WHERE id = ? AND (risk_status != ? OR completion_date_auto IS NOT ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	changed := 0
	for _, u := range updates {
		auto := nullTime(u.CompletionDateAuto)
		res, err := stmt.ExecContext(ctx, u.RiskStatus, auto, u.POCID, u.RiskStatus, auto)
		if err != nil {
			return 0, fmt.Errorf("update risk status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		changed += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return changed, nil
}
