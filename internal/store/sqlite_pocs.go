package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/pocportal/internal/types"
	"github.com/oklog/ulid/v2"
)

const pocColumns = `
	p.id, p.poc_uid, p.name, p.customer_name, p.partner, p.product, p.se_id,
	p.prep_start_date, p.poc_start_date, p.poc_end_date_plan, p.poc_end_date_actual,
	p.last_daily_update_at, p.completion_date_auto, p.risk_status,
	p.technical_result, p.commercial_result, p.se_comment, p.aeb, p.monetary_value,
	p.deregistered_at, p.created_at, p.updated_at`

func scanPOC(scanner interface{ Scan(...any) error }) (*types.POC, error) {
	var (
		p                                              types.POC
		prepStart, start, planEnd, actualEnd, lastBeat sql.NullString
		autoDone, deregistered                         sql.NullString
		technical, commercial, createdAt, updatedAt    string
		monetary                                       sql.NullFloat64
	)
	err := scanner.Scan(
		&p.ID, &p.UID, &p.Name, &p.CustomerName, &p.Partner, &p.Product, &p.OwnerID,
		&prepStart, &start, &planEnd, &actualEnd,
		&lastBeat, &autoDone, &p.RiskStatus,
		&technical, &commercial, &p.SEComment, &p.AEB, &monetary,
		&deregistered, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.PrepStartDate = parseNullTime(prepStart)
	p.StartDate = parseNullTime(start)
	p.PlannedEndDate = parseNullTime(planEnd)
	p.ActualEndDate = parseNullTime(actualEnd)
	p.LastActivityAt = parseNullTime(lastBeat)
	p.CompletionDateAuto = parseNullTime(autoDone)
	p.DeregisteredAt = parseNullTime(deregistered)
	p.TechnicalResult = types.ParseTechnicalResult(technical)
	p.CommercialResult = types.ParseCommercialResult(commercial)
	if monetary.Valid {
		v := monetary.Float64
		p.MonetaryValue = &v
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// RegisterPOC registers a POC or returns the existing one for the same
// SE email, customer name and product. Deregistered POCs never match, so
// registering again after deregistration starts a new POC.
func (s *SQLiteStore) RegisterPOC(ctx context.Context, req types.RegisterRequest, at time.Time) (*types.RegisterResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	email := strings.TrimSpace(req.SAEmail)
	start := types.ParseDatePtr(req.POCStartDate)
	end := types.ParseDatePtr(req.POCEndDate)

	var pocID, uid string
	err = tx.QueryRowContext(ctx, `
		SELECT p.id, p.poc_uid
		FROM pocs p JOIN users u ON u.id = p.se_id
		WHERE u.email = ? COLLATE NOCASE
		  AND p.customer_name = ? AND p.product = ?
		  AND p.deregistered_at IS NULL
		ORDER BY p.created_at ASC
		LIMIT 1
	`, email, req.Prospect, req.Product).Scan(&pocID, &uid)

	switch {
	case err == nil:
		sets, args := []string{}, []any{}
		if req.Partner != "" {
			sets, args = append(sets, "partner = ?"), append(args, req.Partner)
		}
		if start != nil {
			sets, args = append(sets, "poc_start_date = ?"), append(args, formatTime(*start))
		}
		if end != nil {
			sets, args = append(sets, "poc_end_date_plan = ?"), append(args, formatTime(*end))
		}
		if len(sets) > 0 {
			sets, args = append(sets, "updated_at = ?"), append(args, formatTime(at))
			args = append(args, pocID)
			if _, err := tx.ExecContext(ctx, `UPDATE pocs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
				return nil, fmt.Errorf("update poc: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit transaction: %w", err)
		}
		return &types.RegisterResult{POCUID: uid, IsNew: false}, nil

	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("lookup poc: %w", err)
	}

	seID, userCreated, err := getOrCreateUser(ctx, tx, email, req.SAName, at)
	if err != nil {
		return nil, err
	}

	uid = newPOCUID()
	now := formatTime(at)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO pocs (
			id, poc_uid, name, customer_name, partner, product, se_id,
			poc_start_date, poc_end_date_plan, last_daily_update_at,
			risk_status, technical_result, commercial_result, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'on_track', 'unknown', 'unknown', ?, ?)
	`, ulid.Make().String(), uid, req.Prospect+" - "+req.Product, req.Prospect, req.Partner, req.Product, seID,
		nullTime(start), nullTime(end), now, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("insert poc %s: %w", uid, ErrConflict)
		}
		return nil, fmt.Errorf("insert poc: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	res := &types.RegisterResult{POCUID: uid, IsNew: true, UserCreated: userCreated}
	if userCreated {
		res.UserEmail = strings.ToLower(email)
	}
	return res, nil
}

// DeregisterPOC sets the soft-delete marker. It reports false when the
// uid is unknown. A second call keeps the original timestamp.
func (s *SQLiteStore) DeregisterPOC(ctx context.Context, uid string, at time.Time) (bool, error) {
	now := formatTime(at)
	res, err := s.db.ExecContext(ctx, `
		UPDATE pocs SET deregistered_at = COALESCE(deregistered_at, ?), updated_at = ?
		WHERE poc_uid = ?
	`, now, now, uid)
	if err != nil {
		return false, fmt.Errorf("deregister poc: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateOutcome applies an explicit outcome patch and returns the updated POC.
func (s *SQLiteStore) UpdateOutcome(ctx context.Context, uid string, patch types.OutcomeUpdate, at time.Time) (*types.POC, error) {
	sets, args := []string{}, []any{}
	if patch.CommercialResult != nil {
		sets = append(sets, "commercial_result = ?")
		args = append(args, string(types.ParseCommercialResult(*patch.CommercialResult)))
	}
	if patch.TechnicalResult != nil {
		sets = append(sets, "technical_result = ?")
		args = append(args, string(types.ParseTechnicalResult(*patch.TechnicalResult)))
	}
	if patch.PlannedEndDate != nil {
		sets = append(sets, "poc_end_date_plan = ?")
		args = append(args, nullTime(types.ParseDatePtr(*patch.PlannedEndDate)))
	}
	if patch.ActualEndDate != nil {
		sets = append(sets, "poc_end_date_actual = ?")
		args = append(args, nullTime(types.ParseDatePtr(*patch.ActualEndDate)))
	}
	if patch.MonetaryValue != nil {
		sets = append(sets, "monetary_value = ?")
		args = append(args, *patch.MonetaryValue)
	}
	if patch.SEComment != nil {
		sets = append(sets, "se_comment = ?")
		args = append(args, *patch.SEComment)
	}

	if len(sets) > 0 {
		sets = append(sets, "updated_at = ?")
		args = append(args, formatTime(at), uid)
		res, err := s.db.ExecContext(ctx, `UPDATE pocs SET `+strings.Join(sets, ", ")+` WHERE poc_uid = ?`, args...)
		if err != nil {
			return nil, fmt.Errorf("update outcome: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrNotFound
		}
	}

	poc, _, err := s.GetPOC(ctx, uid)
	return poc, err
}

// SetUserRegion assigns the region used by dashboard region filters.
func (s *SQLiteStore) SetUserRegion(ctx context.Context, email, region string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET region = ? WHERE email = ? COLLATE NOCASE`,
		strings.TrimSpace(region), strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("set region: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetPOC returns a POC and its assignments, each joined with its use case.
func (s *SQLiteStore) GetPOC(ctx context.Context, uid string) (*types.POC, []types.Assignment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pocColumns+` FROM pocs p WHERE p.poc_uid = ?`, uid)
	poc, err := scanPOC(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("scan poc: %w", err)
	}

	assignments, err := s.queryAssignments(ctx, `WHERE a.poc_id = ?`, poc.ID)
	if err != nil {
		return nil, nil, err
	}
	return poc, assignments[poc.ID], nil
}

// GetStats returns aggregate store statistics. Active counts POCs whose
// last persisted risk status is not a closing state.
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	var stats types.StoreStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN risk_status NOT IN ('in_review', 'completed') THEN 1 ELSE 0 END), 0)
		FROM pocs
		WHERE deregistered_at IS NULL
	`).Scan(&stats.POCCount, &stats.ActivePOCCount)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &stats, nil
}
