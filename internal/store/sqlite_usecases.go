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

// RecordHeartbeat stores a daily update: it refreshes the heartbeat,
// deactivates every assignment of the POC and then re-applies the reported
// use cases. Entries without a code are skipped. It returns the number of
// use cases applied.
func (s *SQLiteStore) RecordHeartbeat(ctx context.Context, uid string, useCases []types.HeartbeatUseCase, at time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	pocID, _, err := lookupPOC(ctx, tx, uid)
	if err != nil {
		return 0, err
	}

	now := formatTime(at)
	if _, err := tx.ExecContext(ctx, `UPDATE pocs SET last_daily_update_at = ?, updated_at = ? WHERE id = ?`, now, now, pocID); err != nil {
		return 0, fmt.Errorf("update heartbeat: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE poc_use_cases SET is_active = 0, updated_at = ? WHERE poc_id = ? AND is_active = 1`, now, pocID); err != nil {
		return 0, fmt.Errorf("deactivate use cases: %w", err)
	}

	processed := 0
	for _, uc := range useCases {
		code := strings.TrimSpace(uc.Code)
		if code == "" {
			continue
		}

		ucID, err := upsertUseCase(ctx, tx, uc, at)
		if err != nil {
			return 0, err
		}

		active, completed := true, false
		if uc.IsActive != nil {
			active = *uc.IsActive
		}
		if uc.IsCompleted != nil {
			completed = *uc.IsCompleted
		}
		if _, err := upsertAssignment(ctx, tx, pocID, ucID, uc.Order, &active, &completed, at); err != nil {
			return 0, err
		}
		processed++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return processed, nil
}

// SetUseCaseCompletion marks a use case completed or not completed for a
// POC, creating the catalog entry and assignment when missing.
func (s *SQLiteStore) SetUseCaseCompletion(ctx context.Context, uid, code string, completed bool, at time.Time) error {
	return s.withAssignment(ctx, uid, code, at, func(tx *sql.Tx, _ string, ucID string, pocID string) error {
		active := true
		_, err := upsertAssignment(ctx, tx, pocID, ucID, nil, &active, &completed, at)
		return err
	})
}

// SetRating stores a 1-5 rating on a use case assignment.
func (s *SQLiteStore) SetRating(ctx context.Context, uid, code string, rating int, at time.Time) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	return s.withAssignment(ctx, uid, code, at, func(tx *sql.Tx, _ string, ucID string, pocID string) error {
		id, err := upsertAssignment(ctx, tx, pocID, ucID, nil, nil, nil, at)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE poc_use_cases SET rating = ?, updated_at = ? WHERE id = ?`, rating, formatTime(at), id); err != nil {
			return fmt.Errorf("set rating: %w", err)
		}
		return nil
	})
}

// AddComment stores feedback or a question on a use case. The POC's SE is
// recorded as author.
func (s *SQLiteStore) AddComment(ctx context.Context, uid, code string, kind types.CommentKind, text string, at time.Time) (string, error) {
	if kind == "" {
		kind = types.CommentFeedback
	}
	commentID := ulid.Make().String()
	err := s.withAssignment(ctx, uid, code, at, func(tx *sql.Tx, seID string, ucID string, pocID string) error {
		id, err := upsertAssignment(ctx, tx, pocID, ucID, nil, nil, nil, at)
		if err != nil {
			return err
		}
		var author any
		if seID != "" {
			author = seID
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO comments (id, poc_id, poc_use_case_id, author_id, kind, text, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, commentID, pocID, id, author, string(kind), text, formatTime(at))
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return commentID, nil
}

// withAssignment runs fn in a transaction after resolving the POC and the
// use case (latest version of code, created as v1 when unknown).
func (s *SQLiteStore) withAssignment(ctx context.Context, uid, code string, at time.Time, fn func(tx *sql.Tx, seID, ucID, pocID string) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	pocID, seID, err := lookupPOC(ctx, tx, uid)
	if err != nil {
		return err
	}

	ucID, err := resolveUseCase(ctx, tx, code, at)
	if err != nil {
		return err
	}

	if err := fn(tx, seID, ucID, pocID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// resolveUseCase returns the latest catalog version of code, creating
// version 1 with a derived title when the code is unknown.
func resolveUseCase(ctx context.Context, q querier, code string, at time.Time) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM use_cases WHERE code = ? ORDER BY version DESC LIMIT 1`, code).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup use case: %w", err)
	}
	return upsertUseCase(ctx, q, types.HeartbeatUseCase{Code: code, Version: 1}, at)
}

// upsertUseCase finds the catalog entry for (code, version) and updates any
// metadata that changed, or creates it.
func upsertUseCase(ctx context.Context, q querier, uc types.HeartbeatUseCase, at time.Time) (string, error) {
	version := uc.Version
	if version <= 0 {
		version = 1
	}
	now := formatTime(at)

	var (
		id       string
		existing types.UseCase
		estimate sql.NullFloat64
		prep     int
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, title, description, product_family, product, category, author, estimate_hours, is_customer_prep
		FROM use_cases WHERE code = ? AND version = ?
	`, uc.Code, version).Scan(&id, &existing.Title, &existing.Description, &existing.ProductFamily,
		&existing.Product, &existing.Category, &existing.Author, &estimate, &prep)

	switch {
	case err == nil:
		sets, args := []string{}, []any{}
		setString := func(col string, v *string, cur string) {
			if v != nil && *v != cur {
				sets, args = append(sets, col+" = ?"), append(args, *v)
			}
		}
		if uc.Title != "" && uc.Title != existing.Title {
			sets, args = append(sets, "title = ?"), append(args, uc.Title)
		}
		setString("description", uc.Description, existing.Description)
		setString("product_family", uc.ProductFamily, existing.ProductFamily)
		setString("product", uc.Product, existing.Product)
		setString("category", uc.Category, existing.Category)
		setString("author", uc.Author, existing.Author)
		if uc.EstimateHours != nil && (!estimate.Valid || estimate.Float64 != *uc.EstimateHours) {
			sets, args = append(sets, "estimate_hours = ?"), append(args, *uc.EstimateHours)
		}
		if uc.IsCustomerPrep != nil && boolInt(*uc.IsCustomerPrep) != prep {
			sets, args = append(sets, "is_customer_prep = ?"), append(args, boolInt(*uc.IsCustomerPrep))
		}
		if len(sets) == 0 {
			return id, nil
		}
		sets, args = append(sets, "updated_at = ?"), append(args, now, id)
		if _, err := q.ExecContext(ctx, `UPDATE use_cases SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return "", fmt.Errorf("update use case: %w", err)
		}
		return id, nil

	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("lookup use case: %w", err)
	}

	title := uc.Title
	if title == "" {
		title = titleFromCode(uc.Code)
	}
	deref := func(v *string) string {
		if v == nil {
			return ""
		}
		return *v
	}
	var estimateArg any
	if uc.EstimateHours != nil {
		estimateArg = *uc.EstimateHours
	}
	prepArg := 0
	if uc.IsCustomerPrep != nil {
		prepArg = boolInt(*uc.IsCustomerPrep)
	}

	id = ulid.Make().String()
	_, err = q.ExecContext(ctx, `
		INSERT INTO use_cases (
			id, code, version, title, description, product_family, product, category,
			author, estimate_hours, is_customer_prep, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, uc.Code, version, title, deref(uc.Description), deref(uc.ProductFamily), deref(uc.Product),
		deref(uc.Category), deref(uc.Author), estimateArg, prepArg, now, now)
	if err != nil {
		return "", fmt.Errorf("insert use case: %w", err)
	}
	return id, nil
}

// upsertAssignment finds or creates the link between a POC and a use case.
// Nil arguments leave existing values untouched; a new link defaults to
// active and not completed. Completion transitions set or clear completed_at.
func upsertAssignment(ctx context.Context, q querier, pocID, ucID string, order *int, active, completed *bool, at time.Time) (string, error) {
	now := formatTime(at)

	var (
		id               string
		isActive, isDone int
		sortOrder        sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, is_active, is_completed, sort_order FROM poc_use_cases
		WHERE poc_id = ? AND use_case_id = ?
	`, pocID, ucID).Scan(&id, &isActive, &isDone, &sortOrder)

	switch {
	case err == nil:
		sets, args := []string{}, []any{}
		if order != nil && (!sortOrder.Valid || int(sortOrder.Int64) != *order) {
			sets, args = append(sets, "sort_order = ?"), append(args, *order)
		}
		if active != nil && boolInt(*active) != isActive {
			sets, args = append(sets, "is_active = ?"), append(args, boolInt(*active))
		}
		if completed != nil && boolInt(*completed) != isDone {
			sets, args = append(sets, "is_completed = ?"), append(args, boolInt(*completed))
			if *completed {
				sets, args = append(sets, "completed_at = ?"), append(args, now)
			} else {
				sets = append(sets, "completed_at = NULL")
			}
		}
		if len(sets) == 0 {
			return id, nil
		}
		sets, args = append(sets, "updated_at = ?"), append(args, now, id)
		if _, err := q.ExecContext(ctx, `UPDATE poc_use_cases SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return "", fmt.Errorf("update assignment: %w", err)
		}
		return id, nil

	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("lookup assignment: %w", err)
	}

	act, done := true, false
	if active != nil {
		act = *active
	}
	if completed != nil {
		done = *completed
	}
	var completedAt, orderArg any
	if done {
		completedAt = now
	}
	if order != nil {
		orderArg = *order
	}

	id = ulid.Make().String()
	_, err = q.ExecContext(ctx, `
		INSERT INTO poc_use_cases (id, poc_id, use_case_id, is_active, is_completed, completed_at, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, pocID, ucID, boolInt(act), boolInt(done), completedAt, orderArg, now, now)
	if err != nil {
		return "", fmt.Errorf("insert assignment: %w", err)
	}
	return id, nil
}
