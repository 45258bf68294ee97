package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fodmapworks/fodmap-flow/internal/common"
	"github.com/fodmapworks/fodmap-flow/internal/model"
)

const productColumns = `identity_hash, name, category, fodmap_status, is_food,
	explanation, created_at, updated_at, processed_at`

// InsertPending stores products that are not yet known, leaving existing rows
// untouched. Returns the number of newly created rows. Submitting the same
// product twice is a no-op for the second submission.
func (s *SQLiteStorage) InsertPending(ctx context.Context, products []model.Product) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO products (identity_hash, name, category, fodmap_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var inserted int64
	now := time.Now().UTC()
	for _, p := range products {
		if p.IdentityHash == "" {
			return 0, fmt.Errorf("product %q has no identity hash", p.Name)
		}
		result, execErr := stmt.ExecContext(ctx,
			p.IdentityHash, p.Name, p.Category, string(model.StatusPending), now, now)
		if execErr != nil {
			return 0, fmt.Errorf("failed to insert product %q: %w", p.Name, execErr)
		}
		n, _ := result.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit insert: %w", err)
	}
	return inserted, nil
}

// FindByIdentities returns the stored products matching the given identity
// hashes. Hashes with no stored row are simply absent from the result.
func (s *SQLiteStorage) FindByIdentities(ctx context.Context, hashes []string) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(hashes) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(hashes))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(hashes))
	for i, h := range hashes {
		args[i] = h
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE identity_hash IN (%s)`,
		productColumns, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanProducts(rows)
}

// FindPendingOrderedByAge returns up to limit PENDING products, oldest first,
// so no product starves behind newer submissions.
func (s *SQLiteStorage) FindPendingOrderedByAge(ctx context.Context, limit int) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM products
		WHERE fodmap_status = ?
		ORDER BY created_at ASC
		LIMIT ?`, productColumns)
	rows, err := s.db.QueryContext(ctx, query, string(model.StatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanProducts(rows)
}

// UpdateClassification records a classification outcome for one product,
// marking it processed. Returns common.ErrNotFound when no product with the
// given identity hash exists.
func (s *SQLiteStorage) UpdateClassification(ctx context.Context, identityHash string, result model.ClassificationResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET fodmap_status = ?, is_food = ?, explanation = ?, updated_at = ?, processed_at = ?
		WHERE identity_hash = ?`,
		string(result.Status), nullBool(result.IsFood), result.Explanation, now, now, identityHash)
	if err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("product %s: %w", identityHash, common.ErrNotFound)
	}
	return nil
}

// CountPending returns the number of products still awaiting classification.
func (s *SQLiteStorage) CountPending(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE fodmap_status = ?`,
		string(model.StatusPending)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending products: %w", err)
	}
	return count, nil
}

// CountByStatus returns how many products hold each classification status.
func (s *SQLiteStorage) CountByStatus(ctx context.Context) (map[model.FodmapStatus]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT fodmap_status, COUNT(*) FROM products GROUP BY fodmap_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count products by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.FodmapStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[model.FodmapStatus(status)] = count
	}
	return counts, rows.Err()
}

func scanProducts(rows *sql.Rows) ([]model.Product, error) {
	var products []model.Product
	for rows.Next() {
		var (
			p           model.Product
			status      string
			isFood      sql.NullBool
			explanation sql.NullString
			processedAt sql.NullTime
		)
		if err := rows.Scan(&p.IdentityHash, &p.Name, &p.Category, &status,
			&isFood, &explanation, &p.CreatedAt, &p.UpdatedAt, &processedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Status = model.FodmapStatus(status)
		if isFood.Valid {
			p.IsFood = model.Bool(isFood.Bool)
		}
		if explanation.Valid {
			p.Explanation = explanation.String
		}
		if processedAt.Valid {
			t := processedAt.Time
			p.ProcessedAt = &t
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}
