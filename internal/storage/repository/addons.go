package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

const addonColumns = `id, user_uid, feature_type, quantity_purchased,
		quantity_remaining, transaction_id, purchased_at`

func scanAddOn(row interface{ Scan(...any) error }) (*models.AddOnCredit, error) {
	var a models.AddOnCredit
	var feature string
	var txnID sql.NullInt64
	if err := row.Scan(&a.ID, &a.UserUID, &feature, &a.QuantityPurchased,
		&a.QuantityRemaining, &txnID, &a.PurchasedAt); err != nil {
		return nil, err
	}
	a.FeatureType = models.Feature(feature)
	if txnID.Valid {
		id := int(txnID.Int64)
		a.TransactionID = &id
	}
	return &a, nil
}

// ListAddOns возвращает все пакеты доплат пользователя,
// включая полностью израсходованные — они нужны для сведения баланса.
func (s *Storage) ListAddOns(ctx context.Context, userUID string) ([]*models.AddOnCredit, error) {
	const op = "storage.ListAddOns"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + addonColumns + `
			  FROM addon_credits
			  WHERE user_uid = $1
			  ORDER BY purchased_at`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.AddOnCredit
	for rows.Next() {
		a, err := scanAddOn(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListUsableAddOns возвращает пакеты пользователя по фиче
// с ненулевым остатком, старые покупки первыми.
func (s *Storage) ListUsableAddOns(ctx context.Context, userUID string, feature models.Feature) ([]*models.AddOnCredit, error) {
	const op = "storage.ListUsableAddOns"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + addonColumns + `
			  FROM addon_credits
			  WHERE user_uid = $1
			    AND feature_type = $2
			    AND quantity_remaining > 0
			  ORDER BY purchased_at, id`
	rows, err := s.DB.QueryContext(ctx, query, userUID, feature.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.AddOnCredit
	for rows.Next() {
		a, err := scanAddOn(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DecrementAddOnRemaining выполняет условное списание юнита пакета:
// остаток уменьшается на единицу только если текущее значение совпадает
// с прочитанным ранее expectedRemaining. Возвращает false при проигрыше
// гонки конкурентному запросу.
func (s *Storage) DecrementAddOnRemaining(ctx context.Context, addonID, expectedRemaining int) (bool, error) {
	const op = "storage.DecrementAddOnRemaining"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE addon_credits
			  SET quantity_remaining = quantity_remaining - 1
			  WHERE id = $1
			    AND quantity_remaining = $2
			    AND quantity_remaining > 0`
	result, err := s.DB.ExecContext(ctx, query, addonID, expectedRemaining)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// insertAddOn вставляет пакет доплат внутри транзакции выдачи.
func insertAddOn(ctx context.Context, tx *sql.Tx, addon *models.AddOnCredit) (int, error) {
	query := `INSERT INTO addon_credits (user_uid, feature_type, quantity_purchased,
				  quantity_remaining, transaction_id)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var newID int
	err := tx.QueryRowContext(ctx, query,
		addon.UserUID, addon.FeatureType.String(), addon.QuantityPurchased,
		addon.QuantityRemaining, addon.TransactionID).Scan(&newID)
	if err != nil {
		return 0, err
	}
	return newID, nil
}
