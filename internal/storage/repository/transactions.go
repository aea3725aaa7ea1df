package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// IssuedRecords — идентификаторы записей, созданных одной выдачей.
type IssuedRecords struct {
	TransactionID int
	GrantID       *int
	AddOnIDs      []int
}

// FindTransactionByProviderID ищет транзакцию покупки по идентификатору
// платёжного провайдера. Отсутствие записи — не ошибка.
func (s *Storage) FindTransactionByProviderID(ctx context.Context, providerTxnID string) (*models.PurchaseTransaction, bool, error) {
	const op = "storage.FindTransactionByProviderID"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, provider_txn_id, user_uid, amount_minor, currency,
				  discount_minor, coupon_code, created_at
			  FROM purchase_transactions
			  WHERE provider_txn_id = $1`
	var txn models.PurchaseTransaction
	var couponCode sql.NullString
	err := s.DB.QueryRowContext(ctx, query, providerTxnID).Scan(
		&txn.ID, &txn.ProviderTxnID, &txn.UserUID, &txn.AmountMinor,
		&txn.Currency, &txn.DiscountMinor, &couponCode, &txn.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	txn.CouponCode = couponCode.String
	return &txn, true, nil
}

// HasCouponUse проверяет, использовал ли пользователь промокод раньше.
func (s *Storage) HasCouponUse(ctx context.Context, userUID, couponCode string) (bool, error) {
	const op = "storage.HasCouponUse"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS (
			      SELECT 1 FROM purchase_transactions
			      WHERE user_uid = $1 AND coupon_code = $2
			  )`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, userUID, couponCode).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// FindIssuedByTransaction возвращает идентификаторы гранта и пакетов,
// созданных транзакцией. Используется для идемпотентного повтора выдачи.
func (s *Storage) FindIssuedByTransaction(ctx context.Context, transactionID int) (*IssuedRecords, error) {
	const op = "storage.FindIssuedByTransaction"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	issued := &IssuedRecords{TransactionID: transactionID}

	var grantID int
	err := s.DB.QueryRowContext(ctx,
		`SELECT id FROM subscription_grants WHERE transaction_id = $1`,
		transactionID).Scan(&grantID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err == nil {
		issued.GrantID = &grantID
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id FROM addon_credits WHERE transaction_id = $1 ORDER BY id`,
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		issued.AddOnIDs = append(issued.AddOnIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return issued, nil
}

// CreateIssue атомарно записывает транзакцию покупки и созданные ею
// грант и/или пакеты доплат. Либо фиксируются все записи, либо ни одной:
// оплаченная покупка не должна оставить частично выданные кредиты.
func (s *Storage) CreateIssue(ctx context.Context, txn models.PurchaseTransaction,
	grant *models.SubscriptionGrant, addons []models.AddOnCredit) (*IssuedRecords, error) {
	const op = "storage.CreateIssue"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var couponCode sql.NullString
	if txn.CouponCode != "" {
		couponCode = sql.NullString{String: txn.CouponCode, Valid: true}
	}
	var txnID int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO purchase_transactions (provider_txn_id, user_uid, amount_minor,
			 currency, discount_minor, coupon_code)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		txn.ProviderTxnID, txn.UserUID, txn.AmountMinor,
		txn.Currency, txn.DiscountMinor, couponCode).Scan(&txnID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	issued := &IssuedRecords{TransactionID: txnID}

	if grant != nil {
		grant.TransactionID = &txnID
		grantID, err := insertGrant(ctx, tx, grant)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		issued.GrantID = &grantID
	}

	for i := range addons {
		addons[i].TransactionID = &txnID
		addonID, err := insertAddOn(ctx, tx, &addons[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		issued.AddOnIDs = append(issued.AddOnIDs, addonID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return issued, nil
}
