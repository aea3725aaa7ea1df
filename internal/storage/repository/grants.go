package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

const grantColumns = `id, user_uid, plan_id, status, start_time, end_time,
		optimization_total, optimization_used,
		score_check_total, score_check_used,
		guided_build_total, guided_build_used,
		outreach_message_total, outreach_message_used,
		transaction_id, created_at`

func scanGrant(row interface{ Scan(...any) error }) (*models.SubscriptionGrant, error) {
	var g models.SubscriptionGrant
	var optTotal, optUsed, scoreTotal, scoreUsed, buildTotal, buildUsed, msgTotal, msgUsed int
	var txnID sql.NullInt64
	if err := row.Scan(&g.ID, &g.UserUID, &g.PlanID, &g.Status, &g.StartTime, &g.EndTime,
		&optTotal, &optUsed, &scoreTotal, &scoreUsed, &buildTotal, &buildUsed, &msgTotal, &msgUsed,
		&txnID, &g.CreatedAt); err != nil {
		return nil, err
	}
	g.Allowances = map[models.Feature]models.FeatureAllowance{
		models.FeatureOptimization:    {Total: optTotal, Used: optUsed},
		models.FeatureScoreCheck:      {Total: scoreTotal, Used: scoreUsed},
		models.FeatureGuidedBuild:     {Total: buildTotal, Used: buildUsed},
		models.FeatureOutreachMessage: {Total: msgTotal, Used: msgUsed},
	}
	if txnID.Valid {
		id := int(txnID.Int64)
		g.TransactionID = &id
	}
	return &g, nil
}

// ListActiveGrants возвращает все действующие гранты пользователя.
// Грант считается действующим по статусу и по непросроченному end_time:
// фоновая очистка статусов может отставать от часов.
func (s *Storage) ListActiveGrants(ctx context.Context, userUID string) ([]*models.SubscriptionGrant, error) {
	const op = "storage.ListActiveGrants"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + grantColumns + `
			  FROM subscription_grants
			  WHERE user_uid = $1
			    AND status = 'active'
			    AND end_time > NOW()
			  ORDER BY start_time`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.SubscriptionGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListUsableGrants возвращает действующие гранты пользователя,
// в которых по данной фиче остались неизрасходованные юниты.
// Порядок — по времени начала, старые гранты расходуются первыми.
func (s *Storage) ListUsableGrants(ctx context.Context, userUID string, feature models.Feature) ([]*models.SubscriptionGrant, error) {
	const op = "storage.ListUsableGrants"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	col := feature.ColumnPrefix()
	query := fmt.Sprintf(`SELECT `+grantColumns+`
			  FROM subscription_grants
			  WHERE user_uid = $1
			    AND status = 'active'
			    AND end_time > NOW()
			    AND %s_used < %s_total
			  ORDER BY start_time`, col, col)
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.SubscriptionGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// IncrementGrantUsed выполняет условное списание юнита гранта:
// used увеличивается на единицу только если текущее значение
// совпадает с прочитанным ранее expectedUsed и грант всё ещё действует.
// Возвращает false, если условие не выполнилось — конкурентный запрос
// успел изменить запись первым.
func (s *Storage) IncrementGrantUsed(ctx context.Context, grantID int, feature models.Feature, expectedUsed int) (bool, error) {
	const op = "storage.IncrementGrantUsed"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	col := feature.ColumnPrefix()
	query := fmt.Sprintf(`UPDATE subscription_grants
			  SET %s_used = %s_used + 1
			  WHERE id = $1
			    AND %s_used = $2
			    AND %s_used < %s_total
			    AND status = 'active'
			    AND end_time > NOW()`, col, col, col, col, col)
	result, err := s.DB.ExecContext(ctx, query, grantID, expectedUsed)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// FindGrantByPlan возвращает ID гранта пользователя по плану, если
// такой грант существует. Используется для идемпотентности триала.
func (s *Storage) FindGrantByPlan(ctx context.Context, userUID, planID string) (int, bool, error) {
	const op = "storage.FindGrantByPlan"
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id FROM subscription_grants
			  WHERE user_uid = $1 AND plan_id = $2
			  ORDER BY id
			  LIMIT 1`
	var id int
	err := s.DB.QueryRowContext(ctx, query, userUID, planID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return id, true, nil
}

// HasAnyGrant сообщает, есть ли у пользователя хотя бы один грант
// в любом статусе. Просроченный или отозванный грант — это всё ещё
// история покупок: такой пользователь видит нулевой баланс,
// а не "нет доступа".
func (s *Storage) HasAnyGrant(ctx context.Context, userUID string) (bool, error) {
	const op = "storage.HasAnyGrant"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS (SELECT 1 FROM subscription_grants WHERE user_uid = $1)`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// ExpireStaleGrants переводит в статус expired гранты, срок действия
// которых истёк, и возвращает количество обновлённых записей.
func (s *Storage) ExpireStaleGrants(ctx context.Context) (int64, error) {
	const op = "storage.ExpireStaleGrants"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscription_grants
			  SET status = 'expired'
			  WHERE status = 'active'
			    AND end_time <= NOW()`
	result, err := s.DB.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

// insertGrant вставляет грант внутри транзакции выдачи.
func insertGrant(ctx context.Context, tx *sql.Tx, grant *models.SubscriptionGrant) (int, error) {
	query := `INSERT INTO subscription_grants (user_uid, plan_id, status, start_time, end_time,
				  optimization_total, optimization_used,
				  score_check_total, score_check_used,
				  guided_build_total, guided_build_used,
				  outreach_message_total, outreach_message_used,
				  transaction_id)
			  VALUES ($1, $2, $3, $4, $5, $6, 0, $7, 0, $8, 0, $9, 0, $10)
			  RETURNING id`
	var newID int
	err := tx.QueryRowContext(ctx, query,
		grant.UserUID, grant.PlanID, grant.Status, grant.StartTime, grant.EndTime,
		grant.Allowances[models.FeatureOptimization].Total,
		grant.Allowances[models.FeatureScoreCheck].Total,
		grant.Allowances[models.FeatureGuidedBuild].Total,
		grant.Allowances[models.FeatureOutreachMessage].Total,
		grant.TransactionID).Scan(&newID)
	if err != nil {
		return 0, err
	}
	return newID, nil
}
