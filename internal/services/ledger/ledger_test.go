package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) ListUsableAddOns(ctx context.Context, userUID string, feature models.Feature) ([]*models.AddOnCredit, error) {
	args := m.Called(ctx, userUID, feature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AddOnCredit), args.Error(1)
}

func (m *RepoMock) DecrementAddOnRemaining(ctx context.Context, addonID, expectedRemaining int) (bool, error) {
	args := m.Called(ctx, addonID, expectedRemaining)
	return args.Bool(0), args.Error(1)
}

func (m *RepoMock) ListUsableGrants(ctx context.Context, userUID string, feature models.Feature) ([]*models.SubscriptionGrant, error) {
	args := m.Called(ctx, userUID, feature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SubscriptionGrant), args.Error(1)
}

func (m *RepoMock) IncrementGrantUsed(ctx context.Context, grantID int, feature models.Feature, expectedUsed int) (bool, error) {
	args := m.Called(ctx, grantID, feature, expectedUsed)
	return args.Bool(0), args.Error(1)
}

type BalanceMock struct{ mock.Mock }

func (m *BalanceMock) GetBalance(ctx context.Context, userUID string) (map[models.Feature]models.FeatureBalance, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.Feature]models.FeatureBalance), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func addon(id, remaining int) *models.AddOnCredit {
	return &models.AddOnCredit{
		ID:                id,
		UserUID:           "user-1",
		FeatureType:       models.FeatureOptimization,
		QuantityPurchased: 5,
		QuantityRemaining: remaining,
	}
}

func grant(id, used int) *models.SubscriptionGrant {
	return &models.SubscriptionGrant{
		ID:      id,
		UserUID: "user-1",
		PlanID:  "starter_plan",
		Status:  models.GrantStatusActive,
		Allowances: map[models.Feature]models.FeatureAllowance{
			models.FeatureOptimization: {Total: 10, Used: used},
		},
	}
}

func balanceWithRemaining(remaining int) map[models.Feature]models.FeatureBalance {
	return map[models.Feature]models.FeatureBalance{
		models.FeatureOptimization: {Total: 15, Used: 15 - remaining, Remaining: remaining},
	}
}

func TestLedgerService_Consume(t *testing.T) {
	feature := models.FeatureOptimization

	tests := []struct {
		name          string
		setupMocks    func(r *RepoMock, b *BalanceMock)
		wantRemaining int
		wantErr       error
	}{
		{
			name: "addon is consumed before grant",
			setupMocks: func(r *RepoMock, b *BalanceMock) {
				r.On("ListUsableAddOns", mock.Anything, "user-1", feature).
					Return([]*models.AddOnCredit{addon(5, 2)}, nil).Once()
				r.On("DecrementAddOnRemaining", mock.Anything, 5, 2).Return(true, nil).Once()
				b.On("GetBalance", mock.Anything, "user-1").Return(balanceWithRemaining(9), nil).Once()
			},
			wantRemaining: 9,
		},
		{
			name: "oldest addon is picked first",
			setupMocks: func(r *RepoMock, b *BalanceMock) {
				r.On("ListUsableAddOns", mock.Anything, "user-1", feature).
					Return([]*models.AddOnCredit{addon(3, 1), addon(8, 5)}, nil).Once()
				r.On("DecrementAddOnRemaining", mock.Anything, 3, 1).Return(true, nil).Once()
				b.On("GetBalance", mock.Anything, "user-1").Return(balanceWithRemaining(5), nil).Once()
			},
			wantRemaining: 5,
		},
		{
			name: "grant is used when no addons remain",
			setupMocks: func(r *RepoMock, b *BalanceMock) {
				r.On("ListUsableAddOns", mock.Anything, "user-1", feature).
					Return([]*models.AddOnCredit{}, nil).Once()
				r.On("ListUsableGrants", mock.Anything, "user-1", feature).
					Return([]*models.SubscriptionGrant{grant(11, 4)}, nil).Once()
				r.On("IncrementGrantUsed", mock.Anything, 11, feature, 4).Return(true, nil).Once()
				b.On("GetBalance", mock.Anything, "user-1").Return(balanceWithRemaining(5), nil).Once()
			},
			wantRemaining: 5,
		},
		{
			name: "lost race is retried with fresh state",
			setupMocks: func(r *RepoMock, b *BalanceMock) {
				r.On("ListUsableAddOns", mock.Anything, "user-1", feature).
					Return([]*models.AddOnCredit{addon(5, 2)}, nil).Once()
				r.On("DecrementAddOnRemaining", mock.Anything, 5, 2).Return(false, nil).Once()
				r.On("ListUsableAddOns", mock.Anything, "user-1", feature).
					Return([]*models.AddOnCredit{addon(5, 1)}, nil).Once()
				r.On("DecrementAddOnRemaining", mock.Anything, 5, 1).Return(true, nil).Once()
				b.On("GetBalance", mock.Anything, "user-1").Return(balanceWithRemaining(8), nil).Once()
			},
			wantRemaining: 8,
		},
		{
			name: "both sources empty returns ErrNoCredit",
			setupMocks: func(r *RepoMock, _ *BalanceMock) {
				r.On("ListUsableAddOns", mock.Anything, "user-1", feature).
					Return([]*models.AddOnCredit{}, nil).Once()
				r.On("ListUsableGrants", mock.Anything, "user-1", feature).
					Return([]*models.SubscriptionGrant{}, nil).Once()
			},
			wantErr: ErrNoCredit,
		},
		{
			name: "exhausted retries on live source return ErrConflictExhausted",
			setupMocks: func(r *RepoMock, _ *BalanceMock) {
				r.On("ListUsableAddOns", mock.Anything, "user-1", feature).
					Return([]*models.AddOnCredit{}, nil).Once()
				r.On("ListUsableGrants", mock.Anything, "user-1", feature).
					Return([]*models.SubscriptionGrant{grant(11, 4)}, nil).Times(3)
				r.On("IncrementGrantUsed", mock.Anything, 11, feature, 4).Return(false, nil).Times(3)
			},
			wantErr: ErrConflictExhausted,
		},
		{
			name: "race drained source falls through to ErrNoCredit",
			setupMocks: func(r *RepoMock, _ *BalanceMock) {
				r.On("ListUsableAddOns", mock.Anything, "user-1", feature).
					Return([]*models.AddOnCredit{addon(5, 1)}, nil).Once()
				r.On("DecrementAddOnRemaining", mock.Anything, 5, 1).Return(false, nil).Once()
				r.On("ListUsableAddOns", mock.Anything, "user-1", feature).
					Return([]*models.AddOnCredit{}, nil).Once()
				r.On("ListUsableGrants", mock.Anything, "user-1", feature).
					Return([]*models.SubscriptionGrant{}, nil).Once()
			},
			wantErr: ErrNoCredit,
		},
		{
			name: "storage error is propagated",
			setupMocks: func(r *RepoMock, _ *BalanceMock) {
				r.On("ListUsableAddOns", mock.Anything, "user-1", feature).
					Return(nil, errors.New("db error")).Once()
			},
			wantErr: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			bal := new(BalanceMock)
			tt.setupMocks(repo, bal)

			svc := NewLedgerService(repo, bal, newNoopLogger())
			remaining, err := svc.Consume(context.Background(), "user-1", feature)

			if tt.wantErr != nil {
				assert.Error(t, err)
				assert.EqualError(t, err, tt.wantErr.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantRemaining, remaining)
			}
			repo.AssertExpectations(t)
			bal.AssertExpectations(t)
		})
	}
}
