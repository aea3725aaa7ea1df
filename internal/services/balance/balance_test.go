package balance

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

func (m *RepoMock) ListActiveGrants(ctx context.Context, userUID string) ([]*models.SubscriptionGrant, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SubscriptionGrant), args.Error(1)
}

func (m *RepoMock) ListAddOns(ctx context.Context, userUID string) ([]*models.AddOnCredit, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AddOnCredit), args.Error(1)
}

func (m *RepoMock) HasAnyGrant(ctx context.Context, userUID string) (bool, error) {
	args := m.Called(ctx, userUID)
	return args.Bool(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestBalanceService_GetBalance(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(r *RepoMock)
		want       map[models.Feature]models.FeatureBalance
		wantErr    error
	}{
		{
			name: "grants and addons are summed per feature",
			setupMocks: func(r *RepoMock) {
				grants := []*models.SubscriptionGrant{
					{
						ID:     1,
						PlanID: "starter_plan",
						Status: models.GrantStatusActive,
						Allowances: map[models.Feature]models.FeatureAllowance{
							models.FeatureOptimization: {Total: 10, Used: 3},
							models.FeatureScoreCheck:   {Total: 20, Used: 0},
						},
					},
				}
				addons := []*models.AddOnCredit{
					{ID: 5, FeatureType: models.FeatureOptimization, QuantityPurchased: 5, QuantityRemaining: 2},
				}
				r.On("ListActiveGrants", mock.Anything, "user-1").Return(grants, nil).Once()
				r.On("ListAddOns", mock.Anything, "user-1").Return(addons, nil).Once()
			},
			want: map[models.Feature]models.FeatureBalance{
				models.FeatureOptimization:    {Total: 15, Used: 6, Remaining: 9},
				models.FeatureScoreCheck:      {Total: 20, Used: 0, Remaining: 20},
				models.FeatureGuidedBuild:     {Total: 0, Used: 0, Remaining: 0},
				models.FeatureOutreachMessage: {Total: 0, Used: 0, Remaining: 0},
			},
		},
		{
			name: "user without any records gets ErrNoEntitlement",
			setupMocks: func(r *RepoMock) {
				r.On("ListActiveGrants", mock.Anything, "user-1").Return([]*models.SubscriptionGrant{}, nil).Once()
				r.On("ListAddOns", mock.Anything, "user-1").Return([]*models.AddOnCredit{}, nil).Once()
				r.On("HasAnyGrant", mock.Anything, "user-1").Return(false, nil).Once()
			},
			wantErr: ErrNoEntitlement,
		},
		{
			name: "user with only an expired grant gets a zero balance",
			setupMocks: func(r *RepoMock) {
				r.On("ListActiveGrants", mock.Anything, "user-1").Return([]*models.SubscriptionGrant{}, nil).Once()
				r.On("ListAddOns", mock.Anything, "user-1").Return([]*models.AddOnCredit{}, nil).Once()
				r.On("HasAnyGrant", mock.Anything, "user-1").Return(true, nil).Once()
			},
			want: map[models.Feature]models.FeatureBalance{
				models.FeatureOptimization:    {Total: 0, Used: 0, Remaining: 0},
				models.FeatureScoreCheck:      {Total: 0, Used: 0, Remaining: 0},
				models.FeatureGuidedBuild:     {Total: 0, Used: 0, Remaining: 0},
				models.FeatureOutreachMessage: {Total: 0, Used: 0, Remaining: 0},
			},
		},
		{
			name: "existence check error is propagated",
			setupMocks: func(r *RepoMock) {
				r.On("ListActiveGrants", mock.Anything, "user-1").Return([]*models.SubscriptionGrant{}, nil).Once()
				r.On("ListAddOns", mock.Anything, "user-1").Return([]*models.AddOnCredit{}, nil).Once()
				r.On("HasAnyGrant", mock.Anything, "user-1").Return(false, errors.New("db error")).Once()
			},
			wantErr: errors.New("db error"),
		},
		{
			name: "fully exhausted addon still counts as entitlement",
			setupMocks: func(r *RepoMock) {
				addons := []*models.AddOnCredit{
					{ID: 7, FeatureType: models.FeatureGuidedBuild, QuantityPurchased: 3, QuantityRemaining: 0},
				}
				r.On("ListActiveGrants", mock.Anything, "user-1").Return([]*models.SubscriptionGrant{}, nil).Once()
				r.On("ListAddOns", mock.Anything, "user-1").Return(addons, nil).Once()
			},
			want: map[models.Feature]models.FeatureBalance{
				models.FeatureOptimization:    {Total: 0, Used: 0, Remaining: 0},
				models.FeatureScoreCheck:      {Total: 0, Used: 0, Remaining: 0},
				models.FeatureGuidedBuild:     {Total: 3, Used: 3, Remaining: 0},
				models.FeatureOutreachMessage: {Total: 0, Used: 0, Remaining: 0},
			},
		},
		{
			name: "storage error is propagated",
			setupMocks: func(r *RepoMock) {
				r.On("ListActiveGrants", mock.Anything, "user-1").Return(nil, errors.New("db error")).Once()
			},
			wantErr: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setupMocks(repo)

			svc := NewBalanceService(repo, newNoopLogger())
			got, err := svc.GetBalance(context.Background(), "user-1")

			if tt.wantErr != nil {
				assert.Error(t, err)
				assert.EqualError(t, err, tt.wantErr.Error())
				assert.Nil(t, got)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			repo.AssertExpectations(t)
		})
	}
}
