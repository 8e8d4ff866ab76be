package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Lookup(t *testing.T) {
	catalog := NewCatalog(0)

	tests := []struct {
		name         string
		id           string
		wantPrice    decimal.Decimal
		wantDuration time.Duration
		wantErr      error
	}{
		{name: "trial falls back to default duration", id: TariffTrial, wantPrice: decimal.Zero, wantDuration: DefaultTrialDuration},
		{name: "one month", id: "1_99", wantPrice: decimal.NewFromInt(99), wantDuration: 30 * 24 * time.Hour},
		{name: "one year", id: "12_899", wantPrice: decimal.NewFromInt(899), wantDuration: 365 * 24 * time.Hour},
		{name: "test minute", id: TariffTestMinute, wantPrice: decimal.Zero, wantDuration: time.Minute},
		{name: "unknown", id: "3_999", wantErr: ErrUnknownTariff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := catalog.Lookup(tt.id)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantPrice.Equal(got.Price))
			assert.Equal(t, tt.wantDuration, got.Duration)
		})
	}
}

func TestCatalog_CustomTrialDuration(t *testing.T) {
	trial, err := NewCatalog(time.Hour).Lookup(TariffTrial)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, trial.Duration)
}

func TestCatalog_Purchasable(t *testing.T) {
	got := NewCatalog(0).Purchasable()

	ids := make([]string, 0, len(got))
	for _, tariff := range got {
		ids = append(ids, tariff.ID)
	}
	assert.Equal(t, []string{"1_99", "2_179", "6_499", "12_899"}, ids)
}

func TestSubscription_State(t *testing.T) {
	now := time.Now()

	sub := Subscription{Active: true, EndDate: now.Add(-time.Second), CredentialID: "c", InboundID: 1}
	assert.True(t, sub.IsExpiredAt(now))
	assert.False(t, sub.IsActiveAt(now))
	assert.True(t, sub.IsLinked())

	sub.EndDate = now.Add(time.Hour)
	assert.False(t, sub.IsExpiredAt(now))
	assert.True(t, sub.IsActiveAt(now))

	sub.Active = false
	assert.False(t, sub.IsExpiredAt(now))
	assert.False(t, (&Subscription{}).IsLinked())
}

func TestUser_HasReferrer(t *testing.T) {
	ref := int64(2)
	self := int64(1)

	assert.True(t, (&User{ID: 1, ReferrerID: &ref}).HasReferrer())
	assert.False(t, (&User{ID: 1, ReferrerID: &self}).HasReferrer())
	assert.False(t, (&User{ID: 1}).HasReferrer())
}
