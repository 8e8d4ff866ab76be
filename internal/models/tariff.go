package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// TariffTrial пробный тариф, доступен один раз за всю историю пользователя.
	TariffTrial = "trial"
	// TariffTestMinute служебный тариф на одну минуту, только для выдачи админом.
	TariffTestMinute = "test_1min"
)

// DefaultTrialDuration длительность пробного периода, если она не задана в конфиге.
const DefaultTrialDuration = 3 * 24 * time.Hour

// Tariff неизменяемое описание тарифного плана.
type Tariff struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Duration  time.Duration   `json:"duration"`
	AdminOnly bool            `json:"-"`
}

// IsTrial сообщает, что тариф пробный.
func (t Tariff) IsTrial() bool {
	return t.ID == TariffTrial
}

// Purchasable сообщает, можно ли оформить по тарифу заявку на оплату.
func (t Tariff) Purchasable() bool {
	return !t.IsTrial() && !t.AdminOnly
}

// Catalog справочник тарифов по ID.
type Catalog map[string]Tariff

const day = 24 * time.Hour

// NewCatalog возвращает каталог тарифов с заданной длительностью пробного периода.
func NewCatalog(trialDuration time.Duration) Catalog {
	if trialDuration <= 0 {
		trialDuration = DefaultTrialDuration
	}
	tariffs := []Tariff{
		{ID: TariffTrial, Name: "Пробный период", Price: decimal.Zero, Duration: trialDuration},
		{ID: "1_99", Name: "1 месяц", Price: decimal.NewFromInt(99), Duration: 30 * day},
		{ID: "2_179", Name: "2 месяца", Price: decimal.NewFromInt(179), Duration: 60 * day},
		{ID: "6_499", Name: "6 месяцев", Price: decimal.NewFromInt(499), Duration: 180 * day},
		{ID: "12_899", Name: "1 год", Price: decimal.NewFromInt(899), Duration: 365 * day},
		{ID: TariffTestMinute, Name: "Тест (1 минута)", Price: decimal.Zero, Duration: time.Minute, AdminOnly: true},
	}
	c := make(Catalog, len(tariffs))
	for _, t := range tariffs {
		c[t.ID] = t
	}
	return c
}

// Lookup возвращает тариф по ID или ErrUnknownTariff.
func (c Catalog) Lookup(id string) (Tariff, error) {
	t, ok := c[id]
	if !ok {
		return Tariff{}, fmt.Errorf("%w: %q", ErrUnknownTariff, id)
	}
	return t, nil
}

// Purchasable возвращает платные тарифы, упорядоченные по цене.
func (c Catalog) Purchasable() []Tariff {
	out := make([]Tariff, 0, len(c))
	for _, t := range c {
		if t.Purchasable() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out
}
