// Package metrics объявляет метрики Prometheus движка подписок.
// Метрики регистрируются в реестре по умолчанию и отдаются через /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Значения метки result.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

var (
	// Approvals количество подтверждений оплаты по результату.
	Approvals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rockvpn_approvals_total",
		Help: "Payment approvals by result.",
	}, []string{"result"})

	// Revocations количество отзывов подписок по причине и результату.
	Revocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rockvpn_revocations_total",
		Help: "Subscription revocations by reason and result.",
	}, []string{"reason", "result"})

	// Sweeps количество проходов фонового отзыва.
	Sweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rockvpn_sweeps_total",
		Help: "Expiry sweep cycles.",
	})

	// SweepExpired количество подписок, найденных истёкшими.
	SweepExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rockvpn_sweep_expired_total",
		Help: "Expired subscriptions found by the sweeper.",
	})

	// PanelRequestDuration длительность запросов к панели 3X-UI.
	PanelRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rockvpn_panel_request_duration_seconds",
		Help:    "Duration of 3X-UI panel requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// Result переводит ошибку в значение метки result.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
