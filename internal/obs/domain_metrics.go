package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PriceLookupTotal counts unit-price computations by cache outcome.
	PriceLookupTotal *prometheus.CounterVec
	// CartQuoteTotal counts priced cart views by outcome.
	CartQuoteTotal *prometheus.CounterVec
	// CreditNoteTotal counts credit-note compositions by outcome.
	CreditNoteTotal *prometheus.CounterVec
	// SettingsCacheTotal counts configuration reads by cache outcome.
	SettingsCacheTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PriceLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_lookup_total",
			Help:      "Count of unit-price computations by cache outcome.",
		}, []string{"result"})
		CartQuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_quote_total",
			Help:      "Count of priced cart views by outcome.",
		}, []string{"result"})
		CreditNoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_note_total",
			Help:      "Count of credit-note compositions by outcome.",
		}, []string{"result"})
		SettingsCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_cache_total",
			Help:      "Count of configuration reads by cache outcome.",
		}, []string{"result"})

		mustRegisterCollector(reg, PriceLookupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PriceLookupTotal = v
			}
		})
		mustRegisterCollector(reg, CartQuoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartQuoteTotal = v
			}
		})
		mustRegisterCollector(reg, CreditNoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CreditNoteTotal = v
			}
		})
		mustRegisterCollector(reg, SettingsCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SettingsCacheTotal = v
			}
		})
	})
}

// ObservePriceLookup records one price computation outcome. Safe to call
// when metrics are disabled.
func ObservePriceLookup(result string) {
	if PriceLookupTotal != nil {
		PriceLookupTotal.WithLabelValues(result).Inc()
	}
}

// ObserveCartQuote records one priced cart view outcome.
func ObserveCartQuote(result string) {
	if CartQuoteTotal != nil {
		CartQuoteTotal.WithLabelValues(result).Inc()
	}
}

// ObserveCreditNote records one credit-note composition outcome.
func ObserveCreditNote(result string) {
	if CreditNoteTotal != nil {
		CreditNoteTotal.WithLabelValues(result).Inc()
	}
}

// ObserveSettingsRead records one configuration read outcome.
func ObserveSettingsRead(result string) {
	if SettingsCacheTotal != nil {
		SettingsCacheTotal.WithLabelValues(result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
