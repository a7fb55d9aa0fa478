package postgres

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"ostore/internal/logger"
)

func TestNewMetricsRegistersAllCollectors(t *testing.T) {
	e := &Engine{logger: logger.Default()}
	m := NewMetrics(e)

	// Registration only records the collector set against reg; it never
	// invokes Collect (which would reach into e's nil pool), so this
	// alone confirms all seven collectors were built with distinct names.
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	e := &Engine{logger: logger.Default()}
	m1 := NewMetrics(e)
	m2 := NewMetrics(e)

	reg := prometheus.NewRegistry()
	m1.MustRegister(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	m2.MustRegister(reg)
}
