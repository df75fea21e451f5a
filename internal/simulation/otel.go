package simulation

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/kkonteh97/AmmoCarExample/internal/simulation"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
