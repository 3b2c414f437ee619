package marker

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/locationmarker/internal/marker"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
