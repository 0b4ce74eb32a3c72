package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	collectorsMu sync.Mutex
	collectors   = map[string]*fiberprometheus.FiberPrometheus{}
)

// InitMetrics returns the HTTP metrics collector for serviceName. Collectors
// register globally, so each service name is created once per process.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	collectorsMu.Lock()
	defer collectorsMu.Unlock()
	if prom, ok := collectors[serviceName]; ok {
		return prom
	}
	prom := fiberprometheus.New(serviceName)
	collectors[serviceName] = prom
	return prom
}

// MetricsMiddleware records request count, latency and in-flight requests.
// Health probes are excluded so scrapes reflect real traffic.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Path() {
		case "/health/live", "/health/ready", "/metrics":
			return c.Next()
		}
		return prom.Middleware(c)
	}
}
