// Package install selects and installs the metrics backend named in the
// pipeline config.
package install

import (
	"fmt"
	"log"

	"ouvidoria/internal/config"
	"ouvidoria/internal/metrics"
	"ouvidoria/internal/metrics/datadog"
	"ouvidoria/internal/metrics/prompush"
)

// FromConfig installs the configured backend as the global metrics backend.
// An empty backend name leaves the no-op default in place.
func FromConfig(job string, cfg config.Metrics) error {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Backend {
	case "":
		return nil
	case "prompush":
		b, err = prompush.NewBackend(job, cfg.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.DogStatsDAddr,
			Namespace:  cfg.Namespace,
			GlobalTags: append([]string{"job:" + job}, cfg.Tags...),
		})
	default:
		return fmt.Errorf("metrics: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return err
	}
	metrics.SetBackend(b)
	log.Printf("metrics: backend=%s", cfg.Backend)
	return nil
}
