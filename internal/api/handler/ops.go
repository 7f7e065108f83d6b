// Package handler provides HTTP handlers for the haulplan API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/haulplan/haulplan/internal/api/models"
	"github.com/haulplan/haulplan/internal/api/response"
	"github.com/haulplan/haulplan/internal/provider/resilience"
)

const probeTimeout = 2 * time.Second

// ProviderHealth reports the circuit state of upstream providers.
type ProviderHealth interface {
	GetAllHealth() []*resilience.Health
	Overall() resilience.Status
}

// Probe checks one dependency the service needs to take traffic.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsHandlerConfig holds configuration for OpsHandler.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string
	Providers ProviderHealth
	Probes    []Probe
	Now       func() time.Time
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	providers ProviderHealth
	probes    []Probe
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		providers: cfg.Providers,
		probes:    cfg.Probes,
		now:       cfg.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(h.now()),
		Version: h.version,
		Details: map[string]any{"buildTime": h.buildTime},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails when any probe fails;
// provider circuits do not affect readiness.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	failures := map[string]any{}
	for _, s := range h.runProbes(r.Context()) {
		if s.Detail != nil {
			failures[s.Name] = *s.Detail
		}
	}

	health := models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(h.now()),
		Version: h.version,
	}
	status := http.StatusOK
	if len(failures) > 0 {
		health.Status = models.HealthStatusFail
		health.Details = failures
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runProbes(r.Context())

	overall := models.HealthStatusOK
	for _, s := range subsystems {
		if s.Status != models.HealthStatusOK {
			overall = models.HealthStatusFail
		}
	}

	providers := []models.ProviderStatus{}
	if h.providers != nil {
		for _, p := range h.providers.GetAllHealth() {
			providers = append(providers, toProviderStatus(p))
		}
		if overall == models.HealthStatusOK {
			switch h.providers.Overall() {
			case resilience.StatusDown:
				overall = models.HealthStatusFail
			case resilience.StatusDegraded:
				overall = models.HealthStatusDegraded
			}
		}
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(h.now()),
		Subsystems: subsystems,
		Providers:  providers,
	})
}

func (h *OpsHandler) runProbes(ctx context.Context) []models.SubsystemStatus {
	out := make([]models.SubsystemStatus, 0, len(h.probes))
	for _, p := range h.probes {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := p.Check(pctx)
		cancel()

		s := models.SubsystemStatus{Name: p.Name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func toProviderStatus(h *resilience.Health) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:     h.Name,
		Status:       models.HealthStatusOK,
		CircuitState: h.CircuitState.String(),
	}
	switch {
	case h.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case h.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	if h.LastSuccessAt != nil {
		ts := models.Timestamp(*h.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if h.LastFailureAt != nil {
		ts := models.Timestamp(*h.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if h.LastError != "" {
		msg := h.LastError
		ps.Message = &msg
	}
	return ps
}
