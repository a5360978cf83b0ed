package rawrguild

import (
	"github.com/Keksclan/rawrguild/breaker"
	"github.com/Keksclan/rawrguild/cache"
	"github.com/Keksclan/rawrguild/rpc"
)

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Health is a point-in-time view of the resilience layer.
type Health struct {
	Status   string
	Breakers []breaker.Stats
	Cache    cache.Stats
	InFlight int
}

// Health reports degraded while any breaker is not Closed.
func (s *Server) Health() Health {
	h := Health{
		Status:   StatusHealthy,
		Breakers: s.breakers.Stats(),
		InFlight: s.flights.InFlight(),
	}
	if !s.breakers.Healthy() {
		h.Status = StatusDegraded
	}
	h.Cache, _ = cache.StatsOf(s.store)
	return h
}

// Response converts h to its rawr.Health wire form.
func (h Health) Response() *rpc.HealthResponse {
	out := &rpc.HealthResponse{
		Status:   h.Status,
		Breakers: make([]rpc.BreakerStatus, 0, len(h.Breakers)),
		Cache: rpc.CacheStatus{
			Hits:      h.Cache.Hits,
			Misses:    h.Cache.Misses,
			Sets:      h.Cache.Sets,
			Deletes:   h.Cache.Deletes,
			Evictions: h.Cache.Evictions,
			Size:      h.Cache.Size,
			MaxSize:   h.Cache.MaxSize,
			HitRate:   h.Cache.HitRate,
		},
		InFlight: h.InFlight,
	}
	for _, b := range h.Breakers {
		st := rpc.BreakerStatus{
			Name:      b.Name,
			State:     b.State.String(),
			Failures:  b.Failures,
			Successes: b.Successes,
		}
		if !b.LastFailureAt.IsZero() {
			st.LastFailureUnixMs = b.LastFailureAt.UnixMilli()
		}
		out.Breakers = append(out.Breakers, st)
	}
	return out
}
