package shard

import (
	"strings"

	"github.com/jhoicas/kho-shard/internal/domain"
	"github.com/jhoicas/kho-shard/pkg/config"
	"github.com/rs/zerolog"
)

// Motivos de caída al master.
const (
	FallbackRegionUnmapped  = "region_unmapped"
	FallbackUnknownShardKey = "unknown_shard_key"
)

// RouteHint datos de ruteo que trae la petición.
type RouteHint struct {
	ShardKey   string
	RegionCode string
	Global     bool
}

// NormalizeRegion forma canónica de un código de región (sin espacios, en mayúsculas).
func NormalizeRegion(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FallbackRecorder registra cada caída al master.
type FallbackRecorder interface {
	RoutingFallback(reason string)
}

type nopRecorder struct{}

func (nopRecorder) RoutingFallback(string) {}

// Router resuelve un RouteHint a una conexión del registro. Es función pura de la entrada y
// de la configuración estática; solo loguea y cuenta caídas.
type Router struct {
	reg     *Registry
	regions map[string]string
	log     zerolog.Logger
	metrics FallbackRecorder
}

// NewRouter regions: código de región -> clave de shard. metrics puede ser nil.
func NewRouter(reg *Registry, regions map[string]string, log zerolog.Logger, metrics FallbackRecorder) *Router {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	copied := make(map[string]string, len(regions))
	for k, v := range regions {
		copied[NormalizeRegion(k)] = v
	}
	return &Router{reg: reg, regions: copied, log: log, metrics: metrics}
}

// Resolve elige la conexión:
//   - Global o sin datos de región -> master.
//   - ShardKey conocido -> ese shard; desconocido -> se intenta por región.
//   - RegionCode mapeado -> su shard; sin mapear -> master con warning.
//
// Si hace falta el master y no hay master configurado devuelve *domain.RoutingError.
func (r *Router) Resolve(h RouteHint) (*Connection, error) {
	h.RegionCode = NormalizeRegion(h.RegionCode)
	if h.Global || (h.ShardKey == "" && h.RegionCode == "") {
		return r.master(h, "petición global sin master configurado")
	}

	if h.ShardKey != "" {
		if h.ShardKey == config.MasterKey {
			return r.master(h, "master no configurado")
		}
		if c, ok := r.reg.Shard(h.ShardKey); ok {
			return c, nil
		}
		r.log.Warn().Str("shard_key", h.ShardKey).Str("region", h.RegionCode).Msg("clave de shard desconocida, se resuelve por región")
		if h.RegionCode == "" {
			r.metrics.RoutingFallback(FallbackUnknownShardKey)
			return r.master(h, "clave de shard desconocida y sin master")
		}
	}

	if key, ok := r.regions[h.RegionCode]; ok {
		if c, ok := r.reg.Shard(key); ok {
			return c, nil
		}
	}
	r.log.Warn().Str("region", h.RegionCode).Msg("región sin shard, se usa master")
	r.metrics.RoutingFallback(FallbackRegionUnmapped)
	return r.master(h, "región sin shard y sin master")
}

// HomeOf clave de la conexión dueña de una región; master si la región no está mapeada.
func (r *Router) HomeOf(regionCode string) string {
	if key, ok := r.regions[NormalizeRegion(regionCode)]; ok {
		if _, ok := r.reg.Shard(key); ok {
			return key
		}
	}
	return config.MasterKey
}

func (r *Router) master(h RouteHint, reason string) (*Connection, error) {
	if c, ok := r.reg.Master(); ok {
		return c, nil
	}
	return nil, &domain.RoutingError{ShardKey: h.ShardKey, RegionCode: h.RegionCode, Reason: reason}
}
