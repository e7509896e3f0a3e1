package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/thenexusengine/tne_adx/pkg/logger"
)

// Redis hash keys for catalog storage. Each hash field holds one
// JSON-encoded record.
const (
	redisDemandsHash       = "tne_adx:demands"
	redisSSPsHash          = "tne_adx:ssps"
	redisSSPPlacementsHash = "tne_adx:ssp_placements"
	redisDSPPlacementsHash = "tne_adx:dsp_placements"
)

// RedisClient is the subset of the redis wrapper the source needs.
type RedisClient interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// RedisSource loads catalog generations from Redis hashes. Hash iteration
// order is arbitrary, so every collection is sorted by id to keep generation
// order deterministic.
type RedisSource struct {
	redis RedisClient
}

// NewRedisSource creates a source over an established Redis client.
func NewRedisSource(rc RedisClient) *RedisSource {
	return &RedisSource{redis: rc}
}

// Name identifies the source in logs.
func (s *RedisSource) Name() string { return "redis" }

// Load reads all four hashes. An empty demands hash yields nil demands so a
// synthetically bootstrapped demand set is not wiped by a Redis deployment
// that only manages placements.
func (s *RedisSource) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	demands, err := loadHash[Demand](ctx, s.redis, redisDemandsHash)
	if err != nil {
		return Snapshot{}, err
	}
	sort.Slice(demands, func(i, j int) bool { return demands[i].ID < demands[j].ID })
	if len(demands) > 0 {
		snap.Demands = demands
	}

	ssps, err := loadHash[SSP](ctx, s.redis, redisSSPsHash)
	if err != nil {
		return Snapshot{}, err
	}
	sort.Slice(ssps, func(i, j int) bool { return ssps[i].ID < ssps[j].ID })
	snap.SSPs = ssps

	sspPl, err := loadHash[SSPPlacement](ctx, s.redis, redisSSPPlacementsHash)
	if err != nil {
		return Snapshot{}, err
	}
	sort.Slice(sspPl, func(i, j int) bool {
		if sspPl[i].SSPID != sspPl[j].SSPID {
			return sspPl[i].SSPID < sspPl[j].SSPID
		}
		return sspPl[i].PlacementID < sspPl[j].PlacementID
	})
	snap.SSPPlacements = sspPl

	dspPl, err := loadHash[DSPPlacement](ctx, s.redis, redisDSPPlacementsHash)
	if err != nil {
		return Snapshot{}, err
	}
	sort.Slice(dspPl, func(i, j int) bool {
		if dspPl[i].DSPID != dspPl[j].DSPID {
			return dspPl[i].DSPID < dspPl[j].DSPID
		}
		return dspPl[i].TagID < dspPl[j].TagID
	})
	snap.DSPPlacements = dspPl

	return snap, nil
}

func loadHash[T any](ctx context.Context, rc RedisClient, key string) ([]T, error) {
	fields, err := rc.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	out := make([]T, 0, len(fields))
	for field, raw := range fields {
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			logger.Catalog().Warn().Err(err).Str("key", key).Str("field", field).Msg("Skipping malformed catalog record")
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
