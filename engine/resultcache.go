package engine

import (
	"time"

	"github.com/hupe1980/probmesh/cache"
	"github.com/hupe1980/probmesh/core"
	"github.com/hupe1980/probmesh/metrics"
	"github.com/hupe1980/probmesh/pipeline"
)

// resultCache bridges the pipeline's cache hook to the evaluation cache.
// Only evaluators implementing core.CacheableEvaluator with Cacheable()
// true participate; everything else bypasses the cache entirely. Keys
// combine the evaluator identity, a fingerprint of the declared inputs'
// effective metadata at the call's context, and the (optionally quantized)
// input probability.
type resultCache struct {
	cache        *cache.Cache
	reader       cache.MetadataReader
	ttl          time.Duration
	quantizeStep float64
	metrics      *metrics.Metrics
}

var _ pipeline.ResultCache = (*resultCache)(nil)

func (rc *resultCache) key(ce core.CacheableEvaluator, probability float64, ec *core.Context) cache.Key {
	return cache.Key{
		Evaluator:   ce.Identity().Key(),
		Fingerprint: cache.Fingerprint(rc.reader, ec.ID, ce.CacheInputs()),
		Probability: cache.QuantizeProbability(probability, rc.quantizeStep),
	}
}

// Fetch serves a previously stored output for the evaluator, or reports a
// miss. Non-cacheable evaluators always miss without touching the cache.
func (rc *resultCache) Fetch(ev core.Evaluator, probability float64, ec *core.Context) (float64, bool) {
	ce, ok := ev.(core.CacheableEvaluator)
	if !ok || !ce.Cacheable() || ec == nil {
		return 0, false
	}

	res, hit := rc.cache.Get(rc.key(ce, probability, ec))
	if rc.metrics != nil {
		if hit {
			rc.metrics.CacheHits.Inc()
		} else {
			rc.metrics.CacheMisses.Inc()
		}
	}
	if !hit {
		return 0, false
	}

	return res.OutputProbability, true
}

// Store records a successful output. The pipeline only calls Store after a
// fully successful run, so failed evaluations are never served from cache.
func (rc *resultCache) Store(ev core.Evaluator, probability, output float64, ec *core.Context) {
	ce, ok := ev.(core.CacheableEvaluator)
	if !ok || !ce.Cacheable() || ec == nil {
		return
	}

	rc.cache.Put(rc.key(ce, probability, ec), cache.CachedResult{OutputProbability: output}, rc.ttl)
}
