package cache

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/probmesh/core"
)

// MetadataReader is the slice of the tracker the fingerprint needs: the
// effective (inheritance-aware) view of a context's metadata.
type MetadataReader interface {
	EffectiveMetadata(id, key string) (core.Value, bool)
}

// Fingerprint computes a deterministic digest of the effective values of the
// declared input keys at the given context. Keys are visited in sorted order
// and absent keys are encoded distinctly from any present value, so two
// contexts fingerprint equal exactly when every declared key resolves to the
// same effective value.
//
// Cache correctness rests on the declared keys covering everything the
// evaluator reads; evaluators reading beyond their declaration must opt out
// of caching (see core.CacheableEvaluator).
func Fingerprint(reader MetadataReader, contextID string, keys []string) uint64 {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	h := xxhash.New()
	for _, key := range sorted {
		_, _ = h.WriteString(key)
		v, ok := reader.EffectiveMetadata(contextID, key)
		if !ok {
			_, _ = h.Write([]byte{0xff})
			continue
		}
		hashValue(h, v)
	}

	return h.Sum64()
}

// hashValue appends a kind discriminator plus a canonical encoding of the
// value payload.
func hashValue(h *xxhash.Digest, v core.Value) {
	_, _ = h.Write([]byte{byte(v.Kind())})

	switch val := v.(type) {
	case core.Float:
		hashFloat(h, float64(val))
	case core.Int:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(val))
		_, _ = h.Write(buf[:])
	case core.Bool:
		if val {
			_, _ = h.Write([]byte{1})
		} else {
			_, _ = h.Write([]byte{0})
		}
	case core.String:
		_, _ = h.WriteString(string(val))
	case core.Name:
		_, _ = h.WriteString(string(val))
	case core.Vec3:
		hashFloat(h, val.X)
		hashFloat(h, val.Y)
		hashFloat(h, val.Z)
	case core.Rotation:
		hashFloat(h, val.Pitch)
		hashFloat(h, val.Yaw)
		hashFloat(h, val.Roll)
	case core.Transform:
		hashFloat(h, val.Translation.X)
		hashFloat(h, val.Translation.Y)
		hashFloat(h, val.Translation.Z)
		hashFloat(h, val.Rotation.Pitch)
		hashFloat(h, val.Rotation.Yaw)
		hashFloat(h, val.Rotation.Roll)
		hashFloat(h, val.Scale.X)
		hashFloat(h, val.Scale.Y)
		hashFloat(h, val.Scale.Z)
	case core.Blob:
		// Blobs have no canonical encoding; the tag plus the formatted
		// payload is deterministic within a process. Evaluators depending
		// on blob internals beyond this should opt out of caching.
		_, _ = h.WriteString(val.TypeTag)
		_, _ = h.WriteString(fmt.Sprintf("%v", val.Payload))
	}
}

func hashFloat(h *xxhash.Digest, f float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	_, _ = h.Write(buf[:])
}

// QuantizeProbability buckets p to the nearest multiple of step for cache
// keying. A non-positive step returns p unchanged (exact-match keying).
func QuantizeProbability(p, step float64) float64 {
	if step <= 0 {
		return p
	}
	return math.Round(p/step) * step
}
