package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownEntryType is returned when no codec is registered for an
// entry type.
var ErrUnknownEntryType = errors.New("cache: no codec registered for entry type")

// Codec serializes payloads for one entry type. The manager stores bytes,
// never live objects, so payload typing is delegated here rather than to
// runtime reflection.
type Codec interface {
	Marshal(payload any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// JSONCodec is the default codec: payloads round-trip through encoding/json
// and decode to the generic JSON shapes (map[string]any, []any, float64, …).
type JSONCodec struct{}

func (JSONCodec) Marshal(payload any) ([]byte, error) { return json.Marshal(payload) }

func (JSONCodec) Unmarshal(data []byte) (any, error) {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// codecRegistry maps entry types to codecs. Sub-systems register their own
// codecs at init time, mirroring how simulator extensions self-register.
type codecRegistry struct {
	mu     sync.RWMutex
	codecs map[EntryType]Codec
}

func newCodecRegistry() *codecRegistry {
	r := &codecRegistry{codecs: make(map[EntryType]Codec)}
	for _, t := range []EntryType{
		EntryWorkforceState,
		EntryAggregatedMetric,
		EntryComputationResult,
		EntryIntermediateCalculation,
		EntryEventSummary,
	} {
		r.codecs[t] = JSONCodec{}
	}
	return r
}

func (r *codecRegistry) lookup(t EntryType) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntryType, t)
	}
	return c, nil
}

func (r *codecRegistry) register(t EntryType, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[t] = c
}
