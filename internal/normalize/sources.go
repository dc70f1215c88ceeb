package normalize

import (
	"github.com/dgnsrekt/gexdash/internal/api"
	"github.com/dgnsrekt/gexdash/internal/viewmodel"
)

// Volume profile field aliases.
var (
	vpValKeys = []string{"val", "value_area_low"}
	vpPocKeys = []string{"poc", "point_of_control"}
	vpVahKeys = []string{"vah", "value_area_high"}
)

// quotePriceKeys are the alternate names for the live price.
var quotePriceKeys = []string{"price", "last", "close", "current_price"}

// Expirations requires {ok, data: {expirations: [...]}}. Non-string entries
// are skipped.
func Expirations(raw []byte) ([]string, error) {
	env := parseEnvelope(raw)
	if !env.HasOK || !env.OK {
		return nil, &api.SchemaError{Source: api.SourceExpirations, Path: "ok"}
	}
	v, ok := lookup(env.Data, []string{"expirations"})
	if !env.HasData || !ok {
		return nil, &api.SchemaError{Source: api.SourceExpirations, Path: "data.expirations"}
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, &api.SchemaError{Source: api.SourceExpirations, Path: "data.expirations"}
	}

	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// VolumeProfile returns the value-area landmarks and whether they should be
// applied. Anything but {ok: true, data: {...}} leaves prior values alone.
func VolumeProfile(raw []byte) (viewmodel.VolumeProfile, bool) {
	env := parseEnvelope(raw)
	if !env.OK {
		return viewmodel.VolumeProfile{}, false
	}
	data, ok := env.Data.(map[string]any)
	if !ok {
		return viewmodel.VolumeProfile{}, false
	}
	return viewmodel.VolumeProfile{
		VAL: fieldOrZero(data, vpValKeys),
		POC: fieldOrZero(data, vpPocKeys),
		VAH: fieldOrZero(data, vpVahKeys),
	}, true
}

// Quote extracts the live price. A missing or non-positive price is a
// SchemaError so pollers can skip the tick.
func Quote(raw []byte) (float64, error) {
	data, err := mandatory(api.SourceQuote, raw)
	if err != nil {
		return 0, err
	}
	for _, k := range quotePriceKeys {
		v, ok := data[k]
		if !ok || v == nil {
			continue
		}
		p, ok := number(v)
		if !ok {
			p, ok = numericString(v)
		}
		if ok && p > 0 {
			return p, nil
		}
	}
	return 0, &api.SchemaError{Source: api.SourceQuote, Path: "data.price"}
}
