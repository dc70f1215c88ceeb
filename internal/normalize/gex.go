package normalize

import (
	"github.com/dgnsrekt/gexdash/internal/api"
	"github.com/dgnsrekt/gexdash/internal/viewmodel"
)

// GEX levels field aliases, most preferred first.
var (
	levelPriceKeys    = []string{"current_price", "spot", "price"}
	levelCallWallKeys = []string{"call_wall", "callWall"}
	levelPutWallKeys  = []string{"put_wall", "putWall"}
	levelFlipKeys     = []string{"gamma_flip", "gammaFlip", "zero_gamma"}
	levelTotalKeys    = []string{"total_gex", "totalGex", "net_gex"}
)

// strikePaths lists where the per-strike array may live inside data. The
// empty path means data is itself the array.
var strikePaths = [][]string{
	{"strikes"},
	{"gex_by_strike"},
	{},
}

var (
	strikeCallGexKeys = []string{"call_gex", "callGex"}
	strikePutGexKeys  = []string{"put_gex", "putGex"}
	strikeNetGexKeys  = []string{"net_gex", "netGex"}
	strikeCallOIKeys  = []string{"call_oi", "callOI", "call_open_interest"}
	strikePutOIKeys   = []string{"put_oi", "putOI", "put_open_interest"}
)

// maxPainKeys are the alternate names for the max pain strike.
var maxPainKeys = []string{"max_pain_price", "max_pain", "maxPain"}

// GexLevels normalizes the mandatory levels payload.
func GexLevels(raw []byte) (viewmodel.Levels, error) {
	data, err := mandatory(api.SourceGexLevels, raw)
	if err != nil {
		return viewmodel.Levels{}, err
	}
	return viewmodel.Levels{
		CurrentPrice: fieldOrZero(data, levelPriceKeys),
		CallWall:     fieldOrZero(data, levelCallWallKeys),
		PutWall:      fieldOrZero(data, levelPutWallKeys),
		GammaFlip:    fieldOrZero(data, levelFlipKeys),
		TotalGex:     fieldOrZero(data, levelTotalKeys),
	}, nil
}

// GexByStrike normalizes the mandatory per-strike payload. Entries without a
// positive numeric strike are dropped; API order is preserved.
func GexByStrike(raw []byte) ([]viewmodel.GexStrike, error) {
	env := parseEnvelope(raw)
	if !env.HasOK || !env.OK {
		return nil, &api.SchemaError{Source: api.SourceGexByStrike, Path: "ok"}
	}
	if !env.HasData {
		return nil, &api.SchemaError{Source: api.SourceGexByStrike, Path: "data"}
	}

	var items []any
	for _, path := range strikePaths {
		v, ok := lookup(env.Data, path)
		if !ok {
			continue
		}
		if arr, ok := v.([]any); ok {
			items = arr
			break
		}
	}

	out := make([]viewmodel.GexStrike, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		strike, ok := number(obj["strike"])
		if !ok || strike <= 0 {
			continue
		}
		out = append(out, viewmodel.GexStrike{
			Strike:  strike,
			CallGex: fieldOrZero(obj, strikeCallGexKeys),
			PutGex:  fieldOrZero(obj, strikePutGexKeys),
			NetGex:  fieldOrZero(obj, strikeNetGexKeys),
			CallOI:  fieldOrZero(obj, strikeCallOIKeys),
			PutOI:   fieldOrZero(obj, strikePutOIKeys),
		})
	}
	return out, nil
}

// MaxPain normalizes the mandatory max pain payload.
func MaxPain(raw []byte) (float64, error) {
	data, err := mandatory(api.SourceMaxPain, raw)
	if err != nil {
		return 0, err
	}
	return fieldOrZero(data, maxPainKeys), nil
}
