// Copyright PolyMD Authors, 2026. All rights reserved.

package verify

import (
	"strings"

	"github.com/apaudelx/PolyMD/pkg/types"
)

// Normalize converts a record's value to its property's canonical unit
// using the configured conversion table. Conversion happens here, not
// in the verifier model: the model compares already-canonical numbers
// against the article text and never performs unit arithmetic on the
// extracted value.
//
// The returned bool reports whether the record's unit was recognized.
// A record with an unrecognized unit is returned untouched; the
// verification prompt carries its original unit so the verifier can
// still judge it.
func Normalize(units map[types.Property]types.PropertyUnits, rec types.PropertyRecord) (types.PropertyRecord, bool) {
	pu, ok := units[rec.Property]
	if !ok {
		return rec, false
	}

	unit := strings.TrimSpace(rec.Unit)
	if unit == pu.Canonical {
		return rec, true
	}
	for _, conv := range pu.Conversions {
		if unit == conv.Source {
			rec.Value = rec.Value*conv.Factor + conv.Offset
			rec.Unit = pu.Canonical
			return rec, true
		}
	}
	return rec, false
}

// Denormalize inverts Normalize: it converts a canonical-unit value
// back to the given source unit. The record's unit must already be the
// property's canonical unit and sourceUnit must appear in the
// conversion table; otherwise the record is returned untouched and the
// bool is false.
func Denormalize(units map[types.Property]types.PropertyUnits, rec types.PropertyRecord, sourceUnit string) (types.PropertyRecord, bool) {
	pu, ok := units[rec.Property]
	if !ok || strings.TrimSpace(rec.Unit) != pu.Canonical {
		return rec, false
	}
	for _, conv := range pu.Conversions {
		if sourceUnit == conv.Source {
			rec.Value = (rec.Value - conv.Offset) / conv.Factor
			rec.Unit = conv.Source
			return rec, true
		}
	}
	return rec, false
}
