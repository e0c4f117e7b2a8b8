package geo

import (
	"encoding/hex"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// engineGeometryHeaders are hex patterns found at characters 5-14 of an engine
// geometry value: 4 bytes of SRID, the WKB byte-order flag, then the start of
// the WKB type code. Engines that report Z variants still use these codes.
var engineGeometryHeaders = map[string]string{
	// big endian
	"0000010000": "geometry",
	"0000010100": "point",
	"0000010200": "linestring",
	"0000010300": "polygon",
	"0000010400": "multipoint",
	"0000010500": "multilinestring",
	"0000010600": "multipolygon",

	// little endian
	"0001000000": "geometry",
	"0001000001": "point",
	"0001000002": "linestring",
	"0001000003": "polygon",
	"0001000004": "multipoint",
	"0001000005": "multilinestring",
	"0001000006": "multipolygon",
}

// sridHeaderLen is the length of the SRID prefix in front of the WKB body.
const sridHeaderLen = 4

// EngineGeometryKind returns the geometry kind named by the header of raw, or
// "" when raw does not carry a recognizable SRID-prefixed WKB header.
func EngineGeometryKind(raw []byte) string {
	h := strings.ToUpper(hex.EncodeToString(raw))
	if len(h) < 14 {
		return ""
	}
	return engineGeometryHeaders[h[4:14]]
}

// HasEngineGeometryHeader reports whether raw looks like an SRID-prefixed WKB
// geometry value.
func HasEngineGeometryHeader(raw []byte) bool {
	return EngineGeometryKind(raw) != ""
}

// DecodeEngineGeometry decodes an SRID-prefixed WKB value. The second result
// is false when the header does not match or the body does not decode.
func DecodeEngineGeometry(raw []byte) (orb.Geometry, bool) {
	if !HasEngineGeometryHeader(raw) || len(raw) <= sridHeaderLen {
		return nil, false
	}
	geom, err := wkb.Unmarshal(raw[sridHeaderLen:])
	if err != nil || geom == nil {
		return nil, false
	}
	return geom, true
}
