package adapter

import (
	"strings"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

var precisionCodes = map[string]vectorstore.Precision{
	"binary":  vectorstore.PrecisionBinary,
	"int8d":   vectorstore.PrecisionInt8D,
	"int16d":  vectorstore.PrecisionInt16D,
	"float16": vectorstore.PrecisionFloat16,
	"float32": vectorstore.PrecisionFloat32,
}

// MapPrecision converts a UI precision string to the backend code.
// Unrecognized values fall back to float16.
func MapPrecision(ui string) vectorstore.Precision {
	if p, ok := precisionCodes[strings.ToLower(strings.TrimSpace(ui))]; ok {
		return p
	}
	return vectorstore.PrecisionFloat16
}

// SpaceTypeLabel is the display name of a space type.
func SpaceTypeLabel(s vectorstore.SpaceType) string {
	switch s {
	case vectorstore.SpaceCosine:
		return "Cosine"
	case vectorstore.SpaceL2:
		return "Euclidean"
	case vectorstore.SpaceIP:
		return "Inner Product"
	default:
		return "Unknown"
	}
}
