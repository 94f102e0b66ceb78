package lipsync

// Rhubarb emits nine mouth shapes, A through H plus X for silence. The
// avatar model exposes ARKit-style viseme blendshapes, so each shape maps
// to the closest viseme target.
var defaultRhubarbMapping = map[string]string{
	"A": "viseme_aa", // open mouth, as in "father"
	"B": "viseme_PP", // closed lips, as in "p", "b", "m"
	"C": "viseme_E",  // relaxed open, as in "men"
	"D": "viseme_aa", // wide open, as in "aah"
	"E": "viseme_O",  // rounded, as in "off"
	"F": "viseme_FF", // teeth on lip, as in "f", "v"
	"G": "viseme_TH", // tongue visible, as in "th"
	"H": "viseme_DD", // tongue up, as in "l", "d"
	"X": "viseme_sil",
}

// Mapper translates Rhubarb mouth shape codes into blendshape names.
type Mapper struct {
	mapping map[string]string
}

// NewMapper builds a Mapper. Entries in overrides replace the default
// mapping per shape code; a nil or empty map keeps the defaults.
func NewMapper(overrides map[string]string) *Mapper {
	mapping := make(map[string]string, len(defaultRhubarbMapping))
	for code, name := range defaultRhubarbMapping {
		mapping[code] = name
	}
	for code, name := range overrides {
		mapping[code] = name
	}
	return &Mapper{mapping: mapping}
}

// Blendshape resolves a mouth shape code. Unknown codes fall back to the
// silence viseme so a bad cue never distorts the face.
func (m *Mapper) Blendshape(code string) string {
	if name, ok := m.mapping[code]; ok {
		return name
	}
	return "viseme_sil"
}

// Mapping returns a copy of the active code to blendshape table.
func (m *Mapper) Mapping() map[string]string {
	out := make(map[string]string, len(m.mapping))
	for code, name := range m.mapping {
		out[code] = name
	}
	return out
}

// Frame produces a single-shape frame with the given code fully engaged.
func (m *Mapper) Frame(timestamp float64, code string) BlendshapeFrame {
	return BlendshapeFrame{
		Timestamp:   timestamp,
		MouthShapes: map[string]float64{m.Blendshape(code): 1.0},
	}
}
