package alerts

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"example.com/portaria/internal/models"
	"example.com/portaria/internal/textparse"
)

// ModelSimilarityThreshold is the minimum score for two MODELO values to
// name the same vehicle.
const ModelSimilarityThreshold = 85

// Scorer rates the similarity of two normalized strings from 0 to 100.
type Scorer func(a, b string) int

// WeightedRatio is the default Scorer. It takes the best of the plain
// indel ratio, the ratio over sorted tokens and a token-subset match, each
// discounted the way the looser comparisons deserve.
func WeightedRatio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	best := ratio(a, b)
	if sorted := int(float64(ratio(sortTokens(a), sortTokens(b))) * 0.95); sorted > best {
		best = sorted
	}
	if tokenSubset(a, b) && best < 90 {
		best = 90
	}
	return best
}

// ratio is 100 * (1 - indel distance / total length). A substitution costs
// two edits, so ONIX and ONYX score 75 rather than 87.
func ratio(a, b string) int {
	if a == "" && b == "" {
		return 100
	}
	r := levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
	return int(r * 100)
}

func sortTokens(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// tokenSubset reports whether every token of the shorter string appears in
// the longer one ("COROLLA" vs "TOYOTA COROLLA").
func tokenSubset(a, b string) bool {
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}
	if len(ta) == len(tb) {
		return false
	}
	have := map[string]bool{}
	for _, t := range tb {
		have[t] = true
	}
	for _, t := range ta {
		if !have[t] {
			return false
		}
	}
	return true
}

// PrefixSimilar is the scorer-free fallback. Token reorderings and token
// subsets match as they do for WeightedRatio. Otherwise one model must be a
// prefix of the other, or both share their first three letters and differ
// in length by at most two.
func PrefixSimilar(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if sortTokens(a) == sortTokens(b) || tokenSubset(a, b) {
		return true
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) >= 3 && strings.HasPrefix(b, a) {
		return true
	}
	return len(a) >= 3 && a[:3] == b[:3] && len(b)-len(a) <= 2
}

func normalizeModel(s string) string {
	return strings.Join(strings.Fields(textparse.Normalize(s)), " ")
}

// vehicleMatcher decides whether two accesses describe the same vehicle.
type vehicleMatcher struct {
	scorer    Scorer
	threshold int
}

func (m vehicleMatcher) sameModel(a, b string) bool {
	a, b = normalizeModel(a), normalizeModel(b)
	if a == "" || b == "" || a == b {
		return true
	}
	if m.scorer == nil {
		return PrefixSimilar(a, b)
	}
	return m.scorer(a, b) >= m.threshold
}

// sameColor treats a missing color as a match and ignores the
// masculine/feminine ending (PRETO, PRETA).
func sameColor(a, b string) bool {
	a, b = strings.TrimSpace(textparse.Normalize(a)), strings.TrimSpace(textparse.Normalize(b))
	if a == "" || b == "" || a == b {
		return true
	}
	if len(a) != len(b) || len(a) < 4 {
		return false
	}
	last := len(a) - 1
	return a[:last] == b[:last] && strings.ContainsRune("OA", rune(a[last])) && strings.ContainsRune("OA", rune(b[last]))
}

// sameVehicle compares plates when both records carry one; otherwise it
// falls back to model similarity and color.
func (m vehicleMatcher) sameVehicle(a, b models.AccessEvent) bool {
	pa, pb := models.NormalizePlate(a.Placa), models.NormalizePlate(b.Placa)
	if pa != "" && pb != "" {
		return pa == pb
	}
	return m.sameModel(a.Modelo, b.Modelo) && sameColor(a.Cor, b.Cor)
}
