package classifier

import (
	"math"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"example.com/portaria/internal/models"
	"example.com/portaria/internal/textparse"
)

const (
	exactWeight   = 2.0
	prefixWeight  = 1.2
	phraseWeight  = 2.2
	contextWeight = 0.7
	minPrefixLen  = 4

	unitBonus       = 0.8
	digitRunBonus   = 0.6
	vehiclePenalty  = 1.0
	minDigitRun     = 5
	strongParcel    = 1.8
	ambiguityGap    = 0.9
	minConfidence   = 0.60
	reviewThreshold = 0.45
)

// Reasons recorded in Classification.Motivo.
const (
	ReasonPlateIdentity       = "placa_identidade"
	ReasonModelStatusIdentity = "modelo_status_identidade"
	ReasonParcelLabel         = "rotulo_encomenda"
	ReasonOrientationLabel    = "rotulo_orientacao"
	ReasonObservationLabel    = "rotulo_observacao"
	ReasonScore               = "pontuacao"
	ReasonStrongParcel        = "encomenda_forte"
	ReasonParcelBase          = "base_encomenda"
	ReasonAccessBase          = "base_acesso"
	ReasonAmbiguous           = "ambiguo"
	ReasonLowConfidence       = "confianca_baixa"
	ReasonFallback            = "padrao_acesso"
)

var (
	digitRun         = regexp.MustCompile(`\d{5,}`)
	orientationLabel = regexp.MustCompile(`\bORIENTAC(?:AO|OES)\s*:`)
	observationLabel = regexp.MustCompile(`\b(?:OBSERVAC(?:AO|OES)|OBS)\s*[:.]`)
)

// Classifier routes operator lines to a destination.
type Classifier struct {
	rules *RuleSet
}

// New creates a classifier. A nil rule set selects DefaultRules.
func New(rules *RuleSet) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify decides where text goes. parsed is the access extraction of the
// same line (nil to let Classify run it); base is the destination of the
// window the operator typed in, or "" when unknown.
func (c *Classifier) Classify(text string, parsed *textparse.Parsed, base models.Destination) models.Classification {
	if parsed == nil {
		p := textparse.Extract(text)
		parsed = &p
	}

	normalized := textparse.Normalize(text)
	tokens := textparse.Tokenize(text)
	scores := c.scores(tokens, parsed)

	top, second := rank(scores)
	confidence := confidenceOf(scores[top], scores[second])
	ambiguous := scores[top]-scores[second] < ambiguityGap

	decision := models.Classification{
		Score:        round(scores[top]),
		Scores:       roundAll(scores),
		Confianca:    round(confidence),
		Ambiguo:      ambiguous,
		VersaoRegras: c.rules.Version,
	}
	decision.Destino, decision.Motivo = c.decide(normalized, tokens, parsed, base, scores, top, confidence, ambiguous)

	log.Debug().
		Str("destino", string(decision.Destino)).
		Str("motivo", decision.Motivo).
		Float64("confianca", decision.Confianca).
		Bool("ambiguo", decision.Ambiguo).
		Msg("Line classified")
	return decision
}

func (c *Classifier) decide(
	normalized string,
	tokens []string,
	parsed *textparse.Parsed,
	base models.Destination,
	scores map[models.Destination]float64,
	top models.Destination,
	confidence float64,
	ambiguous bool,
) (models.Destination, string) {
	hasModel := len(parsed.Modelos) > 0
	parcelStrong := scores[models.DestinationParcel] >= strongParcel

	switch {
	case parsed.Placa != "" && parsed.HasIdentity():
		return models.DestinationAccess, ReasonPlateIdentity
	case hasModel && parsed.StatusExplicit && parsed.HasIdentity():
		return models.DestinationAccess, ReasonModelStatusIdentity
	case textparse.HasLabels(normalized):
		return models.DestinationParcel, ReasonParcelLabel
	case orientationLabel.MatchString(normalized) || firstTokenIn(tokens, "ORIENTACAO", "ORIENTACOES"):
		return models.DestinationOrientation, ReasonOrientationLabel
	case observationLabel.MatchString(normalized) || firstTokenIn(tokens, "OBSERVACAO", "OBSERVACOES", "OBS"):
		return models.DestinationObservation, ReasonObservationLabel
	case confidence >= minConfidence && !ambiguous && !parcelStrong:
		return top, ReasonScore
	case parcelStrong:
		return models.DestinationParcel, ReasonStrongParcel
	case base == models.DestinationParcel:
		return models.DestinationParcel, ReasonParcelBase
	case base == models.DestinationAccess:
		return models.DestinationAccess, ReasonAccessBase
	case ambiguous:
		return models.DestinationReview, ReasonAmbiguous
	case confidence < reviewThreshold:
		return models.DestinationReview, ReasonLowConfidence
	default:
		return models.DestinationAccess, ReasonFallback
	}
}

func (c *Classifier) scores(tokens []string, parsed *textparse.Parsed) map[models.Destination]float64 {
	padded := " " + strings.Join(tokens, " ") + " "
	scores := make(map[models.Destination]float64, len(scoredDestinations))
	for _, dest := range scoredDestinations {
		if dr, ok := c.rules.rules[dest]; ok {
			scores[dest] = dr.score(tokens, padded)
		} else {
			scores[dest] = 0
		}
	}

	parcel := scores[models.DestinationParcel]
	if parsed.Bloco != "" && parsed.Apartamento != "" {
		parcel += unitBonus
	}
	if digitRun.MatchString(padded) {
		parcel += digitRunBonus
	}
	if parsed.Placa != "" || len(parsed.Modelos) > 0 {
		parcel -= vehiclePenalty
	}
	scores[models.DestinationParcel] = math.Max(parcel, 0)
	return scores
}

// rank returns the best and second-best destinations; ties keep scoredDestinations order.
func rank(scores map[models.Destination]float64) (top, second models.Destination) {
	top, second = scoredDestinations[0], scoredDestinations[1]
	if scores[second] > scores[top] {
		top, second = second, top
	}
	for _, d := range scoredDestinations[2:] {
		switch {
		case scores[d] > scores[top]:
			top, second = d, top
		case scores[d] > scores[second]:
			second = d
		}
	}
	return top, second
}

func confidenceOf(top, second float64) float64 {
	if top <= 0 {
		return 0
	}
	return math.Min(1, (top+0.1)/(top+second+0.2))
}

func firstTokenIn(tokens []string, words ...string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, w := range words {
		if tokens[0] == w {
			return true
		}
	}
	return false
}

func round(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func roundAll(scores map[models.Destination]float64) map[models.Destination]float64 {
	out := make(map[models.Destination]float64, len(scores))
	for k, v := range scores {
		out[k] = round(v)
	}
	return out
}
