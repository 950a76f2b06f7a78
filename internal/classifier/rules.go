package classifier

import (
	"strings"

	"github.com/armon/go-radix"

	"example.com/portaria/internal/models"
	"example.com/portaria/internal/textparse"
)

// RulesVersion identifies the built-in rule set; it is stored in every decision.
const RulesVersion = "regras-2026.10"

// RuleDef lists the evidence for one destination. Keywords are single words
// or multi-word phrases; context phrases are weaker hints.
type RuleDef struct {
	Keywords []string
	Context  []string
}

// destinationRules is the compiled form of a RuleDef.
type destinationRules struct {
	words   *radix.Tree
	phrases []string
	context []string
}

// RuleSet is an immutable, versioned set of compiled rules.
type RuleSet struct {
	Version string
	rules   map[models.Destination]*destinationRules
}

// scoredDestinations are the destinations that take part in scoring, in tie-break order.
var scoredDestinations = []models.Destination{
	models.DestinationParcel,
	models.DestinationOrientation,
	models.DestinationObservation,
}

// NewRuleSet compiles defs. Words are normalized the same way operator lines are.
func NewRuleSet(version string, defs map[models.Destination]RuleDef) *RuleSet {
	rs := &RuleSet{Version: version, rules: map[models.Destination]*destinationRules{}}
	for dest, def := range defs {
		dr := &destinationRules{words: radix.New()}
		for _, kw := range def.Keywords {
			tokens := textparse.Tokenize(kw)
			switch len(tokens) {
			case 0:
			case 1:
				dr.words.Insert(tokens[0], dest)
			default:
				dr.phrases = append(dr.phrases, strings.Join(tokens, " "))
			}
		}
		for _, c := range def.Context {
			if tokens := textparse.Tokenize(c); len(tokens) > 0 {
				dr.context = append(dr.context, strings.Join(tokens, " "))
			}
		}
		rs.rules[dest] = dr
	}
	return rs
}

// DefaultRules returns the built-in rule set.
func DefaultRules() *RuleSet {
	return NewRuleSet(RulesVersion, map[models.Destination]RuleDef{
		models.DestinationParcel: {
			Keywords: []string{
				"encomenda", "pacote", "caixa", "envelope", "entrega", "entregador", "correios",
				"sedex", "amazon", "shopee", "shein", "mercadolivre", "aliexpress", "magalu",
				"rastreio", "sacola", "loja", "identificacao",
				"mercado livre", "sem contato", "magazine luiza", "total express",
			},
			Context: []string{"deixou na portaria", "para retirar", "retirar na portaria", "avisado", "chegou para"},
		},
		models.DestinationOrientation: {
			Keywords: []string{
				"orientacao", "orientacoes", "orientar", "orientado", "proibido", "permitido",
				"autorizado", "autorizacao", "procedimento", "instrucao", "regra",
				"nao liberar", "nao permitir", "nao deixar", "liberar entrada",
			},
			Context: []string{"a partir de", "favor", "deve", "devem", "sempre que", "ate segunda ordem"},
		},
		models.DestinationObservation: {
			Keywords: []string{
				"observacao", "obs", "ocorrencia", "barulho", "vazamento", "quebrado", "quebrada",
				"lampada", "reclamacao", "problema", "manutencao", "danificado",
				"portao quebrado", "ficou registrado",
			},
			Context: []string{"anotado", "informou", "relatou", "reclamou", "verificar"},
		},
	})
}

// score sums the keyword and context evidence of one destination.
func (dr *destinationRules) score(tokens []string, padded string) float64 {
	var total float64
	for _, tok := range tokens {
		if _, ok := dr.words.Get(tok); ok {
			total += exactWeight
			continue
		}
		if len(tok) >= minPrefixLen && dr.prefixHit(tok) {
			total += prefixWeight
		}
	}
	for _, phrase := range dr.phrases {
		if strings.Contains(padded, " "+phrase+" ") {
			total += phraseWeight
		}
	}
	for _, phrase := range dr.context {
		if strings.Contains(padded, " "+phrase+" ") {
			total += contextWeight
		}
	}
	return total
}

// prefixHit matches truncated words (ENCOM for ENCOMENDA) and inflected ones
// (ENCOMENDAS for ENCOMENDA).
func (dr *destinationRules) prefixHit(tok string) bool {
	hit := false
	dr.words.WalkPrefix(tok, func(string, interface{}) bool {
		hit = true
		return true
	})
	if hit {
		return true
	}
	if kw, _, ok := dr.words.LongestPrefix(tok); ok && len(kw) >= minPrefixLen {
		return true
	}
	return false
}
