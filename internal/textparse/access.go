package textparse

import (
	"regexp"
	"runtime/debug"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog/log"

	"example.com/portaria/internal/models"
)

const (
	blockPrefixes = `BLOCO|BLCO|BLO|BLC|BL|B`
	aptPrefixes   = `APARTAMENTO|APART|APTO|APTA|APT|AP|A`
)

var (
	platePattern      = regexp.MustCompile(`^(?:[A-Z]{3}\d{4}|[A-Z]{3}\d[A-Z]\d{2})$`)
	plateTailPattern  = regexp.MustCompile(`^(?:\d{4}|\d[A-Z]\d{2})$`)
	blockJoined       = regexp.MustCompile(`^(?:` + blockPrefixes + `)(\d+[A-Z]?)$`)
	aptJoined         = regexp.MustCompile(`^(?:` + aptPrefixes + `)(\d+[A-Z]?)$`)
	blockAptJoined    = regexp.MustCompile(`^(?:` + blockPrefixes + `)(\d+)(?:` + aptPrefixes + `)(\d+[A-Z]?)$`)
	unitNumberPattern = regexp.MustCompile(`^\d+[A-Z]?$`)
	singleLetter      = regexp.MustCompile(`^[A-Z]$`)

	blockPrefixWords = set("BLOCO", "BLCO", "BLO", "BLC", "BL", "B")
	aptPrefixWords   = set("APARTAMENTO", "APART", "APTO", "APTA", "APT", "AP")
)

// Parsed holds the fields found in an access line. Any field may be empty.
type Parsed struct {
	Nome           string
	Sobrenome      string
	NomeRaw        string
	Bloco          string
	Apartamento    string
	Placa          string
	Modelos        []string
	Cor            string
	Status         string
	StatusExplicit bool
	SemTag         bool
	Tokens         []string
}

// Modelo joins the model candidates in the order they were typed.
func (p Parsed) Modelo() string {
	return strings.Join(p.Modelos, " ")
}

// HasIdentity reports whether the line names a person or a full unit.
func (p Parsed) HasIdentity() bool {
	return p.Nome != "" || (p.Bloco != "" && p.Apartamento != "")
}

// AccessEvent converts the parsed fields into an end-store record.
func (p Parsed) AccessEvent(entryID int, dataHora string) models.AccessEvent {
	status := p.Status
	if status == "" {
		status = models.StatusDesconhecido
	}
	return models.AccessEvent{
		EntryID:     entryID,
		Nome:        p.Nome,
		Sobrenome:   p.Sobrenome,
		Bloco:       p.Bloco,
		Apartamento: p.Apartamento,
		Placa:       p.Placa,
		Modelo:      p.Modelo(),
		Cor:         p.Cor,
		Status:      status,
		DataHora:    dataHora,
		SemTag:      models.Flag(p.SemTag),
	}
}

// parser walks the tokens of one line, marking each token once it is
// attributed to a field so later steps only see what is left.
type parser struct {
	tokens []string
	raw    []string
	used   []bool
}

func newParser(text string) *parser {
	tokens := Tokenize(text)
	raw := strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(raw) != len(tokens) {
		raw = tokens
	}
	return &parser{tokens: tokens, raw: raw, used: make([]bool, len(tokens))}
}

func (p *parser) free(i int) bool {
	return i >= 0 && i < len(p.tokens) && !p.used[i]
}

func (p *parser) take(i ...int) {
	for _, j := range i {
		p.used[j] = true
	}
}

// Extract parses an access line. It never fails: a line it cannot make
// sense of comes back with empty fields and STATUS DESCONHECIDO.
func Extract(text string) (out Parsed) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Str("text", text).Msg("Preprocessor panicked")
			out = Parsed{Status: models.StatusDesconhecido}
		}
	}()

	p := newParser(text)
	out.Tokens = p.tokens
	out.SemTag = p.semTag()
	out.Status, out.StatusExplicit = p.status()
	out.Bloco, out.Apartamento = p.unit()
	out.Placa = p.plate()
	out.Cor = p.color()
	out.Modelos = p.models(out.Placa != "" || out.Cor != "")
	out.Nome, out.Sobrenome, out.NomeRaw = p.name()
	return out
}

func (p *parser) semTag() bool {
	found := false
	for i, tok := range p.tokens {
		if tok == "SEMTAG" {
			p.take(i)
			found = true
		}
		if tok == "SEM" && i+1 < len(p.tokens) && p.tokens[i+1] == "TAG" {
			p.take(i, i+1)
			found = true
		}
	}
	return found
}

// status applies MORADOR > VISITANTE > PRESTADOR precedence regardless of
// where the words appear in the line.
func (p *parser) status() (string, bool) {
	found := map[string]bool{}
	for i, tok := range p.tokens {
		if !p.free(i) {
			continue
		}
		switch {
		case in(moradorWords, tok):
			found[models.StatusMorador] = true
			p.take(i)
		case in(visitanteWords, tok):
			found[models.StatusVisitante] = true
			p.take(i)
		case in(prestadorWords, tok):
			found[models.StatusPrestador] = true
			p.take(i)
			if p.free(i+1) && p.tokens[i+1] == "DE" && p.free(i+2) && strings.HasPrefix(p.tokens[i+2], "SERVIC") {
				p.take(i+1, i+2)
			} else if p.free(i+1) && strings.HasPrefix(p.tokens[i+1], "SERVIC") {
				p.take(i + 1)
			}
		}
	}
	for _, s := range []string{models.StatusMorador, models.StatusVisitante, models.StatusPrestador} {
		if found[s] {
			return s, true
		}
	}
	return models.StatusDesconhecido, false
}

// unit finds BLOCO and APARTAMENTO, joined (BL10, AP10, BL10AP10) or split
// (BL 10, BLOCO A, AP 10). A token such as BLC1234 reads as a block even
// though it is also shaped like a plate. The fully joined form wins wherever
// it appears; extra unit tokens after the first are consumed and ignored.
func (p *parser) unit() (bloco, apartamento string) {
	for i, tok := range p.tokens {
		if m := blockAptJoined.FindStringSubmatch(tok); m != nil {
			if bloco == "" {
				bloco, apartamento = m[1], m[2]
			}
			p.take(i)
		}
	}

	for i, tok := range p.tokens {
		if !p.free(i) {
			continue
		}
		if m := blockJoined.FindStringSubmatch(tok); m != nil {
			if bloco == "" {
				bloco = m[1]
			}
			p.take(i)
			continue
		}
		if m := aptJoined.FindStringSubmatch(tok); m != nil {
			if apartamento == "" {
				apartamento = m[1]
			}
			p.take(i)
			continue
		}
		if in(blockPrefixWords, tok) && p.free(i+1) {
			next := p.tokens[i+1]
			if unitNumberPattern.MatchString(next) || (tok != "B" && singleLetter.MatchString(next)) {
				if bloco == "" {
					bloco = next
				}
				p.take(i, i+1)
				continue
			}
		}
		if in(aptPrefixWords, tok) && p.free(i+1) {
			next := p.tokens[i+1]
			if unitNumberPattern.MatchString(next) {
				if apartamento == "" {
					apartamento = next
				}
				p.take(i, i+1)
			}
		}
	}
	return bloco, apartamento
}

func (p *parser) plate() string {
	for i, tok := range p.tokens {
		if !p.free(i) {
			continue
		}
		if platePattern.MatchString(tok) {
			p.take(i)
			return tok
		}
		if len(tok) == 3 && isAlpha(tok) && !in(stopWords, tok) && !in(colorWords, tok) &&
			p.free(i+1) && plateTailPattern.MatchString(p.tokens[i+1]) {
			p.take(i, i+1)
			return tok + p.tokens[i+1]
		}
	}
	return ""
}

func (p *parser) color() string {
	for i, tok := range p.tokens {
		if p.free(i) && in(colorWords, tok) {
			p.take(i)
			return tok
		}
	}
	return ""
}

// models collects the vehicle models. Exact vocabulary hits and
// letter+digit codes always count. Near misses and models that double as
// person names (SANTANA, or CRUZ for CRUZE) count only when the line carries
// other vehicle evidence: a plate, a color or an adjacent exact model.
// Otherwise they stay available to the name.
func (p *parser) models(vehicle bool) []string {
	kinds := make([]modelKind, len(p.tokens))
	for i, tok := range p.tokens {
		if p.free(i) && !in(stopWords, tok) {
			kinds[i] = modelKindOf(tok)
		}
	}

	var out []string
	for i, k := range kinds {
		switch k {
		case exactModel:
		case looseModel:
			if !vehicle && !adjacent(kinds, i, exactModel) {
				continue
			}
		default:
			continue
		}
		p.take(i)
		out = append(out, p.tokens[i])
	}
	return out
}

func adjacent(kinds []modelKind, i int, k modelKind) bool {
	return (i > 0 && kinds[i-1] == k) || (i+1 < len(kinds) && kinds[i+1] == k)
}

type modelKind int

const (
	notModel modelKind = iota
	exactModel
	looseModel
)

// modelKindOf classifies a token: vocabulary hits and unknown letter+digit
// tokens (HB20S) are exact; name homonyms and near misses of the vocabulary
// (one letter dropped or doubled, as in JETA for JETTA) are loose.
func modelKindOf(tok string) modelKind {
	if in(modelHomonyms, tok) {
		return looseModel
	}
	if in(modelWords, tok) {
		return exactModel
	}
	if !isAlpha(tok) && !isDigits(tok) {
		if countDigits(tok) < 5 {
			return exactModel
		}
		return notModel
	}
	if len(tok) < 4 || !isAlpha(tok) {
		return notModel
	}
	for w := range modelWords {
		if len(w) < 4 || abs(len(w)-len(tok)) != 1 {
			continue
		}
		if levenshtein.ComputeDistance(w, tok) == 1 {
			return looseModel
		}
	}
	return notModel
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// name picks the longest run of leftover alphabetic tokens. Tokens already
// attributed to other fields are skipped over rather than breaking the run.
func (p *parser) name() (nome, sobrenome, raw string) {
	var best, cur []int
	var pendingConnectors []int
	flush := func() {
		if len(cur) > len(best) {
			best = cur
		}
		cur = nil
		pendingConnectors = nil
	}

	for i, tok := range p.tokens {
		if !p.free(i) {
			continue
		}
		switch {
		case in(nameConnectors, tok) && len(cur) > 0:
			pendingConnectors = append(pendingConnectors, i)
		case isAlpha(tok) && len(tok) >= 2 && !in(stopWords, tok):
			cur = append(cur, pendingConnectors...)
			cur = append(cur, i)
			pendingConnectors = nil
		default:
			flush()
		}
	}
	flush()

	if len(best) == 0 {
		return "", "", ""
	}
	p.take(best...)

	words := make([]string, len(best))
	rawWords := make([]string, len(best))
	for j, i := range best {
		words[j] = p.tokens[i]
		rawWords[j] = p.raw[i]
	}
	return words[0], strings.Join(words[1:], " "), strings.Join(rawWords, " ")
}
