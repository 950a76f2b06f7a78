package textparse

import (
	"regexp"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog/log"

	"example.com/portaria/internal/models"
)

var (
	labelPattern    = regexp.MustCompile(`\b(LOJA|TIPO|IDENTIFICACAO|RASTREIO|CODIGO)\s*:`)
	correiosPattern = regexp.MustCompile(`^[A-Z]{2}\d{9}[A-Z]{2}$`)

	parcelStopWords = set(
		"ENCOMENDA", "ENCOMENDAS", "ENTREGA", "ENTREGAS", "ENTREGADOR", "ENTREGUE",
		"RECEBIDO", "RECEBIDA", "RECEBI", "CONTATO", "CHEGOU", "CHEGARAM", "PARA",
	)
)

// ParsedParcel holds the fields found in a parcel line.
type ParsedParcel struct {
	Parsed
	Loja            string
	Tipo            string
	Identificacao   string
	StatusEncomenda string
	Labeled         bool
}

// ParcelEvent converts the parsed fields into an end-store record. The
// status timestamp is only stamped when the line carried a status.
func (p ParsedParcel) ParcelEvent(entryID int, dataHora string) models.ParcelEvent {
	ev := models.ParcelEvent{
		EntryID:         entryID,
		Nome:            p.Nome,
		Sobrenome:       p.Sobrenome,
		Bloco:           p.Bloco,
		Apartamento:     p.Apartamento,
		Loja:            p.Loja,
		Tipo:            p.Tipo,
		Identificacao:   p.Identificacao,
		StatusEncomenda: p.StatusEncomenda,
		DataHora:        dataHora,
	}
	if ev.StatusEncomenda != "" {
		ev.StatusDataHora = dataHora
	}
	return ev
}

// HasLabels reports whether text uses the LOJA:/TIPO:/IDENTIFICACAO: layout.
func HasLabels(text string) bool {
	return labelPattern.MatchString(Normalize(text))
}

// ExtractParcel parses a parcel line, labeled or free-form.
func ExtractParcel(text string) (out ParsedParcel) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Str("text", text).Msg("Parcel preprocessor panicked")
			out = ParsedParcel{}
		}
	}()

	p := newParser(text)
	out.Tokens = p.tokens

	labels := map[string]bool{}
	for _, m := range labelPattern.FindAllStringSubmatch(Normalize(text), -1) {
		labels[m[1]] = true
	}
	out.Labeled = len(labels) > 0

	out.StatusEncomenda = p.parcelStatus()
	p.status()
	if out.Labeled {
		p.labeled(labels, &out)
	}
	if out.Loja == "" {
		out.Loja = p.store(0)
	}
	if out.Tipo == "" {
		out.Tipo = p.parcelKind()
	}
	if out.Identificacao == "" {
		out.Identificacao = p.trackingCode()
	}

	out.Bloco, out.Apartamento = p.unit()
	for i, tok := range p.tokens {
		if p.free(i) && in(parcelStopWords, tok) {
			p.take(i)
		}
	}
	out.Nome, out.Sobrenome, out.NomeRaw = p.name()
	return out
}

// parcelStatus gives AVISADO precedence over SEM CONTATO.
func (p *parser) parcelStatus() string {
	status := ""
	for i, tok := range p.tokens {
		switch {
		case in(parcelNoticeWords, tok):
			p.take(i)
			status = models.ParcelAvisado
		case tok == "SEMCONTATO" || (tok == "SEM" && i+1 < len(p.tokens) && p.tokens[i+1] == "CONTATO"):
			p.take(i)
			if tok == "SEM" {
				p.take(i + 1)
			}
			if status == "" {
				status = models.ParcelSemContato
			}
		}
	}
	return status
}

func (p *parser) labeled(labels map[string]bool, out *ParsedParcel) {
	for i, tok := range p.tokens {
		if !p.free(i) || !labels[tok] {
			continue
		}
		p.take(i)
		switch tok {
		case "LOJA":
			if store := p.store(i + 1); store != "" {
				out.Loja = store
				continue
			}
			var words []string
			for j := i + 1; p.free(j) && !p.boundary(labels, j); j++ {
				p.take(j)
				words = append(words, p.tokens[j])
			}
			out.Loja = strings.Join(words, " ")
		case "TIPO":
			if p.free(i+1) && !p.boundary(labels, i+1) {
				p.take(i + 1)
				out.Tipo = p.tokens[i+1]
			}
		default:
			if p.free(i+1) && !p.boundary(labels, i+1) && out.Identificacao == "" {
				p.take(i + 1)
				out.Identificacao = p.tokens[i+1]
			}
		}
	}
}

// boundary is true where a labeled value must stop.
func (p *parser) boundary(labels map[string]bool, i int) bool {
	tok := p.tokens[i]
	return labels[tok] ||
		in(blockPrefixWords, tok) || in(aptPrefixWords, tok) ||
		blockJoined.MatchString(tok) || aptJoined.MatchString(tok) || blockAptJoined.MatchString(tok) ||
		in(moradorWords, tok) || in(visitanteWords, tok) || in(prestadorWords, tok)
}

// store returns the first known store name at or after position from.
func (p *parser) store(from int) string {
	for i := from; i < len(p.tokens); i++ {
		for _, name := range storeNames {
			if p.matchesAt(i, name) {
				for j := range name {
					p.take(i + j)
				}
				return strings.Join(name, " ")
			}
		}
		if from > 0 {
			// Labeled values only look right after the label.
			return ""
		}
	}
	return ""
}

func (p *parser) matchesAt(i int, words []string) bool {
	for j, w := range words {
		if !p.free(i+j) || p.tokens[i+j] != w {
			return false
		}
	}
	return true
}

func (p *parser) parcelKind() string {
	for i, tok := range p.tokens {
		if p.free(i) && in(parcelKinds, tok) {
			p.take(i)
			return tok
		}
	}
	return ""
}

// trackingCode accepts Correios codes (AA123456789BR) and any other code with
// at least five digits that is not a unit token.
func (p *parser) trackingCode() string {
	for i, tok := range p.tokens {
		if !p.free(i) {
			continue
		}
		if correiosPattern.MatchString(tok) {
			p.take(i)
			return tok
		}
	}
	for i, tok := range p.tokens {
		if !p.free(i) || countDigits(tok) < 5 {
			continue
		}
		if blockJoined.MatchString(tok) || aptJoined.MatchString(tok) || blockAptJoined.MatchString(tok) {
			continue
		}
		p.take(i)
		return tok
	}
	return ""
}
