package alerts

import (
	"fmt"
	"strings"

	"example.com/portaria/internal/models"
)

var ordinals = []string{"", "PRIMEIRA", "SEGUNDA", "TERCEIRA", "QUARTA", "QUINTA", "SEXTA", "SETIMA", "OITAVA", "NONA", "DECIMA"}

var cardinals = []string{"", "UMA", "DUAS", "TRES", "QUATRO", "CINCO", "SEIS", "SETE", "OITO", "NOVE", "DEZ"}

// OrdinalPT spells 1..10 as feminine ordinals; other values use digits.
func OrdinalPT(n int) string {
	if n >= 1 && n < len(ordinals) {
		return ordinals[n]
	}
	return fmt.Sprintf("%dª", n)
}

// CardinalPT spells 1..10 as feminine cardinals; other values use digits.
func CardinalPT(n int) string {
	if n >= 1 && n < len(cardinals) {
		return cardinals[n]
	}
	return fmt.Sprintf("%d", n)
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = models.NormalizeKey(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func accessMessage(kind models.AlertKind, last models.AccessEvent, count int) string {
	date, clock := models.SplitDataHora(last.DataHora)
	msg := fmt.Sprintf("%s, DO BLOCO %s APARTAMENTO %s, ACESSOU O CONDOMINIO PELA %s VEZ, NA DATA %s, HORARIO AS %s",
		joinNonEmpty(" ", last.Status, last.Nome, last.Sobrenome),
		models.NormalizeKey(last.Bloco),
		models.NormalizeKey(last.Apartamento),
		OrdinalPT(count),
		date,
		clock,
	)
	switch kind {
	case models.AlertPadrao2:
		return msg + ", COM DADOS DIVERGENTES!"
	case models.AlertPadrao3:
		return msg + ", COM VEICULO DIVERGENTE!"
	default:
		return msg + "!"
	}
}

func semTagMessage(r models.AccessEvent) string {
	vehicle := joinNonEmpty(" ", r.Placa, r.Modelo, r.Cor)
	if vehicle != "" {
		vehicle = " " + vehicle
	}
	return fmt.Sprintf("MORADOR %s, DO BLOCO %s APARTAMENTO %s, ESTA SEM TAG NO VEICULO%s!",
		joinNonEmpty(" ", r.Nome, r.Sobrenome),
		models.NormalizeKey(r.Bloco),
		models.NormalizeKey(r.Apartamento),
		vehicle,
	)
}

func parcelMessage(g models.ParcelAnalysisGroup) string {
	var dates, statusDates []string
	for _, r := range g.Registros {
		if d := strings.TrimSpace(r.DataHora); d != "" {
			dates = append(dates, d)
		}
		if d := strings.TrimSpace(r.StatusDataHora); d != "" {
			statusDates = append(statusDates, d)
		}
	}
	return fmt.Sprintf("AVISO: HA %s ENCOMENDAS PARA O BLOCO %s APARTAMENTO %s DATA E HORA %s SEM CONTATO DATA HORA %s!",
		CardinalPT(g.Quantidade),
		models.NormalizeKey(g.Bloco),
		models.NormalizeKey(g.Apartamento),
		orDash(strings.Join(dates, "|")),
		orDash(strings.Join(statusDates, "|")),
	)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// uiFor returns the rendering hints of an alert kind.
func uiFor(kind models.AlertKind) (models.AlertLevel, models.AlertUI) {
	level, background := models.LevelInfo, "#FFFF00"
	switch kind {
	case models.AlertPadrao2, models.AlertEncomendasMultiplas:
		level = models.LevelWarn
	case models.AlertPadrao3:
		level, background = models.LevelCritical, "#FF0000"
	case models.AlertMoradorSemTag:
		level, background = models.LevelWarn, "#FF0000"
	}
	return level, models.AlertUI{
		BackgroundColor: background,
		TextColor:       "#000000",
		Opacity:         0.7,
		Level:           level,
		CloseButton:     true,
	}
}
