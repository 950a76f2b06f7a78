package ingest

import (
	"context"

	"example.com/portaria/internal/models"
)

// Extractor is an external field extractor, typically a language model.
// Its non-empty fields override the deterministic ones; when it fails the
// deterministic record is kept.
type Extractor interface {
	ExtractAccess(ctx context.Context, text string) (*models.AccessEvent, error)
	ExtractParcel(ctx context.Context, text string) (*models.ParcelEvent, error)
}

func mergeAccess(base models.AccessEvent, ext *models.AccessEvent) models.AccessEvent {
	if ext == nil {
		return base
	}
	out := base
	override(&out.Nome, ext.Nome)
	override(&out.Sobrenome, ext.Sobrenome)
	override(&out.Bloco, ext.Bloco)
	override(&out.Apartamento, ext.Apartamento)
	override(&out.Placa, models.NormalizePlate(ext.Placa))
	override(&out.Modelo, ext.Modelo)
	override(&out.Cor, ext.Cor)
	override(&out.Status, ext.Status)
	if ext.SemTag {
		out.SemTag = true
	}
	return out
}

func mergeParcel(base models.ParcelEvent, ext *models.ParcelEvent) models.ParcelEvent {
	if ext == nil {
		return base
	}
	out := base
	override(&out.Nome, ext.Nome)
	override(&out.Sobrenome, ext.Sobrenome)
	override(&out.Bloco, ext.Bloco)
	override(&out.Apartamento, ext.Apartamento)
	override(&out.Loja, ext.Loja)
	override(&out.Tipo, ext.Tipo)
	override(&out.Identificacao, ext.Identificacao)
	if ext.StatusEncomenda != "" {
		out.StatusEncomenda = models.NormalizeKey(ext.StatusEncomenda)
		out.StatusDataHora = base.DataHora
	}
	return out
}

func override(dst *string, v string) {
	if v = models.NormalizeKey(v); v != "" {
		*dst = v
	}
}
