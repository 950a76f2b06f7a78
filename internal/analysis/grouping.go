package analysis

import (
	"sort"

	"example.com/portaria/internal/models"
)

// DefaultMinGroupSize is the smallest number of accesses that forms a group.
const DefaultMinGroupSize = 2

const emptyIdentity = "|||"

// GroupAccesses partitions rows by identity and keeps the identities with at
// least minGroupSize accesses. Groups come out sorted by identity.
func GroupAccesses(rows []models.AccessEvent, minGroupSize int) []models.AnalysisGroup {
	byIdentity := map[string][]models.AccessEvent{}
	for _, r := range rows {
		key := r.Identity()
		if key == emptyIdentity {
			continue
		}
		byIdentity[key] = append(byIdentity[key], r)
	}

	keys := make([]string, 0, len(byIdentity))
	for k := range byIdentity {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]models.AnalysisGroup, 0, len(keys))
	for _, k := range keys {
		if g, ok := newGroup(k, byIdentity[k], minGroupSize); ok {
			groups = append(groups, g)
		}
	}
	return groups
}

// GroupIdentity builds the group of a single identity from the whole store.
func GroupIdentity(rows []models.AccessEvent, identity string, minGroupSize int) (models.AnalysisGroup, bool) {
	var members []models.AccessEvent
	for _, r := range rows {
		if r.Identity() == identity {
			members = append(members, r)
		}
	}
	return newGroup(identity, members, minGroupSize)
}

func newGroup(identity string, members []models.AccessEvent, minGroupSize int) (models.AnalysisGroup, bool) {
	if len(members) < minGroupSize || len(members) == 0 {
		return models.AnalysisGroup{}, false
	}
	sorted := make([]models.AccessEvent, len(members))
	copy(sorted, members)
	SortByDataHora(sorted, func(r models.AccessEvent) string { return r.DataHora })

	nome, sobrenome, bloco, apartamento := models.SplitIdentity(identity)
	return models.AnalysisGroup{
		Identidade:  identity,
		Nome:        nome,
		Sobrenome:   sobrenome,
		Bloco:       bloco,
		Apartamento: apartamento,
		Quantidade:  len(sorted),
		Registros:   sorted,
	}, true
}

// SortByDataHora orders rows by parsed DATA_HORA, oldest first. Rows whose
// date does not parse sort before every dated row; ties keep store order.
func SortByDataHora[T any](rows []T, dataHora func(T) string) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti, okI := models.ParseDataHora(dataHora(rows[i]))
		tj, okJ := models.ParseDataHora(dataHora(rows[j]))
		switch {
		case !okI && !okJ:
			return false
		case !okI:
			return true
		case !okJ:
			return false
		default:
			return ti.Before(tj)
		}
	})
}

// GroupParcels buckets undelivered parcels per unit: SEM_CONTATO for parcels
// the unit could not be reached about, SEM_STATUS for anything else that is
// not AVISADO. Units with neither block nor apartment are skipped.
func GroupParcels(rows []models.ParcelEvent) []models.ParcelAnalysisGroup {
	type bucketKey struct{ unit, origem string }
	buckets := map[bucketKey][]models.ParcelEvent{}

	for _, r := range rows {
		if models.NormalizeKey(r.Bloco) == "" && models.NormalizeKey(r.Apartamento) == "" {
			continue
		}
		var origem string
		switch models.NormalizeKey(r.StatusEncomenda) {
		case models.ParcelAvisado:
			continue
		case models.ParcelSemContato:
			origem = models.OrigemSemContato
		default:
			origem = models.OrigemSemStatus
		}
		k := bucketKey{unit: r.Unit(), origem: origem}
		buckets[k] = append(buckets[k], r)
	}

	keys := make([]bucketKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].unit != keys[j].unit {
			return keys[i].unit < keys[j].unit
		}
		return keys[i].origem < keys[j].origem
	})

	groups := make([]models.ParcelAnalysisGroup, 0, len(keys))
	for _, k := range keys {
		members := buckets[k]
		SortByDataHora(members, func(r models.ParcelEvent) string { return r.DataHora })
		bloco, apartamento, _, _ := models.SplitIdentity(k.unit)
		groups = append(groups, models.ParcelAnalysisGroup{
			Identidade:   k.unit,
			Bloco:        bloco,
			Apartamento:  apartamento,
			OrigemStatus: k.origem,
			Quantidade:   len(members),
			Registros:    members,
		})
	}
	return groups
}

// SemTagRecords returns the accesses flagged MORADOR SEM TAG, in store order.
func SemTagRecords(rows []models.AccessEvent) []models.AccessEvent {
	out := []models.AccessEvent{}
	for _, r := range rows {
		if r.SemTag {
			out = append(out, r)
		}
	}
	return out
}
