package models

// Parcel bucket names used in ParcelAnalysisGroup.OrigemStatus.
const (
	OrigemSemContato = "SEM_CONTATO"
	OrigemSemStatus  = "SEM_STATUS"
)

// AnalysisGroup holds the accesses of one identity, oldest first.
type AnalysisGroup struct {
	Identidade  string        `json:"identidade"`
	Nome        string        `json:"NOME"`
	Sobrenome   string        `json:"SOBRENOME"`
	Bloco       string        `json:"BLOCO"`
	Apartamento string        `json:"APARTAMENTO"`
	Quantidade  int           `json:"quantidade"`
	Registros   []AccessEvent `json:"registros"`
}

// ParcelAnalysisGroup holds the undelivered parcels of one unit and bucket.
type ParcelAnalysisGroup struct {
	Identidade   string        `json:"identidade"`
	Bloco        string        `json:"bloco"`
	Apartamento  string        `json:"apartamento"`
	OrigemStatus string        `json:"origem_status"`
	Quantidade   int           `json:"quantidade"`
	Registros    []ParcelEvent `json:"registros"`
}

// LastID returns the highest record ID in the group.
func (g ParcelAnalysisGroup) LastID() int {
	last := 0
	for _, r := range g.Registros {
		if r.ID > last {
			last = r.ID
		}
	}
	return last
}

// AnalysisView is the content of analises.json.
type AnalysisView struct {
	Registros       []AnalysisGroup       `json:"registros"`
	Encomendas      []ParcelAnalysisGroup `json:"encomendas_multiplas_bloco_apartamento"`
	MoradoresSemTag []AccessEvent         `json:"moradores_sem_tag"`
}
