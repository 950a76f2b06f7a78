package models

// Resident status values stored in STATUS.
const (
	StatusMorador      = "MORADOR"
	StatusVisitante    = "VISITANTE"
	StatusPrestador    = "PRESTADOR DE SERVIÇO"
	StatusDesconhecido = "DESCONHECIDO"
)

// Parcel status values stored in STATUS_ENCOMENDA. An empty value means
// the doorman has not tried to reach the unit yet.
const (
	ParcelSemContato = "SEM CONTATO"
	ParcelAvisado    = "AVISADO"
)

// Record is implemented by every row kept under "registros" in a store file.
type Record interface {
	GetID() int
	SetID(id int)
}

// EntryRecord is a record that points back to the ingress row it came from.
type EntryRecord interface {
	Record
	GetEntryID() int
}

// Document is the on-disk layout shared by the ingress and end stores.
type Document[T any] struct {
	Registros []T `json:"registros"`
}

// AccessEvent is one gate access persisted in the access end-store.
type AccessEvent struct {
	ID          int    `json:"ID"`
	EntryID     int    `json:"_entrada_id,omitempty" validate:"gte=0"`
	Nome        string `json:"NOME"`
	Sobrenome   string `json:"SOBRENOME"`
	Bloco       string `json:"BLOCO"`
	Apartamento string `json:"APARTAMENTO"`
	Placa       string `json:"PLACA" validate:"omitempty,placa"`
	Modelo      string `json:"MODELO"`
	Cor         string `json:"COR"`
	Status      string `json:"STATUS" validate:"required,oneof=MORADOR VISITANTE 'PRESTADOR DE SERVIÇO' DESCONHECIDO"`
	DataHora    string `json:"DATA_HORA" validate:"required,datahora"`
	SemTag      Flag   `json:"MORADOR SEM TAG,omitempty"`
}

func (e *AccessEvent) GetID() int      { return e.ID }
func (e *AccessEvent) SetID(id int)    { e.ID = id }
func (e *AccessEvent) GetEntryID() int { return e.EntryID }

// Identity returns the canonical NOME|SOBRENOME|BLOCO|APARTAMENTO key.
func (e AccessEvent) Identity() string {
	return IdentityKey(e.Nome, e.Sobrenome, e.Bloco, e.Apartamento)
}

// HasVehicle reports whether any vehicle field is filled.
func (e AccessEvent) HasVehicle() bool {
	return NormalizeKey(e.Placa) != "" || NormalizeKey(e.Modelo) != "" || NormalizeKey(e.Cor) != ""
}

// ParcelEvent is one delivery persisted in the parcels end-store.
type ParcelEvent struct {
	ID              int    `json:"ID"`
	EntryID         int    `json:"_entrada_id,omitempty" validate:"gte=0"`
	Nome            string `json:"NOME"`
	Sobrenome       string `json:"SOBRENOME"`
	Bloco           string `json:"BLOCO"`
	Apartamento     string `json:"APARTAMENTO"`
	Loja            string `json:"LOJA"`
	Tipo            string `json:"TIPO"`
	Identificacao   string `json:"IDENTIFICACAO"`
	StatusEncomenda string `json:"STATUS_ENCOMENDA" validate:"omitempty,oneof='SEM CONTATO' AVISADO"`
	StatusDataHora  string `json:"STATUS_DATA_HORA" validate:"omitempty,datahora"`
	DataHora        string `json:"DATA_HORA" validate:"required,datahora"`
}

func (e *ParcelEvent) GetID() int      { return e.ID }
func (e *ParcelEvent) SetID(id int)    { e.ID = id }
func (e *ParcelEvent) GetEntryID() int { return e.EntryID }

// Unit returns the BLOCO|APARTAMENTO key parcels are grouped by.
func (e ParcelEvent) Unit() string {
	return UnitKey(e.Bloco, e.Apartamento)
}

// IngressEvent is the raw operator line as first persisted in an init-store.
type IngressEvent struct {
	ID            int             `json:"id"`
	Texto         string          `json:"texto"`
	Processado    bool            `json:"processado"`
	DataHora      string          `json:"data_hora"`
	Destino       Destination     `json:"destino,omitempty"`
	Classificacao *Classification `json:"classificacao,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

func (e *IngressEvent) GetID() int   { return e.ID }
func (e *IngressEvent) SetID(id int) { e.ID = id }
