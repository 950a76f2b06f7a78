package models

import "encoding/json"

// AlertKind classifies what triggered an alert.
type AlertKind string

const (
	AlertPadrao1             AlertKind = "PADRAO_1"
	AlertPadrao2             AlertKind = "PADRAO_2"
	AlertPadrao3             AlertKind = "PADRAO_3"
	AlertMoradorSemTag       AlertKind = "MORADOR_SEM_TAG"
	AlertEncomendasMultiplas AlertKind = "ENCOMENDAS_MULTIPLAS_BLOCO_APARTAMENTO"
)

// AlertLevel is the severity shown to the operator.
type AlertLevel string

const (
	LevelInfo     AlertLevel = "info"
	LevelWarn     AlertLevel = "warn"
	LevelCritical AlertLevel = "critical"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertClosedByUser AlertStatus = "closed_by_user"
)

// AlertUI carries rendering hints for the operator window.
type AlertUI struct {
	BackgroundColor string     `json:"background_color"`
	TextColor       string     `json:"text_color"`
	Opacity         float64    `json:"opacity"`
	Level           AlertLevel `json:"level"`
	CloseButton     bool       `json:"close_button"`
}

// AlertReferences are the foreign keys of an alert into the end-stores.
type AlertReferences struct {
	PrimeiroRegistroID int    `json:"primeiro_registro_id"`
	UltimoRegistroID   int    `json:"ultimo_registro_id"`
	RegistroIDs        []int  `json:"registro_ids,omitempty"`
	EntradaIDs         []int  `json:"entrada_ids,omitempty"`
	Bloco              string `json:"bloco,omitempty"`
	Apartamento        string `json:"apartamento,omitempty"`
	OrigemStatus       string `json:"origem_status,omitempty"`
	Quantidade         int    `json:"quantidade,omitempty"`
}

// Alert is one row of avisos.json.
type Alert struct {
	IDAviso           string          `json:"id_aviso"`
	Identidade        string          `json:"identidade"`
	Tipo              AlertKind       `json:"tipo"`
	Nivel             AlertLevel      `json:"nivel"`
	Mensagem          string          `json:"mensagem"`
	UI                AlertUI         `json:"ui"`
	Referencias       AlertReferences `json:"referencias"`
	PrimeiroRegistro  json.RawMessage `json:"primeiro_registro,omitempty"`
	UltimoRegistro    json.RawMessage `json:"ultimo_registro,omitempty"`
	QuantidadeAcessos int             `json:"quantidade_acessos,omitempty"`
	CamposDivergentes []string        `json:"campos_divergentes,omitempty"`
	CriadoEm          string          `json:"criado_em"`
	AtualizadoEm      string          `json:"atualizado_em"`
	FechadoEm         *string         `json:"fechado_em"`
	Ativo             bool            `json:"ativo"`
	Status            AlertStatus     `json:"status"`
}

// AlertsDocument is the content of avisos.json.
type AlertsDocument struct {
	Registros        []Alert `json:"registros"`
	UltimoAvisoAtivo *string `json:"ultimo_aviso_ativo"`
}
