package models

// Destination is where an operator line ends up.
type Destination string

const (
	DestinationAccess      Destination = "acesso"
	DestinationParcel      Destination = "encomendas"
	DestinationOrientation Destination = "orientacoes"
	DestinationObservation Destination = "observacoes"
	DestinationReview      Destination = "revisao"
)

// Valid reports whether d is one of the known destinations.
func (d Destination) Valid() bool {
	switch d {
	case DestinationAccess, DestinationParcel, DestinationOrientation, DestinationObservation, DestinationReview:
		return true
	default:
		return false
	}
}

// Structured reports whether lines routed to d become typed end-store records.
func (d Destination) Structured() bool {
	return d == DestinationAccess || d == DestinationParcel
}

// Classification is the classifier output, also persisted on the ingress row.
type Classification struct {
	Destino      Destination             `json:"destino"`
	Score        float64                 `json:"score"`
	Scores       map[Destination]float64 `json:"scores"`
	Confianca    float64                 `json:"confianca"`
	Ambiguo      bool                    `json:"ambiguo"`
	VersaoRegras string                  `json:"versao_regras"`
	Motivo       string                  `json:"motivo,omitempty"`
}
