package ingest

import "example.com/portaria/internal/models"

// Paths locates the init-stores (raw lines) and end-stores (typed records).
type Paths struct {
	AccessInit   string
	AccessEnd    string
	ParcelsInit  string
	ParcelsEnd   string
	Orientations string
	Observations string
	Review       string
}

// Init returns the init-store of a destination.
func (p Paths) Init(d models.Destination) string {
	switch d {
	case models.DestinationAccess:
		return p.AccessInit
	case models.DestinationParcel:
		return p.ParcelsInit
	case models.DestinationOrientation:
		return p.Orientations
	case models.DestinationObservation:
		return p.Observations
	default:
		return p.Review
	}
}

// End returns the end-store of a structured destination, or "".
func (p Paths) End(d models.Destination) string {
	switch d {
	case models.DestinationAccess:
		return p.AccessEnd
	case models.DestinationParcel:
		return p.ParcelsEnd
	default:
		return ""
	}
}
