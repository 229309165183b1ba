package dto

type ResolveDiscrepancyRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}
