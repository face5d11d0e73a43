package models

import (
	"rafyaudit/internal/checklist"
)

// Photo slots of an audit record.
const (
	PhotoLivrePolice = "photo_livre_police"
	PhotoErreur1     = "photo_erreur_1"
	PhotoErreur2     = "photo_erreur_2"
)

// Signature slots of an audit record.
const (
	SignatureCommercial = "signature_commercial"
	SignatureControleur = "signature_controleur"
)

// AuditRecord is one completed inspection ("PV de contrôle").
// Image fields hold data-URIs; nil means not provided.
type AuditRecord struct {
	ID                  string            `json:"id,omitempty"`
	DateControle        string            `json:"date_controle"`
	Heure               string            `json:"heure"`
	Lieu                string            `json:"lieu"`
	CommercialControle  string            `json:"commercial_controle"`
	ControleurInterne   string            `json:"controleur_interne"`
	Checklist           checklist.Entries `json:"checklist"`
	PhotoLivrePolice    *string           `json:"photo_livre_police"`
	PhotoErreur1        *string           `json:"photo_erreur_1"`
	PhotoErreur2        *string           `json:"photo_erreur_2"`
	Observations        string            `json:"observations"`
	ActionsCorrectives  string            `json:"actions_correctives"`
	ResultatGlobal      checklist.Status  `json:"resultat_global"`
	SignatureCommercial *string           `json:"signature_commercial"`
	SignatureControleur *string           `json:"signature_controleur"`
	CreatedAt           string            `json:"created_at,omitempty"`
}

// PhotoSlots lists the photo fields in display order with their labels.
var PhotoSlots = []struct {
	Key   string
	Label string
}{
	{PhotoLivrePolice, "Livre de Police"},
	{PhotoErreur1, "Erreur 1"},
	{PhotoErreur2, "Erreur 2"},
}

// Photo returns the field backing a photo slot, or nil for an unknown slot.
func (a *AuditRecord) Photo(slot string) **string {
	switch slot {
	case PhotoLivrePolice:
		return &a.PhotoLivrePolice
	case PhotoErreur1:
		return &a.PhotoErreur1
	case PhotoErreur2:
		return &a.PhotoErreur2
	}
	return nil
}

// Signature returns the field backing a signature slot, or nil for an unknown slot.
func (a *AuditRecord) Signature(slot string) **string {
	switch slot {
	case SignatureCommercial:
		return &a.SignatureCommercial
	case SignatureControleur:
		return &a.SignatureControleur
	}
	return nil
}

// IsConforme reports the stored overall result.
func (a AuditRecord) IsConforme() bool {
	return a.ResultatGlobal == checklist.Conforme
}
