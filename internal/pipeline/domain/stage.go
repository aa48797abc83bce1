// Package domain holds the stage reconciliation rules of the sales and delivery
// pipeline. Every function here is pure: callers pass the current state and
// receive the next state plus the list of effects to execute.
package domain

import (
	"fmt"
	"strings"
)

// Stage is a project stage (statut_projet). The wire strings are persisted and
// must not change.
type Stage string

const (
	StageNouveau          Stage = "nouveau"
	StageQualifie         Stage = "qualifie"
	StagePriseDeBesoin    Stage = "prise_de_besoin"
	StageAcompteRecu      Stage = "acompte_recu"
	StageAcompteVerse     Stage = "acompte_verse"
	StageConception       Stage = "conception"
	StageEnConception     Stage = "en_conception"
	StageDevisNegociation Stage = "devis_negociation"
	StageEnValidation     Stage = "en_validation"
	StageAccepte          Stage = "accepte"
	StageRefuse           Stage = "refuse"
	StagePremierDepot     Stage = "premier_depot"
	StageProjetEnCours    Stage = "projet_en_cours"
	StageChantier         Stage = "chantier"
	StageEnChantier       Stage = "en_chantier"
	StageFactureReglee    Stage = "facture_reglee"
	StageLivraisonTermine Stage = "livraison_termine"
	StageLivraison        Stage = "livraison"
	StageTermine          Stage = "termine"
	StagePerdu            Stage = "perdu"
	StageAnnule           Stage = "annule"
	StageSuspendu         Stage = "suspendu"
)

// AllStages lists every recognized stage in pipeline order.
var AllStages = []Stage{
	StageNouveau, StageQualifie, StagePriseDeBesoin, StageAcompteRecu, StageAcompteVerse,
	StageConception, StageEnConception, StageDevisNegociation, StageEnValidation,
	StageAccepte, StagePremierDepot, StageProjetEnCours, StageChantier, StageEnChantier,
	StageFactureReglee, StageLivraisonTermine, StageLivraison, StageTermine,
	StageRefuse, StagePerdu, StageAnnule, StageSuspendu,
}

// Category is the dashboard bucket a stage belongs to.
type Category string

const (
	CategoryEnCours   Category = "en_cours"
	CategoryTermine   Category = "termine"
	CategoryEnAttente Category = "en_attente"
	CategoryExcluded  Category = "excluded"
)

// ParseStage normalizes raw and rejects values outside the closed stage set.
func ParseStage(raw string) (Stage, error) {
	s := Stage(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsKnown() {
		return "", fmt.Errorf("unknown stage %q", raw)
	}
	return s, nil
}

// IsKnown reports whether s is one of the recognized stages.
func (s Stage) IsKnown() bool {
	switch s {
	case StageNouveau, StageQualifie, StagePriseDeBesoin, StageAcompteRecu, StageAcompteVerse,
		StageConception, StageEnConception, StageDevisNegociation, StageEnValidation,
		StageAccepte, StageRefuse, StagePremierDepot, StageProjetEnCours, StageChantier,
		StageEnChantier, StageFactureReglee, StageLivraisonTermine, StageLivraison,
		StageTermine, StagePerdu, StageAnnule, StageSuspendu:
		return true
	}
	return false
}

// Category classifies s. Unrecognized values fall into en_attente.
func (s Stage) Category() Category {
	switch s {
	case StagePerdu, StageRefuse, StageAnnule, StageSuspendu:
		return CategoryExcluded
	case StageTermine, StageLivraisonTermine, StageLivraison:
		return CategoryTermine
	case StageAccepte, StagePremierDepot, StageProjetEnCours, StageChantier,
		StageFactureReglee, StageEnChantier:
		return CategoryEnCours
	default:
		return CategoryEnAttente
	}
}

// Classify maps a raw persisted stage string to its category. It never fails:
// legacy or corrupted values land in en_attente.
func Classify(raw string) Category {
	return Stage(strings.ToLower(strings.TrimSpace(raw))).Category()
}

// IsExcluded reports whether s is a terminal branch outside the active pipeline.
func (s Stage) IsExcluded() bool {
	return s.Category() == CategoryExcluded
}

// Rank orders stages along the forward pipeline. Legacy aliases share the rank
// of the stage they stand for. Excluded and unknown stages rank -1.
func (s Stage) Rank() int {
	switch s {
	case StageNouveau:
		return 0
	case StageQualifie:
		return 1
	case StagePriseDeBesoin:
		return 2
	case StageAcompteRecu, StageAcompteVerse:
		return 3
	case StageConception, StageEnConception:
		return 4
	case StageDevisNegociation, StageEnValidation:
		return 5
	case StageAccepte:
		return 6
	case StagePremierDepot:
		return 7
	case StageProjetEnCours, StageChantier, StageEnChantier:
		return 8
	case StageFactureReglee:
		return 9
	case StageLivraisonTermine, StageLivraison, StageTermine:
		return 10
	case StageRefuse, StagePerdu, StageAnnule, StageSuspendu:
		return -1
	default:
		return -1
	}
}

// IsPostDeposit reports whether a client at s has already paid its deposit.
func (s Stage) IsPostDeposit() bool {
	return s.Rank() >= StageAcompteRecu.Rank()
}

// Label is the French display name used in timeline and historique entries.
func (s Stage) Label() string {
	switch s {
	case StageNouveau:
		return "Nouveau"
	case StageQualifie:
		return "Qualifié"
	case StagePriseDeBesoin:
		return "Prise de besoin"
	case StageAcompteRecu, StageAcompteVerse:
		return "Acompte reçu"
	case StageConception, StageEnConception:
		return "Conception"
	case StageDevisNegociation, StageEnValidation:
		return "Devis / négociation"
	case StageAccepte:
		return "Accepté"
	case StageRefuse:
		return "Refusé"
	case StagePremierDepot:
		return "Premier dépôt"
	case StageProjetEnCours, StageChantier, StageEnChantier:
		return "Projet en cours"
	case StageFactureReglee:
		return "Facture réglée"
	case StageLivraisonTermine, StageLivraison, StageTermine:
		return "Livraison terminée"
	case StagePerdu:
		return "Perdu"
	case StageAnnule:
		return "Annulé"
	case StageSuspendu:
		return "Suspendu"
	default:
		return string(s)
	}
}
