package domain

// OpportunityType is the kind of property an opportunity concerns.
type OpportunityType string

const (
	TypeVilla       OpportunityType = "villa"
	TypeAppartement OpportunityType = "appartement"
	TypeMagasin     OpportunityType = "magasin"
	TypeBureau      OpportunityType = "bureau"
	TypeRiad        OpportunityType = "riad"
	TypeStudio      OpportunityType = "studio"
	TypeRenovation  OpportunityType = "renovation"
	TypeAutre       OpportunityType = "autre"
)

// Label returns the display label used in generated titles.
func (t OpportunityType) Label() string {
	switch t {
	case TypeVilla:
		return "Villa"
	case TypeAppartement:
		return "Appartement"
	case TypeMagasin:
		return "Magasin"
	case TypeBureau:
		return "Bureau"
	case TypeRiad:
		return "Riad"
	case TypeStudio:
		return "Studio"
	case TypeRenovation:
		return "Rénovation"
	case TypeAutre:
		return "Autre"
	default:
		return "Projet"
	}
}

// OpportunityStatus is the commercial outcome of an opportunity.
type OpportunityStatus string

const (
	StatusOpen   OpportunityStatus = "open"
	StatusWon    OpportunityStatus = "won"
	StatusLost   OpportunityStatus = "lost"
	StatusOnHold OpportunityStatus = "on_hold"
)

// PipelineStage is the opportunity-level stage, coarser than Stage.
type PipelineStage string

const (
	PipelinePriseDeBesoin PipelineStage = "prise_de_besoin"
	PipelineProjetAccepte PipelineStage = "projet_accepte"
	PipelineAcompteRecu   PipelineStage = "acompte_recu"
	PipelineGagnee        PipelineStage = "gagnee"
	PipelinePerdue        PipelineStage = "perdue"
)

// MirrorStage maps an opportunity stage to the statut_projet of its mirrored client row.
func MirrorStage(ps PipelineStage) Stage {
	switch ps {
	case PipelineProjetAccepte, PipelineAcompteRecu:
		return StageAcompteRecu
	case PipelineGagnee:
		return StageProjetEnCours
	case PipelinePerdue:
		return StageRefuse
	case PipelinePriseDeBesoin:
		return StageNouveau
	default:
		return StageNouveau
	}
}

// DefaultPipelineStage is the stage a new opportunity gets when none is supplied.
func DefaultPipelineStage(contactStatus Stage) PipelineStage {
	if contactStatus == StageAcompteRecu {
		return PipelineAcompteRecu
	}
	return PipelineProjetAccepte
}

// ContactTag marks whether a contact has become a paying client.
type ContactTag string

const (
	TagConverted ContactTag = "converted"
	TagClient    ContactTag = "client"
)

// DevisStatus is the lifecycle state of a quote.
type DevisStatus string

const (
	DevisEnAttente DevisStatus = "en_attente"
	DevisAccepte   DevisStatus = "accepte"
	DevisRefuse    DevisStatus = "refuse"
)

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	MethodEspece   PaymentMethod = "espece"
	MethodVirement PaymentMethod = "virement"
	MethodCheque   PaymentMethod = "cheque"
)

// PaymentType distinguishes the initial deposit from later installments.
// The "accompte" spelling is the persisted wire value.
type PaymentType string

const (
	PaymentAccompte PaymentType = "accompte"
	PaymentPaiement PaymentType = "paiement"
)

// ClientKind tells where a client record's stage lives.
type ClientKind string

const (
	// ClientLegacy rows are standalone client_projects rows.
	ClientLegacy ClientKind = "legacy"
	// ClientContact records are contacts seen as clients; their stage is the contact status.
	ClientContact ClientKind = "contact"
	// ClientOpportunity rows mirror one opportunity.
	ClientOpportunity ClientKind = "opportunity"
)

// NotificationKind identifies the template used when notifying a user.
type NotificationKind string

const (
	NotifyAssignment      NotificationKind = "assignment"
	NotifyStageChanged    NotificationKind = "stage_changed"
	NotifyPaymentRecorded NotificationKind = "payment_recorded"
	NotifyRdvCreated      NotificationKind = "rdv_created"
	NotifyRdvUpdated      NotificationKind = "rdv_updated"
)
