package webhook

import (
	"regexp"
	"strings"

	"archi_crm_backend/platform/sanitize"
)

// ExtractedFields is what a form submission yields after label matching.
type ExtractedFields struct {
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	City         string
	PropertyType string
	Message      string
}

func (e ExtractedFields) Name() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// IsIncomplete reports a submission that cannot become a lead: leads need a
// name and a phone.
func (e ExtractedFields) IsIncomplete() bool {
	return e.Name() == "" || e.Phone == ""
}

// ExtractFields matches form labels (French and English) against known
// fields. Unknown labels are ignored.
func ExtractFields(data map[string]string) ExtractedFields {
	var result ExtractedFields

	for key, value := range data {
		value = strings.TrimSpace(sanitize.Text(value))
		if value == "" {
			continue
		}
		label := normalizeLabel(key)

		switch {
		case matchesAny(label, firstNamePatterns):
			result.FirstName = value
		case matchesAny(label, lastNamePatterns):
			result.LastName = value
		case matchesAny(label, fullNamePatterns):
			if result.FirstName == "" && result.LastName == "" {
				result.FirstName = value
			}
		case matchesAny(label, emailPatterns):
			if emailRegex.MatchString(value) {
				result.Email = strings.ToLower(value)
			}
		case matchesAny(label, phonePatterns):
			result.Phone = value
		case matchesAny(label, cityPatterns):
			result.City = value
		case matchesAny(label, propertyTypePatterns):
			result.PropertyType = matchPropertyType(value)
		case matchesAny(label, messagePatterns):
			result.Message = value
		}
	}
	return result
}

var (
	firstNamePatterns    = []string{"first_name", "firstname", "prenom", "given_name"}
	lastNamePatterns     = []string{"last_name", "lastname", "nom_de_famille", "family_name", "surname"}
	fullNamePatterns     = []string{"name", "nom", "full_name", "nom_complet", "your_name", "votre_nom"}
	emailPatterns        = []string{"email", "e-mail", "mail", "courriel", "adresse_email"}
	phonePatterns        = []string{"phone", "tel", "telephone", "mobile", "gsm", "portable", "whatsapp", "numero"}
	cityPatterns         = []string{"city", "ville", "localite", "location"}
	propertyTypePatterns = []string{"property_type", "type_bien", "type_de_bien", "type_projet", "project_type", "bien", "type"}
	messagePatterns      = []string{"message", "commentaire", "comment", "description", "besoin", "details", "notes", "question"}
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var labelReplacer = strings.NewReplacer("-", "", "_", "", " ", "")

func normalizeLabel(label string) string {
	return labelReplacer.Replace(sanitize.Fold(label))
}

func matchesAny(label string, patterns []string) bool {
	for _, p := range patterns {
		if label == labelReplacer.Replace(p) {
			return true
		}
	}
	return false
}

// propertyKeywords maps free text to the opportunity types the pipeline knows.
var propertyKeywords = []struct {
	keyword string
	slug    string
}{
	{"villa", "villa"},
	{"appartement", "appartement"},
	{"apartment", "appartement"},
	{"riad", "riad"},
	{"studio", "studio"},
	{"magasin", "magasin"},
	{"boutique", "magasin"},
	{"bureau", "bureau"},
	{"office", "bureau"},
	{"renovation", "renovation"},
}

func matchPropertyType(value string) string {
	folded := sanitize.Fold(value)
	for _, k := range propertyKeywords {
		if strings.Contains(folded, k.keyword) {
			return k.slug
		}
	}
	return "autre"
}
