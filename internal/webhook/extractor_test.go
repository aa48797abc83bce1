package webhook

import "testing"

func TestExtractFieldsFrenchLabels(t *testing.T) {
	got := ExtractFields(map[string]string{
		"Prénom":         "Salma",
		"Nom de famille": "Idrissi",
		"Téléphone":      " 0661234567 ",
		"Courriel":       "Salma@Example.com",
		"Ville":          "Marrakech",
		"Type de bien":   "Riad à rénover",
		"Message":        "<b>Bonjour</b>",
		"utm_source":     "facebook",
	})

	if got.Name() != "Salma Idrissi" {
		t.Errorf("name = %q", got.Name())
	}
	if got.Phone != "0661234567" || got.Email != "salma@example.com" || got.City != "Marrakech" {
		t.Errorf("unexpected contact fields: %+v", got)
	}
	if got.PropertyType != "riad" {
		t.Errorf("property type = %q, want riad", got.PropertyType)
	}
	if got.Message != "Bonjour" {
		t.Errorf("message not sanitized: %q", got.Message)
	}
	if got.IsIncomplete() {
		t.Error("expected complete submission")
	}
}

func TestExtractFieldsRejectsMalformedEmail(t *testing.T) {
	got := ExtractFields(map[string]string{"name": "Omar", "email": "not-an-email"})
	if got.Email != "" {
		t.Errorf("expected email dropped, got %q", got.Email)
	}
	if !got.IsIncomplete() {
		t.Error("a submission without phone is incomplete")
	}
}

func TestMatchPropertyTypeFallsBackToAutre(t *testing.T) {
	if got := matchPropertyType("Terrain agricole"); got != "autre" {
		t.Errorf("got %q", got)
	}
	if got := matchPropertyType("Appartement Gauthier"); got != "appartement" {
		t.Errorf("got %q", got)
	}
}
