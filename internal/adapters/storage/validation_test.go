package storage

import (
	"strings"
	"testing"

	"archi_crm_backend/platform/apperr"
)

func TestValidateContentType(t *testing.T) {
	cases := map[string]bool{
		"application/pdf":                 true,
		"Application/PDF; charset=binary": true,
		"image/png":                       true,
		"video/mp4":                       false,
		"text/html":                       false,
	}
	for ct, ok := range cases {
		err := ValidateContentType(ct)
		if (err == nil) != ok {
			t.Errorf("ValidateContentType(%q) ok=%v, want %v", ct, err == nil, ok)
		}
		if err != nil && !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("expected validation kind for %q", ct)
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := validateFileSize(0, 10); err == nil {
		t.Fatal("expected error for empty file")
	}
	if err := validateFileSize(11, 10); err == nil {
		t.Fatal("expected error for oversize file")
	}
	if err := validateFileSize(10, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestObjectKeyStaysUnderFolder(t *testing.T) {
	key := objectKey("devis/abc", "../../etc/devis final.pdf")
	if !strings.HasPrefix(key, "devis/abc/devis final_") || !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("unexpected key %q", key)
	}
}
