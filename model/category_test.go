package model

import (
	"encoding/json"
	"testing"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		key   string
		kind  CategoryKind
		label string
	}{
		{"w2", CategoryW2, "W2 - Payroll Document"},
		{"ssnCard", CategorySocialSecurityCard, "Social Security Card"},
		{"socialSecurityCard", CategorySocialSecurityCard, "Social Security Card"},
		{"form1098T", CategoryForm1098T, "1098-T - Tuition Statement"},
		{"unknown", CategoryUnknown, "Document"},
		{"propertyTax", CategoryUnrecognized, "propertyTax"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			c := ParseCategory(tt.key)
			if c.Kind() != tt.kind {
				t.Errorf("Expected kind %d, got %d", tt.kind, c.Kind())
			}
			if c.Label() != tt.label {
				t.Errorf("Expected label '%s', got '%s'", tt.label, c.Label())
			}
			if c.Key() != tt.key {
				t.Errorf("Expected key '%s', got '%s'", tt.key, c.Key())
			}
		})
	}
}

func TestCategoryKnown(t *testing.T) {
	if !ParseCategory("k1").Known() {
		t.Error("Expected k1 to be known")
	}
	if ParseCategory("giftCard").Known() {
		t.Error("Expected giftCard to be unrecognized")
	}
}

func TestCategoryJSONKeepsRawKey(t *testing.T) {
	type wrapper struct {
		Category Category `json:"category"`
	}

	data, err := json.Marshal(wrapper{Category: ParseCategory("ssnCard")})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if string(data) != `{"category":"ssnCard"}` {
		t.Errorf("Unexpected JSON %s", data)
	}

	var back wrapper
	if err := json.Unmarshal([]byte(`{"category":"brokerStatement"}`), &back); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if back.Category.Known() || back.Category.Label() != "brokerStatement" {
		t.Errorf("Expected unrecognized passthrough, got %+v", back.Category)
	}
}
