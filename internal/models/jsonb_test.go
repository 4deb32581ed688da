package models

import (
	"testing"
)

func TestJSONB_ValueScanRoundTrip(t *testing.T) {
	original := JSONB{
		"constituentId": "c-1",
		"amount":        float64(250),
		"nested":        map[string]interface{}{"campaign": "Spring Gala"},
	}

	value, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var restored JSONB
	if err := restored.Scan(value.([]byte)); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if restored["constituentId"] != "c-1" {
		t.Errorf("Expected constituentId 'c-1', got %v", restored["constituentId"])
	}
	if restored["amount"] != float64(250) {
		t.Errorf("Expected amount 250, got %v", restored["amount"])
	}
	nested, ok := restored["nested"].(map[string]interface{})
	if !ok || nested["campaign"] != "Spring Gala" {
		t.Errorf("Expected nested campaign, got %v", restored["nested"])
	}
}

func TestJSONB_NilHandling(t *testing.T) {
	var j JSONB

	value, err := j.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if value != nil {
		t.Errorf("Expected nil value for nil JSONB, got %v", value)
	}

	var restored JSONB
	if err := restored.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if restored != nil {
		t.Errorf("Expected nil after Scan(nil), got %v", restored)
	}
}

func TestJSONB_ScanInvalidType(t *testing.T) {
	var j JSONB
	if err := j.Scan(42); err == nil {
		t.Fatal("expected error for non-[]byte value, got nil")
	}
}
