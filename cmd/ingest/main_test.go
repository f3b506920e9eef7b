package main

import (
	"testing"
)

func TestDecodeCaseRecordsSingleObject(t *testing.T) {
	records, err := decodeCaseRecords([]byte(`{"case_id": "123 S.W.2d 456", "offense": "burglary"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if got := records[0].Fields["case_id"]; got != "123 S.W.2d 456" {
		t.Errorf("case_id: got %v", got)
	}
}

func TestDecodeCaseRecordsArray(t *testing.T) {
	records, err := decodeCaseRecords([]byte(`[
		{"case_id": "123 S.W.2d 456"},
		{"case_id": "45 Tex. Crim. 120"}
	]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if got := records[1].Fields["case_id"]; got != "45 Tex. Crim. 120" {
		t.Errorf("second case_id: got %v", got)
	}
}

func TestDecodeCaseRecordsInvalid(t *testing.T) {
	if _, err := decodeCaseRecords([]byte(`"just a string"`)); err == nil {
		t.Error("scalar JSON should error")
	}
	if _, err := decodeCaseRecords([]byte(`{broken`)); err == nil {
		t.Error("malformed JSON should error")
	}
}
