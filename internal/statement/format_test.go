package statement

import (
	"testing"

	"tpv-reconciliation-service/internal/models"
)

func TestDefaultRedsysFormatIsValid(t *testing.T) {
	format := DefaultRedsysFormat()
	if err := format.Validate(); err != nil {
		t.Errorf("default format should validate: %v", err)
	}
	if _, err := format.compile(); err != nil {
		t.Errorf("default format should compile: %v", err)
	}
}

func TestPlainFormatIsValid(t *testing.T) {
	format := PlainFormat()
	if err := format.Validate(); err != nil {
		t.Errorf("plain format should validate: %v", err)
	}
	if _, err := format.compile(); err != nil {
		t.Errorf("plain format should compile: %v", err)
	}
}

func TestFormatValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StatementFormat)
	}{
		{"missing amount pattern", func(f *StatementFormat) { f.AmountPattern = "" }},
		{"zero min digits", func(f *StatementFormat) { f.ReferenceMinDigits = 0 }},
		{"max below min", func(f *StatementFormat) { f.ReferenceMaxDigits = 2 }},
		{"zero lookahead", func(f *StatementFormat) { f.LookaheadLines = 0 }},
		{"merchant without terminal", func(f *StatementFormat) { f.TerminalPattern = "" }},
		{"bad convention", func(f *StatementFormat) { f.AmountConvention = "semicolon" }},
		{"empty vocab token", func(f *StatementFormat) {
			f.AuthorizationVocabulary[" "] = models.AuthorizationDenied
		}},
		{"bad vocab status", func(f *StatementFormat) {
			f.AuthorizationVocabulary["RARA"] = models.AuthorizationStatus("MAYBE")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format := DefaultRedsysFormat()
			tt.mutate(format)
			if err := format.Validate(); err == nil {
				t.Error("expected validation error, got none")
			}
		})
	}
}

func TestFormatCompileErrors(t *testing.T) {
	format := DefaultRedsysFormat()
	format.AmountPattern = `(\d+\.\d{2}` // unbalanced
	if _, err := format.compile(); err == nil {
		t.Error("expected compile error for invalid regexp")
	}

	format = DefaultRedsysFormat()
	format.AmountPattern = `\d+\.\d{2}` // no capture group
	if _, err := format.compile(); err == nil {
		t.Error("expected compile error for missing capture group")
	}

	format = DefaultRedsysFormat()
	format.HeaderPattern = `^(\d{9})$` // only one capture group
	if _, err := format.compile(); err == nil {
		t.Error("expected compile error for header with one capture group")
	}
}

func TestFormatClone(t *testing.T) {
	format := DefaultRedsysFormat()
	clone := format.Clone()

	clone.LookaheadLines = 99
	clone.AuthorizationVocabulary["CANCELADA"] = models.AuthorizationDenied

	if format.LookaheadLines == 99 {
		t.Error("clone shares scalar state with original")
	}
	if _, ok := format.AuthorizationVocabulary["CANCELADA"]; ok {
		t.Error("clone shares vocabulary map with original")
	}
}
