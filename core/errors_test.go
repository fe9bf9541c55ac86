package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTaxonomySentinels(t *testing.T) {
	nf := NewNotFound("session", "abc")
	if !errors.Is(nf, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if errors.Is(nf, ErrEngine) {
		t.Error("NotFoundError must not match ErrEngine")
	}

	ve := &ValidationError{Field: "rounds", Value: 0, Message: "must be at least 1"}
	if !errors.Is(ve, ErrValidation) {
		t.Error("ValidationError should match ErrValidation")
	}

	inner := fmt.Errorf("connection reset")
	ee := NewEngineError("run_round", inner)
	if !errors.Is(ee, ErrEngine) {
		t.Error("EngineError should match ErrEngine")
	}
	if !errors.Is(ee, inner) {
		t.Error("EngineError should unwrap to the inner error")
	}

	xe := &ExtractionError{Stage: "consolidation", Err: inner}
	if !errors.Is(xe, ErrExtraction) {
		t.Error("ExtractionError should match ErrExtraction")
	}
}

func TestErrorTaxonomySurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("begin session: %w", NewNotFound("checkpoint", "c1"))
	if !errors.Is(err, ErrNotFound) {
		t.Error("wrapped NotFound should still match")
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatal("errors.As should extract NotFoundError")
	}
	if nf.Kind != "checkpoint" || nf.ID != "c1" {
		t.Errorf("unexpected detail: %+v", nf)
	}
}

func TestNewEngineErrorNil(t *testing.T) {
	if NewEngineError("broadcast", nil) != nil {
		t.Error("nil inner error should yield nil")
	}
}
