package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/voicememo/errors"
)

type createRequest struct {
	RecordingID string `json:"recording_id" validate:"required"`
	Path        string `json:"path" validate:"required"`
	Mode        string `json:"mode" validate:"omitempty,oneof=mixed separated"`
}

type sinkConfig struct {
	Kind  string `mapstructure:"kind" validate:"oneof=none redis kafka"`
	Topic string `mapstructure:"topic" validate:"required_if=Kind kafka"`
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(createRequest{RecordingID: "r1", Path: "/tmp/a.m4a"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_MissingFields(t *testing.T) {
	err := Validate(createRequest{Mode: "stereo"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
	for _, want := range []string{"recording_id: is required", "path: is required", "mode: must be one of"} {
		if !strings.Contains(appErr.Message, want) {
			t.Errorf("expected %q in %q", want, appErr.Message)
		}
	}
	fields, _ := appErr.Details["fields"].([]FieldError)
	if len(fields) != 3 {
		t.Errorf("expected 3 field errors, got %d", len(fields))
	}
}

func TestValidate_MapstructureNames(t *testing.T) {
	err := Validate(sinkConfig{Kind: "kafka"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "topic: is required when") {
		t.Errorf("expected mapstructure field name, got %v", err)
	}
}
