// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package validation

import (
	"strings"
	"testing"
)

type testRequest struct {
	Summary  string `validate:"required,max=10"`
	Priority int    `validate:"omitempty,min=1,max=5"`
	Status   string `validate:"omitempty,oneof=open closed"`
}

func TestValidateStructPasses(t *testing.T) {
	t.Parallel()

	if err := ValidateStruct(&testRequest{Summary: "10-50", Priority: 2, Status: "open"}); err != nil {
		t.Errorf("expected valid struct, got %v", err)
	}
	if err := ValidateStruct(&testRequest{Summary: "10-50"}); err != nil {
		t.Errorf("optional fields at zero should pass, got %v", err)
	}
}

func TestValidateStructRequired(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&testRequest{})
	if err == nil {
		t.Fatal("expected validation error for missing summary")
	}
	if len(err.Errors()) != 1 {
		t.Fatalf("expected 1 error, got %d", len(err.Errors()))
	}
	fe := err.Errors()[0]
	if fe.Field() != "Summary" || fe.Tag() != "required" {
		t.Errorf("unexpected field error: %s/%s", fe.Field(), fe.Tag())
	}
	if !strings.Contains(err.Error(), "Summary is required") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestValidateStructMultipleErrors(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&testRequest{Summary: "far too long for the limit", Priority: 9, Status: "pending"})
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if len(err.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %d: %s", len(err.Errors()), err.Error())
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("expected joined messages, got %s", err.Error())
	}

	details := err.Details()
	fields, ok := details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 3 {
		t.Errorf("unexpected details: %+v", details)
	}
}

func TestValidateStructOneofMessage(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&testRequest{Summary: "ok", Status: "bogus"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "must be one of: open closed") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestGetValidatorSingleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("expected the same validator instance")
	}
}
