package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budget/internal/core"
)

func TestParseWhen(t *testing.T) {
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{"empty is now", "", now, false},
		{"whitespace is now", "  ", now, false},
		{"rfc3339", "2025-08-01T09:30:00Z", time.Date(2025, 8, 1, 9, 30, 0, 0, time.UTC), false},
		{"date only", "2025-07-25", time.Date(2025, 7, 25, 0, 0, 0, 0, time.UTC), false},
		{"european format", "25/07/2025", time.Time{}, true},
		{"impossible date", "2025-02-30", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWhen("timestamp", tt.raw, now)
			if tt.wantErr {
				if !core.IsValidation(err) {
					t.Errorf("parseWhen() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseWhen() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseWhen() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSyncRequestShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"user_name":"a","amount":"1.00"},{"user_name":"b","amount":2}]`, 2},
		{"wrapped", `{"purchases":[{"user_name":"a","amount":"1.00"}]}`, 1},
		{"wrapped empty", `{"purchases":[]}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req syncRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if len(req) != tt.want {
				t.Errorf("len = %d, want %d", len(req), tt.want)
			}
		})
	}

	var empty syncRequest
	if _, err := empty.toInputs(time.Now()); !core.IsValidation(err) {
		t.Errorf("toInputs() on empty batch error = %v, want validation error", err)
	}
}

func TestPurchaseRequestToInput(t *testing.T) {
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	var req purchaseRequest
	body := `{"user_name":" Robert\u0007 ","amount":"12.50","category":"Robert - Groceries","description":"weekly shop"}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	in, err := req.toInput(now)
	if err != nil {
		t.Fatalf("toInput() error = %v", err)
	}
	if in.User != "Robert" {
		t.Errorf("User = %q, want Robert", in.User)
	}
	if in.Amount.Cents != 1250 {
		t.Errorf("Amount = %d cents, want 1250", in.Amount.Cents)
	}
	if in.CategoryName != "Robert - Groceries" || in.CategoryID != nil {
		t.Errorf("category = %q/%v", in.CategoryName, in.CategoryID)
	}
	if !in.OccurredAt.Equal(now) {
		t.Errorf("OccurredAt = %v, want now", in.OccurredAt)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"count":3}`, false},
		{"empty body", ``, false},
		{"malformed", `{"count":`, true},
		{"wrong type", `{"count":"three"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := generateRequest{Count: 12}
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := decodeJSON(httptest.NewRecorder(), r, &req)
			if tt.wantErr {
				if !core.IsValidation(err) {
					t.Errorf("decodeJSON() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Errorf("decodeJSON() error = %v", err)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.NewValidationError("amount", core.ErrInvalidAmount), http.StatusBadRequest},
		{"not found", core.NewNotFoundError("account", 1), http.StatusNotFound},
		{"constraint", &core.ConstraintViolationError{Constraint: "accounts_name_key"}, http.StatusConflict},
		{"insufficient funds", &core.InsufficientFundsError{AccountID: 1}, http.StatusUnprocessableEntity},
		{"connectivity", &core.ConnectivityError{Op: "ping", Err: errors.New("down")}, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
