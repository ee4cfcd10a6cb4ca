package models

import "testing"

func TestHeadersGetCaseInsensitive(t *testing.T) {
	h := Headers{
		{Name: "Content-Type", Value: "text/html"},
		{Name: "content-type", Value: "shadowed"},
		{Name: "X-Token", Value: "abc"},
	}

	if got := h.Get("content-TYPE"); got != "text/html" {
		t.Errorf("Get = %q, want first match", got)
	}
	if got := h.Get("Missing"); got != "" {
		t.Errorf("Get missing = %q, want empty", got)
	}
	if !h.Has("x-token") || h.Has("Authorization") {
		t.Error("Has mismatch")
	}
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status *int
		want   int
	}{
		{nil, 0},
		{intPtr(200), 2},
		{intPtr(301), 3},
		{intPtr(404), 4},
		{intPtr(503), 5},
	}
	for _, tt := range tests {
		e := Exchange{ResponseStatus: tt.status}
		if got := e.StatusClass(); got != tt.want {
			t.Errorf("StatusClass(%v) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func intPtr(v int) *int { return &v }

func TestBodyIsEmpty(t *testing.T) {
	if !(Body{}).IsEmpty() {
		t.Error("zero body should be empty")
	}
	if (Body{Text: "x"}).IsEmpty() {
		t.Error("body with text should not be empty")
	}
}
