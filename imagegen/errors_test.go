package imagegen

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"spellforge/poll"
)

func TestCheckResponse(t *testing.T) {
	ok := &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(""))}
	if err := CheckResponse(SDAPIV1, ok); err != nil {
		t.Errorf("2xx: err = %v", err)
	}

	bad := &http.Response{StatusCode: http.StatusServiceUnavailable, Body: io.NopCloser(strings.NewReader(" busy \n"))}
	err := CheckResponse(Spellforge, bad)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Provider != Spellforge || apiErr.StatusCode != 503 || !apiErr.Retryable() {
		t.Errorf("APIError = %+v", apiErr)
	}
	if got := err.Error(); got != "imagegen: SPELLFORGE returned status 503: busy" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAPIError_Retryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{400, false},
		{401, false},
		{429, true},
		{500, true},
		{502, true},
	}
	for _, tt := range tests {
		e := &APIError{StatusCode: tt.status}
		if got := e.Retryable(); got != tt.want {
			t.Errorf("Retryable(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
	if got := (&APIError{Provider: DallE, StatusCode: 404}).Error(); got != "imagegen: DALL_E returned status 404" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrTimeoutMatchesPoller(t *testing.T) {
	err := &poll.TimeoutError{}
	if !errors.Is(err, ErrTimeout) {
		t.Error("poll.TimeoutError should match imagegen.ErrTimeout")
	}
}
