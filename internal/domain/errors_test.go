package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{name: "nil", err: nil, contains: ""},
		{name: "empty input", err: ErrEmptyInput, contains: "No text could be extracted"},
		{name: "wrapped not built", err: fmt.Errorf("retrieve: %w", ErrIndexNotBuilt), contains: "index documents first"},
		{name: "unsupported", err: fmt.Errorf("notes.docx: %w", ErrUnsupportedType), contains: "PDF and TXT"},
		{name: "load", err: fmt.Errorf("%w: cv.pdf: permission denied", ErrLoad), contains: "could not be read"},
		{name: "backend", err: fmt.Errorf("%w: 429", ErrBackendUnavailable), contains: "not available"},
		{name: "dimension", err: ErrDimensionMismatch, contains: "re-index"},
		{name: "unknown", err: errors.New("boom"), contains: "Something went wrong"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := UserMessage(tc.err)
			if tc.contains == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tc.contains)
			assert.NotContains(t, got, "429")
			assert.NotContains(t, got, "permission denied")
		})
	}
}
