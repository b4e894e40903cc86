// Package generator holds the language model backends used to compose answers.
package generator

import (
	"context"
	"fmt"

	"ragchat/internal/domain"
)

// Null is the generator used when no model is configured. The answer
// composer checks Available and returns raw snippets instead of calling it.
type Null struct{}

var _ domain.Generator = Null{}

func (Null) Name() string    { return "none" }
func (Null) Available() bool { return false }

func (Null) Generate(context.Context, domain.GenerateRequest) (string, error) {
	return "", fmt.Errorf("%w: no language model configured", domain.ErrBackendUnavailable)
}
