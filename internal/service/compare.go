package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ragchat/internal/domain"
)

// Compare asks the generator how well the CV at cvPath fits the job
// description at jobPath. Both files are read in full and truncated to
// compare_max_chars.
func (s *RAGService) Compare(ctx context.Context, cvPath, jobPath string) (string, error) {
	cv, err := s.loadFull(cvPath)
	if err != nil {
		return "", fmt.Errorf("cv: %w", err)
	}
	job, err := s.loadFull(jobPath)
	if err != nil {
		return "", fmt.Errorf("job description: %w", err)
	}
	if !s.generator.Available() {
		return "", fmt.Errorf("%w: comparison needs a language model", domain.ErrBackendUnavailable)
	}
	p, err := s.prompts.Compare(truncateRunes(cv, s.opts.CompareMaxChars), truncateRunes(job, s.opts.CompareMaxChars))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	text, err := s.generator.Generate(ctx, domain.GenerateRequest{
		System:      s.prompts.System(),
		Prompt:      p,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return "", backendErr("compare", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty comparison", domain.ErrBackendUnavailable)
	}
	return text, nil
}

func (s *RAGService) loadFull(path string) (string, error) {
	text, err := s.loader.Load(path)
	if err != nil {
		if errors.Is(err, domain.ErrLoad) || errors.Is(err, domain.ErrUnsupportedType) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrLoad, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s has no text", domain.ErrLoad, path)
	}
	return text, nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
