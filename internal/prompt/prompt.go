// Package prompt renders the system message and the answer and compare
// prompts sent to the generator. Each template can be replaced by a file.
package prompt

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"ragchat/internal/domain"
)

const defaultSystem = `You are a careful assistant that answers questions about the user's documents. Use only the provided context.`

const defaultAnswer = `Answer the question using only the context below.
If the context does not contain enough information, say that you are not sure instead of guessing.
Answer in the same language as the question.
Cite the snippets you used as [n].

Context:
{{range .Snippets}}[{{.N}}] From {{.Source}}:
{{.Content}}

{{end}}Question: {{.Question}}
Answer:`

const defaultCompare = `Compare the CV with the job description below.
Give:
1. A fit rating from 1 to 10.
2. The candidate's strengths for this role.
3. Gaps between the CV and the requirements.
4. Concrete suggestions to improve the CV for this role.

CV:
{{.CV}}

Job description:
{{.Job}}`

// Files names optional override files. Empty fields keep the defaults.
type Files struct {
	System  string
	Answer  string
	Compare string
}

// Snippet is one numbered context entry in the answer prompt.
type Snippet struct {
	N       int
	Source  string
	Content string
}

// Templates holds the parsed prompts.
type Templates struct {
	system  string
	answer  *template.Template
	compare *template.Template
}

// Default returns the built-in templates.
func Default() *Templates {
	return &Templates{
		system:  defaultSystem,
		answer:  template.Must(template.New("answer").Parse(defaultAnswer)),
		compare: template.Must(template.New("compare").Parse(defaultCompare)),
	}
}

// Load reads override files on top of the defaults.
func Load(files Files) (*Templates, error) {
	t := Default()
	if files.System != "" {
		data, err := os.ReadFile(files.System)
		if err != nil {
			return nil, fmt.Errorf("read system prompt: %w", err)
		}
		t.system = strings.TrimSpace(string(data))
	}
	var err error
	if t.answer, err = parseFile("answer", files.Answer, t.answer); err != nil {
		return nil, err
	}
	if t.compare, err = parseFile("compare", files.Compare, t.compare); err != nil {
		return nil, err
	}
	return t, nil
}

func parseFile(name, path string, fallback *template.Template) (*template.Template, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s prompt: %w", name, err)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s prompt %s: %w", name, path, err)
	}
	return tmpl, nil
}

func (t *Templates) System() string { return t.system }

// Answer renders the grounded question prompt. Snippets are numbered from 1
// in retrieval order.
func (t *Templates) Answer(question string, results []domain.SearchResult) (string, error) {
	snippets := make([]Snippet, len(results))
	for i, r := range results {
		snippets[i] = Snippet{N: i + 1, Source: r.Chunk.Source, Content: r.Chunk.Content}
	}
	return render(t.answer, map[string]any{"Question": question, "Snippets": snippets})
}

// Compare renders the CV versus job description prompt.
func (t *Templates) Compare(cv, job string) (string, error) {
	return render(t.compare, map[string]any{"CV": cv, "Job": job})
}

func render(tmpl *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
