// Package assistant is the answer-generation boundary: it retrieves course
// content for a question, assembles a grounded prompt with bounded
// conversation history, and calls the configured model. Retrieval owns
// relevance; this package owns prompt shape and citation formatting.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/lectern-ai/lectern/internal/retrieve"
)

const systemPrompt = `You are a teaching assistant for a course-materials library.
Answer the question using only the provided course material excerpts.
Each excerpt is labeled with its source. If the excerpts do not contain
the answer, say so plainly instead of guessing. Keep answers concise.`

// Exchange is one past question/answer pair. History is opaque text; no
// session persistence happens here.
type Exchange struct {
	Question string
	Answer   string
}

// Source is one cited origin of an answer.
type Source struct {
	Citation string // "[Course - Lesson N]"
	Link     string // lesson link, may be empty
}

// Answer is a generated response with its source citations in retrieval
// order, deduplicated.
type Answer struct {
	Text    string
	Sources []Source
}

// Retriever is the retrieval slice the assistant needs.
type Retriever interface {
	Search(ctx context.Context, query string, filter retrieve.Filter) ([]retrieve.Result, error)
}

// Assistant answers questions grounded in retrieved course content.
type Assistant struct {
	g          *genkit.Genkit
	model      string
	retriever  Retriever
	maxHistory int
	logger     *slog.Logger
}

// New creates an Assistant generating with the named model and keeping at
// most maxHistory prior exchanges in the prompt. logger may be nil
// (slog.Default is used).
func New(g *genkit.Genkit, model string, retriever Retriever, maxHistory int, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		g:          g,
		model:      model,
		retriever:  retriever,
		maxHistory: maxHistory,
		logger:     logger,
	}
}

// Ask retrieves content for the question under the given filter and
// generates a grounded answer. Retrieval sentinels (retrieve.ErrNoResults,
// retrieve.ErrCourseNotFound) propagate to the caller unchanged.
func (a *Assistant) Ask(ctx context.Context, question string, filter retrieve.Filter, history []Exchange) (Answer, error) {
	results, err := a.retriever.Search(ctx, question, filter)
	if err != nil {
		return Answer{}, err
	}

	messages := buildMessages(question, results, history, a.maxHistory)

	resp, err := genkit.Generate(ctx, a.g,
		ai.WithModelName(a.model),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
	)
	if err != nil {
		return Answer{}, fmt.Errorf("generating answer: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	a.logger.Debug("answer generated",
		"chunks", len(results), "history", len(history), "answer_len", len(text))

	return Answer{Text: text, Sources: collectSources(results)}, nil
}

// buildMessages assembles the generation prompt: the most recent
// maxHistory exchanges as alternating user/model messages, then one user
// message carrying the labeled excerpts and the question.
func buildMessages(question string, results []retrieve.Result, history []Exchange, maxHistory int) []*ai.Message {
	if maxHistory >= 0 && len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	messages := make([]*ai.Message, 0, 2*len(history)+1)
	for _, ex := range history {
		messages = append(messages,
			ai.NewUserMessage(ai.NewTextPart(ex.Question)),
			ai.NewModelMessage(ai.NewTextPart(ex.Answer)),
		)
	}

	var sb strings.Builder
	sb.WriteString("Course material excerpts:\n\n")
	for _, r := range results {
		sb.WriteString(r.Citation())
		sb.WriteString("\n")
		sb.WriteString(r.Text)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)

	return append(messages, ai.NewUserMessage(ai.NewTextPart(sb.String())))
}

// collectSources deduplicates result citations preserving retrieval order.
func collectSources(results []retrieve.Result) []Source {
	seen := make(map[string]bool, len(results))
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		citation := r.Citation()
		if seen[citation] {
			continue
		}
		seen[citation] = true
		sources = append(sources, Source{Citation: citation, Link: r.LessonLink})
	}
	return sources
}
