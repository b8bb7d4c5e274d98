package rag

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
)

// Answerer stuffs every retrieved chunk into a single prompt and returns the completion.
type Answerer struct {
	chain       chains.StuffDocuments
	temperature float64
}

func NewAnswerer(llm llms.Model, temperature float64) *Answerer {
	prompt := prompts.NewPromptTemplate(models.StuffQAPromptTemplate, []string{models.ContextKey, models.QuestionKey})
	chain := chains.NewStuffDocuments(chains.NewLLMChain(llm, prompt))
	chain.InputKey = models.InputDocumentsKey
	chain.DocumentVariableName = models.ContextKey
	chain.Separator = models.DocumentSeparator
	return &Answerer{chain: chain, temperature: temperature}
}

// Answer returns the completion verbatim. An empty retrieved set is reported as
// EmptyContentError without calling the backend.
func (a *Answerer) Answer(ctx context.Context, question string, retrieved []models.ScoredChunk) (string, error) {
	const op = "answer question"
	if len(retrieved) == 0 {
		return "", models.Errorf(models.KindEmptyContent, op, "no content available")
	}

	docs := make([]schema.Document, len(retrieved))
	for i, r := range retrieved {
		docs[i] = schema.Document{
			PageContent: r.Content,
			Metadata: map[string]any{
				models.MetaChunkID:    strconv.Itoa(r.ChunkID),
				models.MetaPageNumber: strconv.Itoa(r.PageNumber),
			},
			Score: r.Similarity,
		}
	}

	var opts []chains.ChainCallOption
	if a.temperature > 0 {
		opts = append(opts, chains.WithTemperature(a.temperature))
	}

	log.Debug().Int("documents", len(docs)).Str("question", question).Msg("Calling stuff chain")
	out, err := chains.Call(ctx, a.chain, map[string]any{
		models.InputDocumentsKey: docs,
		models.QuestionKey:       question,
	}, opts...)
	if err != nil {
		return "", llmservice.ClassifyError(op, err)
	}

	answer, ok := out[models.AnswerKey].(string)
	if !ok {
		return "", models.Errorf(models.KindBackend, op, "malformed chain output: %v", out)
	}
	return answer, nil
}
