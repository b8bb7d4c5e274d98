package models

const (
	// keys used by the stuff documents chain
	InputDocumentsKey = "input_documents"
	QuestionKey       = "question"
	ContextKey        = "context"
	AnswerKey         = "text"

	DocumentSeparator = "\n\n"

	MetaChunkID    = "chunk_id"
	MetaPageNumber = "page_number"
	MetaSource     = "source"
)

var (
	StuffQAPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.context}}

Question: {{.question}}
Helpful Answer:`
)
