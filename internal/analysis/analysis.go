// Package analysis summarizes stored sites with a language model and fans the
// results out to a set of sinks.
package analysis

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyInput is returned when a site has no text left to analyze.
var ErrEmptyInput = errors.New("no analyzable text")

// SystemPrompt frames the summarizer as a customer-segment analyst.
const SystemPrompt = "You are an expert data analyzer. You will be provided with web scraped data in markdown " +
	"format of a startup website. The scraped data provided to you will follow a specific format. Since the data " +
	"is scraped from multiple pages of the website you will be provided with both the link and the content of " +
	"that link. The link will begin with '--' and following the link will be the website's content. You should " +
	"extract information about the target customer segment of the product only. Only use the context that " +
	"provide you with relevent information and ignore irrelevant context."

const userPromptPrefix = "Here is the web scraped data:\n"

// UserPrompt wraps the site blob in the user message.
func UserPrompt(blob string) string {
	return userPromptPrefix + blob
}

// Result is one site's analysis as handed to every sink.
type Result struct {
	RunID         string    `json:"run_id"`
	Site          string    `json:"site"`
	Analysis      string    `json:"analysis"`
	Model         string    `json:"model"`
	InputTokens   int       `json:"input_tokens"`
	InputHash     string    `json:"input_hash"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Tokenizer bounds the prompt size.
type Tokenizer interface {
	// Truncate returns text cut to at most maxTokens tokens and the
	// resulting token count.
	Truncate(text string, maxTokens int) (string, int, error)
}

// Summarizer sends one system + user exchange to a language model.
type Summarizer interface {
	Summarize(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}

// Sink receives every successful Result. Sinks are driven from a single
// goroutine; Close is called once after the last Write.
type Sink interface {
	Name() string
	Write(ctx context.Context, res Result) error
	Close(ctx context.Context) error
}
