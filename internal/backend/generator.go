package backend

import (
	"context"
	"fmt"
)

// ModelGenerator binds the client to one model and composes retrieved
// context into the prompt. It satisfies generate.Backend.
type ModelGenerator struct {
	client *Client
	model  string
}

// NewGenerator returns a generator for the given model name.
func NewGenerator(client *Client, model string) *ModelGenerator {
	return &ModelGenerator{client: client, model: model}
}

// Generate sends the instruction with the retrieved context prepended.
// Empty context means the query stands alone; that is not an error.
func (g *ModelGenerator) Generate(ctx context.Context, instruction, contextText string) (string, error) {
	prompt := instruction
	if contextText != "" {
		prompt = fmt.Sprintf("Use the following context when answering.\n\nContext:\n%s\n\n%s", contextText, instruction)
	}
	return g.client.Generate(ctx, g.model, prompt)
}

// Name identifies the backend and model for logging.
func (g *ModelGenerator) Name() string {
	return "ollama:" + g.model
}
