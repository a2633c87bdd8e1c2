package analysis

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model used for analysis.
const DefaultModelName = "gemini-2.5-flash"

const analysePrompt = "You are a personal finance assistant.\n\n" +
	"Task:\n" +
	"- The user just recorded the following transaction:\n%s\n\n" +
	"- These are the user's transactions of the last days:\n%s\n\n" +
	"Give a short, concrete assessment of the new transaction in the " +
	"context of the recent spending. Two to three sentences, plain text, " +
	"no Markdown."

// Gemini is an Analyser backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini analyser. Credentials are taken from the
// environment, as with the rest of the genai client configuration.
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	if model == "" {
		model = DefaultModelName
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

func (g *Gemini) Analyse(ctx context.Context, currentRecord, recentRecords string) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: fmt.Sprintf(analysePrompt, currentRecord, recentRecords)},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}

	return text, nil
}
