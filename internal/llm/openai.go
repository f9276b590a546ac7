package llm

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dialtone-ai/greenroom/internal/config"
	"github.com/dialtone-ai/greenroom/internal/script"
	openai "github.com/sashabaranov/go-openai"
)

// chatCompleter abstracts the OpenAI API method we use, enabling test mocks.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI is a Generator backed by the OpenAI chat completion API.
type OpenAI struct {
	client      chatCompleter
	model       string
	temperature float32
}

// OpenAIOpts holds parameters for creating an OpenAI generator.
type OpenAIOpts struct {
	Config config.GeneratorConfig
	// For testing: inject a mock client instead of the real API.
	Client chatCompleter
}

// NewOpenAI creates an OpenAI generator. The API key is read from the
// OPENAI_API_KEY environment variable unless a client is injected.
func NewOpenAI(opts OpenAIOpts) (*OpenAI, error) {
	client := opts.Client
	if client == nil {
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("llm: OPENAI_API_KEY is not set")
		}
		client = openai.NewClient(key)
	}
	model := opts.Config.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{
		client:      client,
		model:       model,
		temperature: opts.Config.Temperature,
	}, nil
}

const generateSystemPrompt = `You write scripts for AI voice agents that handle phone calls for small businesses.
A script is a plain-text document with exactly these sections, each introduced by its marker line:

%s

Fill every section. Output only the script document, nothing before the first marker.`

const reviseSystemPrompt = `You revise scripts for AI voice agents. The script format uses exactly these section markers:

%s

You will receive the current script and an instruction. Apply the instruction, then output the COMPLETE revised script with all sections present.
Constraints:
%s`

// GenerateScript produces a complete initial script for a business.
func (o *OpenAI) GenerateScript(ctx context.Context, profile BusinessProfile) (script.Sections, error) {
	user := fmt.Sprintf("Business name: %s\n\nBusiness description:\n%s\n\nWrite the full agent script.",
		profile.Name, profile.Business)
	flat, err := o.complete(ctx, fmt.Sprintf(generateSystemPrompt, markerList()), user)
	if err != nil {
		return script.NewSections(), err
	}
	return o.parse(flat), nil
}

// ReviseSections returns a candidate section set applying the instruction.
func (o *OpenAI) ReviseSections(ctx context.Context, req ReviseRequest) (script.Sections, error) {
	constraints := req.Constraints
	if len(constraints) == 0 {
		constraints = DefaultConstraints
	}
	system := fmt.Sprintf(reviseSystemPrompt, markerList(), "- "+strings.Join(constraints, "\n- "))
	user := fmt.Sprintf("Current script:\n\n%s\n\nInstruction: %s", script.Compile(req.Sections), req.Instruction)
	flat, err := o.complete(ctx, system, user)
	if err != nil {
		return script.NewSections(), err
	}
	return o.parse(flat), nil
}

// complete runs one chat completion and returns the raw assistant text.
func (o *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// parse converts generator output to sections, logging dropped content.
func (o *OpenAI) parse(flat string) script.Sections {
	sections, report := script.Parse(flat)
	if report.DroppedBytes > 0 {
		log.Printf("llm: generator emitted %d bytes outside section markers (dropped): %q",
			report.DroppedBytes, report.DroppedPreview)
	}
	return sections
}

// markerList renders the schema's marker lines for prompt embedding.
func markerList() string {
	var b strings.Builder
	for i, name := range script.Names() {
		if i > 0 {
			b.WriteString("\n")
		}
		marker, _ := script.Marker(name)
		b.WriteString(marker)
	}
	return b.String()
}
