package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
)

type VertexGemini struct {
	client    *vertexgenai.Client
	model     *vertexgenai.GenerativeModel
	embedder  *vertexgenai.EmbeddingModel
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName, embeddingModel string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	if embeddingModel == "" {
		embeddingModel = "text-embedding-004"
	}

	return &VertexGemini{
		client:    c,
		model:     c.GenerativeModel(modelName),
		embedder:  c.EmbeddingModel(embeddingModel),
		modelName: modelName,
	}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) Analyze(ctx context.Context, transcript, systemPrompt string) (*Analysis, error) {
	m := v.client.GenerativeModel(v.modelName)
	m.GenerationConfig.ResponseMIMEType = "application/json"
	if systemPrompt != "" {
		m.SystemInstruction = &vertexgenai.Content{
			Parts: []vertexgenai.Part{vertexgenai.Text(systemPrompt)},
		}
	}

	resp, err := m.GenerateContent(ctx, vertexgenai.Text(transcript))
	if err != nil {
		return nil, err
	}

	raw := candidateText(resp)
	if raw == "" {
		return nil, fmt.Errorf("gemini: empty analysis response")
	}

	var out Analysis
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		// models occasionally wrap JSON in prose; take the outermost object
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("gemini: non-JSON analysis response: %w", err)
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
			return nil, fmt.Errorf("gemini: parse analysis: %w", err)
		}
	}
	return &out, nil
}

func (v *VertexGemini) Chat(ctx context.Context, messages []Message, systemPrompt string) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("gemini: empty message list")
	}

	m := v.client.GenerativeModel(v.modelName)
	if systemPrompt != "" {
		m.SystemInstruction = &vertexgenai.Content{
			Parts: []vertexgenai.Part{vertexgenai.Text(systemPrompt)},
		}
	}

	cs := m.StartChat()
	for _, msg := range messages[:len(messages)-1] {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		cs.History = append(cs.History, &vertexgenai.Content{
			Role:  role,
			Parts: []vertexgenai.Part{vertexgenai.Text(msg.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, vertexgenai.Text(messages[len(messages)-1].Content))
	if err != nil {
		return "", err
	}
	return candidateText(resp), nil
}

func (v *VertexGemini) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := v.embedder.EmbedContent(ctx, vertexgenai.Text(text))
	if err != nil {
		return nil, err
	}
	if res.Embedding == nil {
		return nil, fmt.Errorf("gemini: empty embedding response")
	}
	return res.Embedding.Values, nil
}

func candidateText(resp *vertexgenai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}
