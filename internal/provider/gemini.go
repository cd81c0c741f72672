package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chatrelay/chatrelay/internal/model"
)

const geminiName = "Gemini"

// geminiContent is one turn in Gemini's contents array. Gemini calls
// the assistant role "model".
type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig geminiGenConfig  `json:"generationConfig"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Gemini is the Google generative language backend.
type Gemini struct {
	apiKey     string
	baseURL    string
	chatModel  string
	httpClient *http.Client
}

// NewGemini creates a Gemini client. Pass nil to use the default HTTP client.
func NewGemini(apiKey, baseURL, chatModel string, httpClient *http.Client) *Gemini {
	if httpClient == nil {
		httpClient = newHTTPClient(60 * time.Second)
	}
	return &Gemini{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  chatModel,
		httpClient: httpClient,
	}
}

// Name implements Client.
func (g *Gemini) Name() string { return geminiName }

// Configured reports whether an API key is present.
func (g *Gemini) Configured() bool { return g.apiKey != "" }

// buildContents maps history into Gemini's contents array, with the
// current message as the final user turn.
func (g *Gemini) buildContents(history model.History, current string) []geminiContent {
	recent := history.Tail(maxHistoryTurns)
	contents := make([]geminiContent, 0, len(recent)+1)

	for _, turn := range recent {
		role := "user"
		if turn.Role == model.RoleAssistant {
			role = "model"
		}
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: turn.Content}},
		})
	}

	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: current}},
	})
	return contents
}

// Send implements Client.
func (g *Gemini) Send(ctx context.Context, msg string, history model.History) (string, error) {
	if !g.Configured() {
		return "", &Error{Provider: geminiName, Message: "API key not configured"}
	}

	body, err := json.Marshal(geminiRequest{
		Contents: g.buildContents(history, msg),
		GenerationConfig: geminiGenConfig{
			Temperature:     genTemperature,
			MaxOutputTokens: genMaxTokens,
			TopP:            0.95,
		},
	})
	if err != nil {
		return "", &Error{Provider: geminiName, Message: "marshal request", Err: err}
	}

	endpoint := g.baseURL + "/models/" + g.chatModel + ":generateContent?key=" + url.QueryEscape(g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Provider: geminiName, Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.httpClient.Do(req)
	if err != nil {
		return "", &Error{Provider: geminiName, Message: "request failed", Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", &Error{Provider: geminiName, Message: "read response", Err: err}
	}

	var payload geminiResponse
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		_ = json.Unmarshal(raw, &payload)
		msg := payload.Error.Message
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return "", &Error{Provider: geminiName, StatusCode: res.StatusCode, Message: "API error: " + msg}
	}

	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &Error{Provider: geminiName, Message: "decode response", Err: err}
	}
	if len(payload.Candidates) == 0 ||
		len(payload.Candidates[0].Content.Parts) == 0 ||
		payload.Candidates[0].Content.Parts[0].Text == nil {
		return "", &Error{Provider: geminiName, Message: "missing reply in response"}
	}

	return strings.TrimSpace(*payload.Candidates[0].Content.Parts[0].Text), nil
}
