package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/advisorcrm/backend/src/config"
	"github.com/username/advisorcrm/backend/src/logger"
	"github.com/username/advisorcrm/backend/src/models"
)

// proposalServiceImpl calls an OpenAI-compatible chat-completions endpoint to
// obtain a candidate allocation. The proposer is a pure boundary: whatever
// comes back is treated as untrusted caller input and goes through the same
// normalize-then-compute path as a hand-entered allocation.
type proposalServiceImpl struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
}

func NewProposalService() AllocationProposer {
	return &proposalServiceImpl{
		httpClient: &http.Client{Timeout: config.Cfg.ProposerTimeout},
		apiURL:     config.Cfg.ProposerAPIURL,
		apiKey:     config.Cfg.ProposerAPIKey,
		model:      config.Cfg.ProposerModel,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const proposalSystemPrompt = `You are an assistant for a financial advisor. ` +
	`Given a client brief, a risk target (1-7) and a product catalog, propose a portfolio allocation. ` +
	`Respond with a JSON array only, no prose: [{"productId": <id>, "percentage": <number>}, ...]. ` +
	`Use only product ids from the catalog. Percentages should sum to about 100.`

func (s *proposalServiceImpl) ProposeAllocation(ctx context.Context, brief string, riskTarget int, products []models.ProductRecord) ([]models.AllocationLine, error) {
	log := logger.FromContext(ctx)

	if s.apiURL == "" {
		return nil, ErrProposerDisabled
	}

	catalog := make([]map[string]any, 0, len(products))
	for _, p := range products {
		entry := map[string]any{
			"id":       p.ID,
			"name":     p.Name,
			"category": p.Category(),
		}
		if p.RiskIndicator != nil {
			entry["risk"] = *p.RiskIndicator
		}
		catalog = append(catalog, entry)
	}
	catalogJSON, err := json.Marshal(catalog)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding catalog: %v", ErrProposalFailed, err)
	}

	userPrompt := fmt.Sprintf("Client brief: %s\nRisk target: %d\nProduct catalog: %s",
		brief, riskTarget, catalogJSON)

	payload, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: proposalSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrProposalFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrProposalFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProposalFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrProposalFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Error("Proposer API returned non-200", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: upstream status %d", ErrProposalFailed, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrProposalFailed, err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrProposalFailed)
	}

	lines, err := parseProposedAllocation(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	log.Info("Allocation proposal received", "lines", len(lines))
	return lines, nil
}

// parseProposedAllocation extracts the JSON array from the model's reply.
// Models occasionally wrap the array in markdown fences or prose; take the
// outermost bracket pair rather than trusting the reply to be bare JSON.
func parseProposedAllocation(content string) ([]models.AllocationLine, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("%w: no JSON array in reply", ErrProposalFailed)
	}

	var lines []models.AllocationLine
	if err := json.Unmarshal([]byte(content[start:end+1]), &lines); err != nil {
		return nil, fmt.Errorf("%w: malformed allocation JSON: %v", ErrProposalFailed, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: proposed allocation is empty", ErrProposalFailed)
	}
	return lines, nil
}
