package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

type ServiceConfig struct {
	ProxyURL   string
	HTTPClient *http.Client
}

// Service asks the explanation proxy why an answer is correct. The
// proxy relays to an LLM backend and returns a chat-completion shaped
// body plus citation URLs.
type Service struct {
	proxyURL string
	client   *http.Client
}

type Result struct {
	Explanation string   `json:"explanation"`
	Citations   []string `json:"citations"`
	Source      string   `json:"source"`
}

func NewService(cfg ServiceConfig) *Service {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 18 * time.Second}
	}
	return &Service{
		proxyURL: strings.TrimSpace(cfg.ProxyURL),
		client:   client,
	}
}

// Explain never fails the caller: any proxy trouble degrades to a
// locally composed explanation.
func (s *Service) Explain(ctx context.Context, question, correctAnswer string) (Result, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return Result{}, fmt.Errorf("question is required")
	}
	if len(q) > 2000 {
		return Result{}, fmt.Errorf("question too long")
	}

	if s.proxyURL == "" {
		return Result{Explanation: localExplanation(q, correctAnswer), Citations: []string{}, Source: "local"}, nil
	}

	res, err := s.explainWithProxy(ctx, q, correctAnswer)
	if err != nil {
		log.Printf("explain: proxy call failed: %v", err)
		return Result{Explanation: localExplanation(q, correctAnswer), Citations: []string{}, Source: "local_fallback"}, nil
	}
	return res, nil
}

type explainRequest struct {
	Question      string `json:"question"`
	CorrectAnswer string `json:"correct_answer"`
}

type proxyResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

func (s *Service) explainWithProxy(ctx context.Context, question, correctAnswer string) (Result, error) {
	body, err := json.Marshal(explainRequest{Question: question, CorrectAnswer: correctAnswer})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.proxyURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("proxy status %d", resp.StatusCode)
	}

	var out proxyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, err
	}

	// Missing content or citations are tolerated, not errors.
	explanation := ""
	if len(out.Choices) > 0 {
		explanation = strings.TrimSpace(out.Choices[0].Message.Content)
	}
	citations := out.Citations
	if citations == nil {
		citations = []string{}
	}
	return Result{Explanation: explanation, Citations: citations, Source: "proxy"}, nil
}

func localExplanation(question, correctAnswer string) string {
	if strings.TrimSpace(correctAnswer) == "" {
		return "No explanation is available for this question right now."
	}
	return fmt.Sprintf("The correct answer is %q. A detailed explanation is not available right now; compare the remaining options against the question and note why each one falls short.", correctAnswer)
}
