package store

import "time"

// LLMExchange represents a prompt/response pair for caching
type LLMExchange struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"` // e.g. "openai"
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
}

// SaveLLMExchange writes an exchange under the llm kind and returns its path.
func (c *Cache) SaveLLMExchange(exchange LLMExchange) (string, error) {
	if exchange.Timestamp.IsZero() {
		exchange.Timestamp = time.Now()
	}
	return SaveJSON(c, KindLLM, exchange)
}

// LatestLLMExchange loads the most recently cached exchange.
func (c *Cache) LatestLLMExchange() (LLMExchange, string, error) {
	return LoadLatestJSON[LLMExchange](c, KindLLM)
}
