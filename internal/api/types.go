package api

// ScoreRequest is a vLLM-style score request: the model scores text_2 as a
// response to text_1.
type ScoreRequest struct {
	Model string `json:"model"`
	Text1 string `json:"text_1"`
	Text2 string `json:"text_2"`
}

// ScoreResponse is a vLLM-style score response.
type ScoreResponse struct {
	ID     string      `json:"id"`
	Object string      `json:"object"`
	Model  string      `json:"model"`
	Data   []ScoreData `json:"data"`
	Usage  Usage       `json:"usage"`
}

// ScoreData is a single score entry in a score response.
type ScoreData struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ErrorResponse represents an API error response body.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
