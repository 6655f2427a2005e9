package domain

// ChatRole is the author of a chat turn.
type ChatRole string

// Chat roles.
const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of a buddy conversation.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// TradingContext is optional UI state appended to the system prompt so
// the buddy can reference what the user is looking at.
type TradingContext struct {
	SelectedToken    string  `json:"selectedToken,omitempty"`
	PortfolioValue   float64 `json:"portfolioValue,omitempty"`
	MarketConditions string  `json:"marketConditions,omitempty"`
}
