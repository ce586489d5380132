package agentloop

import (
	"encoding/json"
	"time"

	"github.com/localbrain/localbrain/modelclient"
)

// TurnKind discriminates between turn types.
type TurnKind string

const (
	TurnUser              TurnKind = "user"
	TurnAssistant         TurnKind = "assistant"
	TurnInvocationResults TurnKind = "invocation_results"
)

// Turn is a single entry in the conversation history.
type Turn struct {
	Kind              TurnKind               `json:"kind"`
	Timestamp         time.Time              `json:"timestamp"`
	User              *UserTurn              `json:"user,omitempty"`
	Assistant         *AssistantTurn         `json:"assistant,omitempty"`
	InvocationResults *InvocationResultsTurn `json:"invocation_results,omitempty"`
}

// UserTurn holds user input.
type UserTurn struct {
	Content string `json:"content"`
}

// AssistantTurn holds the model's response, including any invocations the
// loop extracted from it.
type AssistantTurn struct {
	Content     string           `json:"content"`
	Invocations []Invocation     `json:"invocations,omitempty"`
	Usage       modelclient.Usage `json:"usage"`
	ResponseID  string           `json:"response_id,omitempty"`
}

// InvocationResultsTurn holds the results sent back to the model.
type InvocationResultsTurn struct {
	Results []InvocationResult `json:"results"`
}

// NewUserTurn creates a Turn wrapping user input.
func NewUserTurn(content string) Turn {
	return Turn{
		Kind:      TurnUser,
		Timestamp: time.Now(),
		User:      &UserTurn{Content: content},
	}
}

// NewAssistantTurn creates a Turn wrapping an assistant response.
func NewAssistantTurn(content string, invocations []Invocation, usage modelclient.Usage, responseID string) Turn {
	return Turn{
		Kind:      TurnAssistant,
		Timestamp: time.Now(),
		Assistant: &AssistantTurn{
			Content:     content,
			Invocations: invocations,
			Usage:       usage,
			ResponseID:  responseID,
		},
	}
}

// NewInvocationResultsTurn creates a Turn wrapping invocation results.
func NewInvocationResultsTurn(results []InvocationResult) Turn {
	return Turn{
		Kind:              TurnInvocationResults,
		Timestamp:         time.Now(),
		InvocationResults: &InvocationResultsTurn{Results: results},
	}
}

// TextContent returns the text content of a turn regardless of its kind.
func (t Turn) TextContent() string {
	switch t.Kind {
	case TurnUser:
		if t.User != nil {
			return t.User.Content
		}
	case TurnAssistant:
		if t.Assistant != nil {
			return t.Assistant.Content
		}
	}
	return ""
}

func marshalArguments(args map[string]any) json.RawMessage {
	raw, err := json.Marshal(args)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}

// ConvertHistoryToMessages converts the turn-based history into model
// messages.
func ConvertHistoryToMessages(history []Turn) []modelclient.Message {
	var messages []modelclient.Message
	for _, turn := range history {
		switch turn.Kind {
		case TurnUser:
			if turn.User != nil {
				messages = append(messages, modelclient.UserMessage(turn.User.Content))
			}
		case TurnAssistant:
			if turn.Assistant != nil {
				var toolCalls []modelclient.ToolCall
				for _, inv := range turn.Assistant.Invocations {
					if inv.Code != "" {
						continue
					}
					toolCalls = append(toolCalls, modelclient.ToolCall{
						ID:        inv.ID,
						Name:      inv.Name,
						Arguments: marshalArguments(inv.Arguments),
					})
				}
				messages = append(messages, modelclient.AssistantMessage(turn.Assistant.Content, toolCalls))
			}
		case TurnInvocationResults:
			if turn.InvocationResults != nil {
				for _, result := range turn.InvocationResults.Results {
					messages = append(messages,
						modelclient.ToolResultMessage(result.ID, result.Content, result.IsError))
				}
			}
		}
	}
	return messages
}
