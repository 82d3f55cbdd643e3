package model

import "github.com/cloudwego/eino/schema"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Project is identified by a client-minted token that never changes.
type Project struct {
	ID string `json:"id" yaml:"id"`
}

type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Persistable reports whether m belongs in the durable copy of a log:
// the system preamble and id-less messages are never stored.
func (m Message) Persistable() bool {
	return m.Role != RoleSystem && m.ID != ""
}

// FilterPersistable returns the storable subsequence of msgs in original order.
func FilterPersistable(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Persistable() {
			out = append(out, m)
		}
	}
	return out
}

// ToSchema converts a log into the eino message sequence sent to the model.
func ToSchema(msgs []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		var role schema.RoleType
		switch m.Role {
		case RoleSystem:
			role = schema.System
		case RoleAssistant:
			role = schema.Assistant
		default:
			role = schema.User
		}
		out = append(out, &schema.Message{Role: role, Content: m.Content})
	}
	return out
}
