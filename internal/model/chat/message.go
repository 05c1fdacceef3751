package chat

// Role 标识一条消息的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Turn is one role-tagged message in a conversation. Turns are never mutated after
// they are appended; only user and assistant turns are persisted.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn 构造用户消息。
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn 构造助手消息。
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}
