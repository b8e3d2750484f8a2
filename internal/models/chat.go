package models

// Sayer identifies who authored a chat message.
type Sayer string

const (
	SayerUser      Sayer = "user"
	SayerAssistant Sayer = "assistant"
)

func (s Sayer) Valid() bool {
	switch s {
	case SayerUser, SayerAssistant:
		return true
	default:
		return false
	}
}

// ChatMessage is one side of an exchange.
type ChatMessage struct {
	Sayer     Sayer  `json:"sayer"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Exchange pairs a question with its answer.
type Exchange struct {
	Question ChatMessage `json:"question"`
	Answer   ChatMessage `json:"answer"`
}

// ChatHistory is the conversation of one user about one repository.
type ChatHistory struct {
	UserID string     `json:"user_id"`
	RepoID string     `json:"repo_id"`
	Texts  []Exchange `json:"texts"`
}

// Clone returns a deep copy.
func (h ChatHistory) Clone() ChatHistory {
	if h.Texts != nil {
		texts := make([]Exchange, len(h.Texts))
		copy(texts, h.Texts)
		h.Texts = texts
	}
	return h
}
