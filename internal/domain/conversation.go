package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a transcript. Order is display order.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SiteMeta is the site metadata stored with a historical conversation.
type SiteMeta struct {
	HostURL  string `json:"host_url"`
	HostName string `json:"host_name"`
	HostLogo string `json:"host_logo"`
}

// Conversation is one chat thread.
//
// It references its site by DomainURL only and never owns the Site.
// Messages are append-only while the conversation is live; switching
// sites or loading history replaces the whole Conversation.
type Conversation struct {
	ID        string    `json:"conversation_id"`
	SiteRef   string    `json:"site_ref,omitempty"`
	Messages  []Message `json:"messages"`
	Timestamp time.Time `json:"timestamp"`

	// Site is only populated for conversations fetched from history.
	Site *SiteMeta `json:"site,omitempty"`
}

// NewConversationID returns a fresh opaque conversation id.
func NewConversationID() string {
	return "conv-" + uuid.NewString()
}

// NewConversation starts an empty conversation bound to siteRef (may be empty).
func NewConversation(siteRef string) *Conversation {
	return &Conversation{
		ID:        NewConversationID(),
		SiteRef:   siteRef,
		Messages:  []Message{},
		Timestamp: time.Now(),
	}
}

// Append adds a message at the end of the transcript.
func (c *Conversation) Append(role Role, content string) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content})
	c.Timestamp = time.Now()
}

// Preview returns the first user message, used to label history entries.
func (c *Conversation) Preview() string {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			return m.Content
		}
	}
	return "Empty conversation"
}

// Clone returns a copy with its own message slice.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = append([]Message{}, c.Messages...)
	if c.Site != nil {
		meta := *c.Site
		cp.Site = &meta
	}
	return &cp
}
