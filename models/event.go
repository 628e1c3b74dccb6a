package models

import (
	"github.com/nbd-wtf/go-nostr"
)

const (
	KindProfile     = 0
	KindContactList = 3
	KindHTTPAuth    = 27235
)

// VideoKinds kinds ที่เป็นวิดีโอ (NIP-71 + addressable short video)
var VideoKinds = []int{21, 22, 34235, 34236}

// IsVideoKind is video kind
func IsVideoKind(kind int) bool {
	for _, k := range VideoKinds {
		if k == kind {
			return true
		}
	}

	return false
}

// CachedEvent row of the local event cache
type CachedEvent struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(64)"`
	CreatedAt nostr.Timestamp `json:"created_at" gorm:"type:integer"`
	Pubkey    string          `json:"pubkey" gorm:"type:varchar(64)"`
	Kind      int             `json:"kind" gorm:"type:integer"`
	Content   string          `json:"content"`
	Tags      Tags            `json:"tags" gorm:"type:jsonb"`
	Sig       string          `json:"sig"`
}

func (CachedEvent) TableName() string {
	return "events_cache"
}

// NewCachedEvent new cached event
func NewCachedEvent(evt *nostr.Event) *CachedEvent {
	tags := make(Tags, 0, len(evt.Tags))
	for _, t := range evt.Tags {
		tags = append(tags, Tag(t))
	}

	return &CachedEvent{
		ID:        evt.ID,
		CreatedAt: evt.CreatedAt,
		Pubkey:    evt.PubKey,
		Kind:      evt.Kind,
		Content:   evt.Content,
		Tags:      tags,
		Sig:       evt.Sig,
	}
}

// Event convert to nostr event
func (e *CachedEvent) Event() *nostr.Event {
	tags := make(nostr.Tags, 0, len(e.Tags))
	for _, t := range e.Tags {
		tags = append(tags, nostr.Tag(t))
	}

	return &nostr.Event{
		ID:        e.ID,
		CreatedAt: e.CreatedAt,
		PubKey:    e.Pubkey,
		Kind:      e.Kind,
		Content:   e.Content,
		Tags:      tags,
		Sig:       e.Sig,
	}
}
