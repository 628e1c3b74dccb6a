package models

import "github.com/nbd-wtf/go-nostr"

// VideoRecord minimal video record parsed from an event
type VideoRecord struct {
	ID        string          `json:"id"`
	Pubkey    string          `json:"pubkey"`
	Kind      int             `json:"kind"`
	CreatedAt nostr.Timestamp `json:"created_at"`
	Title     string          `json:"title,omitempty"`
	URL       string          `json:"url,omitempty"`
	Hashtags  []string        `json:"hashtags,omitempty"`
	LoopCount int64           `json:"loop_count"`
	Event     *nostr.Event    `json:"-"`
}
