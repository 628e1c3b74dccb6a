package eventcache

import "github.com/nbd-wtf/go-nostr"

type Request struct {
	NostrFilter *nostr.Filter
}
