package nip40

import (
	"errors"
	"strconv"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

var (
	ErrInvalidExpiration = errors.New("invalid: expiration")
)

// Expiration expiration tag, ok=false เมื่อไม่มี tag
func Expiration(evt *nostr.Event) (nostr.Timestamp, bool, error) {
	for _, tag := range evt.Tags {
		if len(tag) < 2 || tag[0] != "expiration" {
			continue
		}

		expiration, err := strconv.ParseInt(tag[1], 10, 64)
		if err != nil || expiration < 100 {
			return 0, true, ErrInvalidExpiration
		}

		return nostr.Timestamp(expiration), true, nil
	}

	return 0, false, nil
}

// Expired event หมดอายุแล้ว ณ now; tag ที่ไม่ถูกต้องถือว่าไม่หมดอายุ
func Expired(evt *nostr.Event, now time.Time) bool {
	expiration, ok, err := Expiration(evt)
	if !ok || err != nil {
		return false
	}

	return int64(expiration) <= now.Unix()
}
