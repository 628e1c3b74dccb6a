package gateway

import (
	"encoding/base64"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nbd-wtf/go-nostr"

	"github.com/saveblush/reraw-feed/core/utils"
)

// EncodeFilter filter -> json -> base64url (ไม่มี padding)
func EncodeFilter(filter nostr.Filter) (string, error) {
	b, err := json.Marshal(filter)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeFilter inverse of EncodeFilter, accepts padded input
func DecodeFilter(token string) (nostr.Filter, error) {
	var filter nostr.Filter

	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return filter, err
	}

	err = json.Unmarshal(b, &filter)
	if err != nil {
		return filter, err
	}

	return filter, nil
}

// ShouldUseGateway relay นี้มี gateway mirror หรือไม่
func ShouldUseGateway(relayURL, mirrorHost string) bool {
	if mirrorHost == "" {
		return false
	}

	return utils.Hostname(relayURL) == strings.ToLower(mirrorHost)
}
