package models

// FeedType feed type
type FeedType string

const (
	FeedDiscovery FeedType = "discovery"
	FeedHome      FeedType = "home"
	FeedTrending  FeedType = "trending"
	FeedHashtag   FeedType = "hashtag"
	FeedProfile   FeedType = "profile"
	FeedRecent    FeedType = "recent"
)

// Valid is known feed type
func (f FeedType) Valid() bool {
	switch f {
	case FeedDiscovery, FeedHome, FeedTrending, FeedHashtag, FeedProfile, FeedRecent:
		return true
	}

	return false
}

// SortMode ranking mode (NIP-50 `sort:<mode>`)
type SortMode string

const (
	SortNone          SortMode = ""
	SortTop           SortMode = "top"
	SortHot           SortMode = "hot"
	SortRising        SortMode = "rising"
	SortControversial SortMode = "controversial"
)

// Ranked modes ที่ต้องใช้ offset pagination
func (m SortMode) Ranked() bool {
	switch m {
	case SortTop, SortHot, SortRising, SortControversial:
		return true
	}

	return false
}

// Directive search directive sent to the relay
func (m SortMode) Directive() string {
	if m == SortNone {
		return ""
	}

	return "sort:" + string(m)
}
