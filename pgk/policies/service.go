package policies

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/saveblush/reraw-feed/core/generic"
)

// Service service interface
type Service interface {
	RejectEmptyFilters(filter *nostr.Filter) (reject bool, msg string)
	RejectSearchWithTags(filter *nostr.Filter) (reject bool, msg string)
	RejectFilter(filter *nostr.Filter) (reject bool, msg string)
}

type service struct{}

func NewService() Service {
	return &service{}
}

// RejectEmptyFilters reject empty filters
func (s *service) RejectEmptyFilters(filter *nostr.Filter) (reject bool, msg string) {
	var c int
	if len(filter.IDs) > 0 {
		c++
	}

	if len(filter.Kinds) > 0 {
		c++
	}

	if len(filter.Authors) > 0 {
		c++
	}

	if len(filter.Tags) > 0 {
		c++
	}

	if filter.Search != "" {
		c++
	}

	if !generic.IsEmpty(filter.Since) {
		c++
	}

	if !generic.IsEmpty(filter.Limit) {
		c++
	}

	if c == 0 {
		return true, fmt.Sprintf("blocked: %s", "can't handle empty filters")
	}

	return false, ""
}

// RejectSearchWithTags reject search directive combined with tag constraints
// relay ตอบ 0 รายการเมื่อใช้ search ร่วมกับ #tag
func (s *service) RejectSearchWithTags(filter *nostr.Filter) (reject bool, msg string) {
	if filter.Search != "" && len(filter.Tags) > 0 {
		return true, fmt.Sprintf("blocked: %s", "can't combine search with tag filters")
	}

	return false, ""
}

// RejectFilter run all filter policies
func (s *service) RejectFilter(filter *nostr.Filter) (reject bool, msg string) {
	for _, policy := range []func(*nostr.Filter) (bool, string){
		s.RejectEmptyFilters,
		s.RejectSearchWithTags,
	} {
		if reject, msg := policy(filter); reject {
			return reject, msg
		}
	}

	return false, ""
}
