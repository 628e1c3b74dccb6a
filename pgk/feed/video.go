package feed

import (
	"strconv"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/tidwall/gjson"

	"github.com/saveblush/reraw-feed/core/generic"
	"github.com/saveblush/reraw-feed/models"
	"github.com/saveblush/reraw-feed/pgk/nips/nip40"
)

// ParseVideos parse video events, คงลำดับเดิม
// ข้าม kind ที่ไม่ใช่วิดีโอ, event หมดอายุ และ id ซ้ำ
func ParseVideos(events []*nostr.Event, now time.Time) []*models.VideoRecord {
	videos := make([]*models.VideoRecord, 0, len(events))
	for _, evt := range events {
		if evt == nil || !models.IsVideoKind(evt.Kind) {
			continue
		}

		if nip40.Expired(evt, now) {
			continue
		}

		videos = append(videos, parseVideo(evt))
	}

	return generic.Unique(videos, func(v *models.VideoRecord) string { return v.ID })
}

func parseVideo(evt *nostr.Event) *models.VideoRecord {
	video := &models.VideoRecord{
		ID:        evt.ID,
		Pubkey:    evt.PubKey,
		Kind:      evt.Kind,
		CreatedAt: evt.CreatedAt,
		Event:     evt,
	}

	hasLoops := false
	for _, tag := range evt.Tags {
		if len(tag) < 2 {
			continue
		}

		switch tag[0] {
		case "title":
			video.Title = tag[1]
		case "url":
			if video.URL == "" {
				video.URL = tag[1]
			}
		case "imeta":
			if video.URL == "" {
				video.URL = imetaURL(tag)
			}
		case "t":
			video.Hashtags = append(video.Hashtags, strings.ToLower(tag[1]))
		case "loops":
			n, err := strconv.ParseInt(tag[1], 10, 64)
			if err == nil {
				video.LoopCount = n
				hasLoops = true
			}
		}
	}

	if !hasLoops && gjson.Valid(evt.Content) {
		video.LoopCount = gjson.Get(evt.Content, "loops").Int()
	}

	return video
}

// imetaURL ค่า "url <value>" ใน imeta tag
func imetaURL(tag nostr.Tag) string {
	for _, entry := range tag[1:] {
		if v, ok := strings.CutPrefix(entry, "url "); ok {
			return strings.TrimSpace(v)
		}
	}

	return ""
}
