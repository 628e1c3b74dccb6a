package feed

import (
	"math"
	"sort"
	"time"

	"github.com/saveblush/reraw-feed/models"
)

// Rank sort videos by mode, stable (คะแนนเท่ากันคงลำดับเดิม)
// mode อื่นนอกจาก top/hot/rising เรียงตามเวลาใหม่ไปเก่า
func Rank(videos []*models.VideoRecord, mode models.SortMode, now time.Time) {
	var score func(v *models.VideoRecord) float64
	switch mode {
	case models.SortTop:
		score = func(v *models.VideoRecord) float64 { return float64(v.LoopCount) }
	case models.SortHot:
		score = func(v *models.VideoRecord) float64 { return HotScore(v, now) }
	case models.SortRising:
		score = func(v *models.VideoRecord) float64 { return RisingScore(v, now) }
	default:
		sort.SliceStable(videos, func(i, j int) bool {
			return videos[i].CreatedAt > videos[j].CreatedAt
		})
		return
	}

	scores := make(map[*models.VideoRecord]float64, len(videos))
	for _, v := range videos {
		scores[v] = score(v)
	}
	sort.SliceStable(videos, func(i, j int) bool {
		return scores[videos[i]] > scores[videos[j]]
	})
}

// HotScore loops / (hours + 1)^1.5
func HotScore(v *models.VideoRecord, now time.Time) float64 {
	hours := age(v, now).Hours()
	return float64(v.LoopCount) / math.Pow(hours+1, 1.5)
}

// RisingScore loops * max(0, 1 - days), ลดลงเป็นศูนย์ภายในหนึ่งวัน
func RisingScore(v *models.VideoRecord, now time.Time) float64 {
	days := age(v, now).Hours() / 24
	return float64(v.LoopCount) * math.Max(0, 1-days)
}

// age เวลาในอนาคตนับเป็นศูนย์
func age(v *models.VideoRecord, now time.Time) time.Duration {
	d := now.Sub(v.CreatedAt.Time())
	if d < 0 {
		return 0
	}

	return d
}
