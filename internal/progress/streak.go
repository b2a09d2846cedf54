package progress

import "time"

// utcDay は時刻をUTC日付（時刻成分ゼロ）に正規化する。
func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// nextStreak は学習完了時の新しい連続学習日数を算出する。
// UTC日境界で判定し、前回学習日が昨日なら+1、今日なら維持、
// それ以外（空白期間あり・初回）は1にリセットする。
func nextStreak(current int, lastStudyDay *time.Time, now time.Time) int {
	if lastStudyDay == nil {
		return 1
	}

	today := utcDay(now)
	last := utcDay(*lastStudyDay)

	switch {
	case last.Equal(today):
		if current < 1 {
			return 1
		}
		return current
	case last.Equal(today.AddDate(0, 0, -1)):
		return current + 1
	default:
		return 1
	}
}
