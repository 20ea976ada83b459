package points

// Category names a point-earning action type.
type Category string

const (
	CategoryLike           Category = "like"
	CategoryComment        Category = "comment"
	CategoryShare          Category = "share"
	CategoryVideoUpload    Category = "video_upload"
	CategoryActiveTime     Category = "active_time"
	CategoryView           Category = "view"
	CategoryReceiveLike    Category = "receive_like"
	CategoryReceiveComment Category = "receive_comment"
	CategoryFollower       Category = "follower"
	CategoryGift           Category = "gift"
	CategoryLiveStream     Category = "live_stream"
	CategoryWatchLive      Category = "watch_live"
)

// CategoryRule fixes both the point value of a single event and the number
// of events that count per day. The daily cap is always expressed in points
// (MaxEventsPerDay × PointsPerEvent) so accrued totals and caps share a unit.
// MaxEventsPerDay of zero means the category is uncapped; points a user
// receives from other people's actions accrue unconditionally.
type CategoryRule struct {
	PointsPerEvent  int64
	MaxEventsPerDay int64
}

// DailyCap returns the maximum points accruable per day, zero for uncapped.
func (r CategoryRule) DailyCap() int64 {
	return r.PointsPerEvent * r.MaxEventsPerDay
}

var categoryRules = map[Category]CategoryRule{
	CategoryLike:           {PointsPerEvent: 1, MaxEventsPerDay: 500},
	CategoryComment:        {PointsPerEvent: 2, MaxEventsPerDay: 100},
	CategoryShare:          {PointsPerEvent: 3, MaxEventsPerDay: 50},
	CategoryVideoUpload:    {PointsPerEvent: 10, MaxEventsPerDay: 10},
	CategoryActiveTime:     {PointsPerEvent: 1, MaxEventsPerDay: 60},
	CategoryView:           {PointsPerEvent: 1, MaxEventsPerDay: 500},
	CategoryReceiveLike:    {PointsPerEvent: 1},
	CategoryReceiveComment: {PointsPerEvent: 2},
	CategoryFollower:       {PointsPerEvent: 5},
	CategoryGift:           {PointsPerEvent: 5},
	CategoryLiveStream:     {PointsPerEvent: 20, MaxEventsPerDay: 5},
	CategoryWatchLive:      {PointsPerEvent: 2, MaxEventsPerDay: 30},
}

// Categories lists all known categories in a stable order.
var Categories = []Category{
	CategoryLike, CategoryComment, CategoryShare, CategoryVideoUpload,
	CategoryActiveTime, CategoryView, CategoryReceiveLike,
	CategoryReceiveComment, CategoryFollower, CategoryGift,
	CategoryLiveStream, CategoryWatchLive,
}

// RuleFor resolves the rule for a category; ok is false for unknown names.
func RuleFor(c Category) (CategoryRule, bool) {
	rule, ok := categoryRules[c]
	return rule, ok
}
