package points

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// DayFormat is the UTC calendar-day key shared by accrual and settlement.
const DayFormat = "2006-01-02"

// DayKey truncates a timestamp to its UTC calendar day.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// PointsDay accumulates one user's points for one UTC day. Category counters
// live in a JSON column; TotalPoints is maintained in the same transaction as
// every counter increment so the two never diverge.
type PointsDay struct {
	ID          string         `gorm:"column:id;primaryKey"`
	UserID      string         `gorm:"column:user_id;uniqueIndex:uk_user_day;not null"`
	Day         string         `gorm:"column:day;uniqueIndex:uk_user_day;index;not null"`
	Categories  datatypes.JSON `gorm:"column:categories"`
	TotalPoints int64          `gorm:"column:total_points;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
}

func (PointsDay) TableName() string {
	return "points_days"
}

// CategoryTotals decodes the category counter map.
func (d *PointsDay) CategoryTotals() (map[Category]int64, error) {
	totals := make(map[Category]int64)
	if len(d.Categories) == 0 {
		return totals, nil
	}
	if err := json.Unmarshal(d.Categories, &totals); err != nil {
		return nil, err
	}
	return totals, nil
}

// SetCategoryTotals encodes the counter map back onto the row.
func (d *PointsDay) SetCategoryTotals(totals map[Category]int64) error {
	raw, err := json.Marshal(totals)
	if err != nil {
		return err
	}
	d.Categories = datatypes.JSON(raw)
	return nil
}

// PointActivity is the append-only accrual audit log consumed by fraud
// review and by feed ranking's recently-acted-on exclusion.
type PointActivity struct {
	ID        string         `gorm:"column:id;primaryKey"`
	UserID    string         `gorm:"column:user_id;index;not null"`
	Category  string         `gorm:"column:category;not null"`
	Amount    int64          `gorm:"column:amount;not null"`
	SourceRef string         `gorm:"column:source_ref"`
	Metadata  datatypes.JSON `gorm:"column:metadata"`
	CreatedAt time.Time      `gorm:"column:created_at;index"`
}

func (PointActivity) TableName() string {
	return "point_activities"
}
