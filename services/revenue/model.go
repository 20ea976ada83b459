package revenue

import "time"

// AdImpression records a single served ad. Settlement counts the in-feed
// placement over a 24h window to estimate the day's gross revenue.
type AdImpression struct {
	ID        string    `gorm:"column:id;primaryKey"`
	UserID    string    `gorm:"column:user_id;index"`
	Placement string    `gorm:"column:placement;index;not null"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

func (AdImpression) TableName() string {
	return "ad_impressions"
}
