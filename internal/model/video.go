package model

import "time"

type ShoutoutVideo struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	RequestID string    `gorm:"size:36;not null;uniqueIndex" json:"request_id"`
	VideoRef  string    `gorm:"size:512;not null" json:"video_ref"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ShoutoutVideo) TableName() string { return "shoutout_videos" }
