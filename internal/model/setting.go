package model

// SettingDailyDigest toggles the daily digest job. Only the value "on" enables it.
const SettingDailyDigest = "daily_digest"

// Setting is a key-value pair.
type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}
