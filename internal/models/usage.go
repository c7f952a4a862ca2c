package models

type UsageSample struct {
	Timestamp int64  `json:"timestamp"`
	Sessions  int    `json:"sessions"`
	Tokens    int64  `json:"tokens"`
	Status    string `json:"status,omitempty"`
}
