package models

type ProcessSample struct {
	Name  string  `json:"name"`
	CPU   float64 `json:"cpu"`
	RAMMB float64 `json:"ramMb"`
}

type ProcessAverage struct {
	Name    string  `json:"name"`
	CPU     float64 `json:"cpu"`
	RAMMB   float64 `json:"ramMb"`
	Samples int     `json:"samples"`
}
