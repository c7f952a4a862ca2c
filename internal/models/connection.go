package models

type Connection struct {
	Process string `json:"process"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}
