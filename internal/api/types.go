package api

import "time"

// Swamp is a discussion room as returned by the REST API.
type Swamp struct {
	ID              int       `json:"ID"`
	UUID            string    `json:"UUID"`
	Title           string    `json:"Title"`
	OwnerID         int       `json:"OwnerID"`
	MaxParticipants int       `json:"MaxParticipants"`
	StartTime       time.Time `json:"StartTime"`
	Duration        int       `json:"Duration"`
	TopicID         uint      `json:"TopicID,omitempty"`
	Topic           *Topic    `json:"Topic,omitempty"`
	CreatedAt       time.Time `json:"CreatedAt"`
	Deleted         bool      `json:"Deleted"`
}

// NewSwamp is the body of a create request. Every field except TopicID is
// required by the server.
type NewSwamp struct {
	Title           string    `json:"Title"`
	OwnerID         int       `json:"OwnerID"`
	MaxParticipants int       `json:"MaxParticipants"`
	StartTime       time.Time `json:"StartTime"`
	Duration        int       `json:"Duration"`
	TopicID         uint      `json:"TopicID,omitempty"`
}

// Page describes one page of a listing.
type Page struct {
	TotalResults   int `json:"totalResults"`
	PageNumber     int `json:"pageNumber"`
	RecordsPerPage int `json:"recordsPerPage"`
}

// SwampPage is the response of the swamp listing endpoint.
type SwampPage struct {
	Meta   Page    `json:"meta"`
	Swamps []Swamp `json:"allDocuments"`
}

type createSwampResponse struct {
	Message string `json:"message"`
	Swamp   Swamp  `json:"swamp"`
}

// Topic is a discussion subject swamps and users are tagged with.
type Topic struct {
	ID   uint   `json:"ID"`
	Name string `json:"Name"`
}

type userTopicsRequest struct {
	Topics []uint `json:"topics"`
}
