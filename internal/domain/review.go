package domain

import "time"

// Review is one customer testimonial as stored and served by the API.
type Review struct {
	ID        string    `json:"id" bson:"id"`
	Name      string    `json:"name" bson:"name"`
	Rating    float64   `json:"rating" bson:"rating"`
	Date      string    `json:"date" bson:"date"` // free text, e.g. "Posted 4 days ago"
	Text      string    `json:"text" bson:"text"`
	Service   string    `json:"service" bson:"service"`
	Postcode  string    `json:"postcode" bson:"postcode"`
	Lat       float64   `json:"lat" bson:"lat"`
	Lng       float64   `json:"lng" bson:"lng"`
	Images    []string  `json:"images" bson:"images"`
	Approved  bool      `json:"approved" bson:"approved"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PhotoItem is a single work photo pulled from cloud storage, before grouping.
type PhotoItem struct {
	URL      string
	Service  string // service category (folder name)
	Postcode string
	Rating   float64
	Name     string
	Date     string
	Text     string
}

// Run is an audit row for one ingestion batch.
type Run struct {
	Source   string
	Segments int
	Skipped  int
	Stored   int
}
