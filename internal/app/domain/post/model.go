// Package post defines fulfilled content records and their audience metrics.
package post

import "time"

// Post records content published against a completed request.
type Post struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	Platform    string    `json:"platform"`
	PostType    string    `json:"post_type"`
	Content     string    `json:"content"`
	Status      string    `json:"status"`
	PublishedAt time.Time `json:"published_time"`
	Approved    bool      `json:"is_approved"`
}

// StatusPublished is the status assigned to posts created by fulfillment.
const StatusPublished = "published"

// Metric is an audience measurement tied to one post.
type Metric struct {
	ID          string `json:"id"`
	PostID      string `json:"post_id"`
	Reach       int64  `json:"reach"`
	Impressions int64  `json:"impressions"`
}
