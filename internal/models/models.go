// Package models defines the domain types for Ansuz.
package models

import "time"

// Record is a single catalog entry: a normalized title mapped to a
// retrieval link. Title is always lower-cased and trimmed before it is
// stored or compared.
type Record struct {
	Title   string    `json:"title"`
	Link    string    `json:"link"`
	AddedBy int64     `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// Message is a normalized inbound chat message as delivered by the
// transport ingress.
type Message struct {
	MessageID  int64     `json:"message_id"`
	ChatID     int64     `json:"chat_id"`
	SenderID   int64     `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}

// Reply is an outbound chat reply: text plus an optional set of labeled
// retrieval buttons.
type Reply struct {
	Text    string   `json:"text"`
	ReplyTo int64    `json:"reply_to,omitempty"`
	Buttons []Button `json:"buttons,omitempty"`
}

// Button pairs a label with a retrieval URL.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}
