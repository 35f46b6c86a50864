// Package model defines data structures used throughout the application.
package model

import (
	"time"
)

// API metadata.
const (
	APITitle   = "Simple API"
	APIVersion = "0.1.0"

	WelcomeMessage  = "Welcome to the " + APITitle
	NotFoundMessage = "Item not found"
)

// Item represents a stored item.
type Item struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       float64 `json:"price"`
	OnOffer     bool    `json:"on_offer"`
}

// Clone returns a copy of the item that shares no memory with the receiver.
func (i Item) Clone() Item {
	c := i
	if i.Description != nil {
		d := *i.Description
		c.Description = &d
	}
	return c
}

// Equal reports whether two items carry the same field values.
func (i Item) Equal(o Item) bool {
	if i.ID != o.ID || i.Name != o.Name || i.Price != o.Price || i.OnOffer != o.OnOffer {
		return false
	}
	if i.Description == nil || o.Description == nil {
		return i.Description == nil && o.Description == nil
	}
	return *i.Description == *o.Description
}

// WelcomeResponse is returned by the root endpoint.
type WelcomeResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents a plain error response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ValidationErrorResponse represents a request validation failure.
type ValidationErrorResponse struct {
	Detail []FieldError `json:"detail"`
}

// Item change event types.
const (
	EventItemCreated = "item_created"
	EventItemUpdated = "item_updated"
	EventItemDeleted = "item_deleted"
)

// ItemEvent describes a successful mutation of the item collection.
type ItemEvent struct {
	Type      string    `json:"type"`
	Item      Item      `json:"item"`
	Timestamp time.Time `json:"timestamp"`
}

// NewItemEvent creates an event for the given item.
func NewItemEvent(eventType string, item Item) ItemEvent {
	return ItemEvent{
		Type:      eventType,
		Item:      item.Clone(),
		Timestamp: time.Now().UTC(),
	}
}
