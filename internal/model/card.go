package model

import (
	"encoding/json"
	"time"
)

// Document kinds stored in the shared collection.
const (
	KindUser = "user"
	KindCard = "card"
)

// Document is a raw JSON document as held by the document store.
// Body never contains the id; the store owns it.
type Document struct {
	ID   string
	Body json.RawMessage
}

// Kind reports the "type" field of the document body, or "" if absent.
func (d Document) Kind() string {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(d.Body, &probe); err != nil {
		return ""
	}
	return probe.Type
}

// User is a registered collector.
type User struct {
	ID           string    `json:"id,omitempty"`
	Type         string    `json:"type"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public returns a copy of the user safe to send to other clients.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// Card is a single trading card in a user's collection.
type Card struct {
	ID         string    `json:"id,omitempty"`
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	Name       string    `json:"name"`
	Game       string    `json:"game"`
	Set        string    `json:"set"`
	Rarity     string    `json:"rarity,omitempty"`
	Condition  string    `json:"condition"`
	Grade      string    `json:"grade,omitempty"`
	Image      string    `json:"image,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	IsFavorite bool      `json:"isFavorite"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CardInput carries the user-editable card fields for create requests.
type CardInput struct {
	Name      string `json:"name" validate:"required,max=200"`
	Game      string `json:"game" validate:"required,max=100"`
	Set       string `json:"set" validate:"required,max=100"`
	Rarity    string `json:"rarity" validate:"omitempty,oneof=Common Uncommon Rare 'Ultra Rare' 'Mythic Rare'"`
	Condition string `json:"condition" validate:"required,oneof=Mint 'Near Mint' Excellent Good Fair Poor"`
	Grade     string `json:"grade" validate:"max=20"`
	Image     string `json:"image" validate:"omitempty,image_ref"`
	Notes     string `json:"notes" validate:"max=2000"`
}

// CardPatch carries optional field updates; nil fields are left unchanged.
// Name, game and set may be changed but not cleared.
type CardPatch struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=200"`
	Game       *string `json:"game" validate:"omitempty,min=1,max=100"`
	Set        *string `json:"set" validate:"omitempty,min=1,max=100"`
	Rarity     *string `json:"rarity" validate:"omitempty,oneof=Common Uncommon Rare 'Ultra Rare' 'Mythic Rare'"`
	Condition  *string `json:"condition" validate:"omitempty,oneof=Mint 'Near Mint' Excellent Good Fair Poor"`
	Grade      *string `json:"grade" validate:"omitempty,max=20"`
	Image      *string `json:"image" validate:"omitempty,image_ref"`
	Notes      *string `json:"notes" validate:"omitempty,max=2000"`
	IsFavorite *bool   `json:"isFavorite"`
}

// CollectorSummary is a user with a preview of their collection.
type CollectorSummary struct {
	User
	CardCount    int    `json:"cardCount"`
	PreviewCards []Card `json:"previewCards"`
}
