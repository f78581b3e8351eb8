// Package api defines the JSON wire types shared by the HTTP server and its client.
package api

import (
	"time"

	"github.com/h0rv/brickhunt/internal/domain"
)

// Route paths, relative to the server root.
const (
	SessionsPath    = "/api/sessions"
	HealthcheckPath = "/healthcheck"
)

// SetMeta is the wire form of domain.SetMeta.
type SetMeta struct {
	SetNum   string `json:"set_num"`
	Name     string `json:"name"`
	Year     int    `json:"year,omitempty"`
	NumParts int    `json:"num_parts,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	SetURL   string `json:"set_url,omitempty"`
}

// Session is the wire form of domain.Session.
type Session struct {
	Token     string    `json:"token"`
	Set       SetMeta   `json:"set"`
	CreatedAt time.Time `json:"created_at"`
}

// LineItem is the wire form of domain.LineItem.
type LineItem struct {
	ID           int64  `json:"id"`
	PartNum      string `json:"part_num"`
	PartName     string `json:"part_name"`
	ImageURL     string `json:"image_url,omitempty"`
	ColorID      int    `json:"color_id"`
	ColorName    string `json:"color_name"`
	ColorRGB     string `json:"color_rgb,omitempty"`
	ElementID    string `json:"element_id,omitempty"`
	CategoryCode string `json:"category_code,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	QtyNeeded    int    `json:"qty_needed"`
	QtyFound     int    `json:"qty_found"`
	IsSpare      bool   `json:"is_spare"`
}

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	SetNum string `json:"set_num"`
}

// CreateSessionResponse is returned by POST /api/sessions.
type CreateSessionResponse struct {
	Token    string  `json:"token"`
	Session  Session `json:"session"`
	ShareURL string  `json:"share_url"`
}

// SessionResponse is returned by GET /api/sessions/{token}.
type SessionResponse struct {
	Session Session    `json:"session"`
	Items   []LineItem `json:"items"`
}

// UpdateFoundRequest is the body of POST /api/sessions/{token}/items/{id}/found.
type UpdateFoundRequest struct {
	Delta int `json:"delta"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromSession converts a domain session to its wire form.
func FromSession(s domain.Session) Session {
	return Session{
		Token: s.Token,
		Set: SetMeta{
			SetNum:   s.Set.SetNum,
			Name:     s.Set.Name,
			Year:     s.Set.Year,
			NumParts: s.Set.NumParts,
			ImageURL: s.Set.ImageURL,
			SetURL:   s.Set.SetURL,
		},
		CreatedAt: s.CreatedAt,
	}
}

// Domain converts the wire session back to the domain type.
func (s Session) Domain() domain.Session {
	return domain.Session{
		Token: s.Token,
		Set: domain.SetMeta{
			SetNum:   s.Set.SetNum,
			Name:     s.Set.Name,
			Year:     s.Set.Year,
			NumParts: s.Set.NumParts,
			ImageURL: s.Set.ImageURL,
			SetURL:   s.Set.SetURL,
		},
		CreatedAt: s.CreatedAt,
	}
}

// FromItems converts domain items to their wire form.
func FromItems(items []domain.LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, it := range items {
		out[i] = LineItem(it)
	}
	return out
}

// DomainItems converts wire items back to domain items.
func DomainItems(items []LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	for i, it := range items {
		out[i] = domain.LineItem(it)
	}
	return out
}
