package scraper

import (
	"context"
	"errors"
)

var (
	ErrNoSearchInput = errors.New("no interactable search input")
	ErrNoResults     = errors.New("no search results")
	ErrPriceNotFound = errors.New("price not found")
	ErrBlocked       = errors.New("blocked by marketplace anti-bot")
)

// Element is one DOM node exposed by the browser session.
type Element interface {
	Visible() bool
	Enabled() bool
	Text() string
	Attribute(name string) string
	Click() error
	Fill(value string) error
	Press(key string) error
}

// Session is a ready browser tab handed in by the caller. The scraper drives
// pages through it but never manages the browser process lifecycle.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Elements(selector string) ([]Element, error)
	Evaluate(script string) (any, error)
	Content() (string, error)
	CurrentURL() string
}
