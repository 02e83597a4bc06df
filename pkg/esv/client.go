package esv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"bibleai-be/pkg/llm"
)

// DefaultBaseURL is the passage text endpoint of the ESV API
const DefaultBaseURL = "https://api.esv.org/v3/passage/text/"

// Copyright must accompany every quotation of fetched text
const Copyright = "Scripture quotations are from the ESV Bible (The Holy Bible, English Standard Version), " +
	"copyright 2001 by Crossway, a publishing ministry of Good News Publishers. " +
	"ESV Text Edition: 2025. Used by permission. All rights reserved."

// ErrNoPassage is returned when the API answers without text for a reference
var ErrNoPassage = errors.New("esv: no passage for reference")

// Client fetches plain passage text. Text is returned to the caller and never cached.
type Client struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		// Deadlines come from the caller's context
		Client: &http.Client{},
	}
}

func (c *Client) Translation() string {
	return "ESV"
}

func (c *Client) Notice() string {
	return Copyright
}

type passageResponse struct {
	Canonical string   `json:"canonical"`
	Passages  []string `json:"passages"`
}

// Passage returns the text of a reference such as "John 3:14-18" with verse numbers inline
func (c *Client) Passage(ctx context.Context, reference string) (string, error) {
	q := url.Values{}
	q.Set("q", reference)
	q.Set("include-headings", "false")
	q.Set("include-footnotes", "false")
	q.Set("include-verse-numbers", "true")
	q.Set("include-short-copyright", "false")
	q.Set("include-passage-references", "false")
	q.Set("indent-paragraphs", "0")

	header := http.Header{}
	header.Set("Authorization", "Token "+c.APIKey)

	var out passageResponse
	if err := llm.GetJSON(ctx, c.Client, "esv", c.BaseURL+"?"+q.Encode(), header, &out); err != nil {
		return "", err
	}
	if len(out.Passages) == 0 {
		return "", fmt.Errorf("%s: %w", reference, ErrNoPassage)
	}
	text := strings.TrimSpace(out.Passages[0])
	if text == "" {
		return "", fmt.Errorf("%s: %w", reference, ErrNoPassage)
	}
	return text, nil
}
