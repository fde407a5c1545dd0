// Package posters loads the poster decks of a meeting page by page.
package posters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"meetpanel/internal/models"
)

const maxPayload = 4 << 20

// Page is one page of poster decks.
type Page struct {
	Items      []models.PosterDeck
	TotalPages int
}

// Fetcher loads one page of poster decks for a meeting.
type Fetcher interface {
	Fetch(ctx context.Context, meetingID string, page, pageSize int) (Page, error)
}

// FetchError is a transport or payload failure. Callers may retry it.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch posters: status %d", e.Status)
	}
	return fmt.Sprintf("fetch posters: %v", e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err != nil {
		return []error{models.ErrFetch, e.Err}
	}
	return []error{models.ErrFetch}
}

// Client reads GET {base}/posterdecks/{meetingId}?page=n&limit=m.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a poster source client. A nil hc uses http.DefaultClient.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// envelope mirrors the poster source answer. PosterDecks is usually a JSON
// array encoded as a string; a plain array is accepted too.
type envelope struct {
	PosterDecks json.RawMessage `json:"PosterDecks"`
	TotalPages  int             `json:"totalPages"`
}

// Fetch returns models.ErrUnauthorized for an empty meeting id without
// touching the network.
func (c *Client) Fetch(ctx context.Context, meetingID string, page, pageSize int) (Page, error) {
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return Page{}, models.ErrUnauthorized
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(pageSize))
	endpoint := c.baseURL + "/posterdecks/" + url.PathEscape(meetingID) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, &FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayload))
		return Page{}, &FetchError{Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return Page{}, &FetchError{Status: resp.StatusCode, Err: err}
	}
	return decodePage(raw)
}

func decodePage(raw []byte) (Page, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Page{}, &FetchError{Err: fmt.Errorf("decode envelope: %w", err)}
	}

	decks := bytes.TrimSpace(env.PosterDecks)
	if len(decks) == 0 || bytes.Equal(decks, []byte("null")) {
		return Page{}, &FetchError{Err: fmt.Errorf("missing PosterDecks")}
	}
	if decks[0] == '"' {
		var encoded string
		if err := json.Unmarshal(decks, &encoded); err != nil {
			return Page{}, &FetchError{Err: fmt.Errorf("decode PosterDecks string: %w", err)}
		}
		decks = []byte(encoded)
	}

	var items []models.PosterDeck
	if err := json.Unmarshal(decks, &items); err != nil {
		return Page{}, &FetchError{Err: fmt.Errorf("decode PosterDecks: %w", err)}
	}
	return Page{Items: items, TotalPages: env.TotalPages}, nil
}
