// Package catalog resolves book metadata from the Open Library search API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rolfea/book-buddy/internal/domain"
)

// DefaultBaseURL is the public Open Library endpoint
const DefaultBaseURL = "https://openlibrary.org"

// OpenLibrary implements application.Catalog
type OpenLibrary struct {
	baseURL string
	client  *http.Client
}

// NewOpenLibrary creates a client. An empty baseURL selects the public endpoint.
func NewOpenLibrary(baseURL string, timeout time.Duration) *OpenLibrary {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenLibrary{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
}

// Lookup searches for isbn and takes the first hit
func (o *OpenLibrary) Lookup(ctx context.Context, isbn string) (domain.Book, error) {
	endpoint := fmt.Sprintf("%s/search.json?q=%s", o.baseURL, url.QueryEscape(isbn))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Book{}, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return domain.Book{}, fmt.Errorf("catalog: search %s: %w", isbn, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Book{}, fmt.Errorf("catalog: search %s: unexpected status %s", isbn, resp.Status)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.Book{}, fmt.Errorf("catalog: decode response: %w", err)
	}
	if len(result.Docs) == 0 {
		return domain.Book{}, fmt.Errorf("catalog: %s: %w", isbn, domain.ErrBookNotFound)
	}

	doc := result.Docs[0]
	return domain.Book{
		ISBN:          isbn,
		Title:         doc.Title,
		Author:        strings.Join(doc.AuthorName, ", "),
		PublishedYear: doc.FirstPublishYear,
	}, nil
}
