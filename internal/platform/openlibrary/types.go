package openlibrary

import (
	"encoding/json"
	"strconv"
	"strings"
)

// CoversBaseURL serves edition covers and author photos.
const CoversBaseURL = "https://covers.openlibrary.org"

// Text is a description field that Open Library sends either as a bare
// string or as {"type": "/type/text", "value": "..."}.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var typed struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	*t = Text(typed.Value)
	return nil
}

func (t Text) String() string {
	return string(t)
}

type Ref struct {
	Key string `json:"key"`
}

type Identifiers struct {
	Goodreads    []string `json:"goodreads"`
	Google       []string `json:"google"`
	LibraryThing []string `json:"librarything"`
}

type Contributor struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Edition matches /books/{id}.json and /isbn/{isbn}.json
type Edition struct {
	Key            string        `json:"key"`
	Title          string        `json:"title"`
	Subtitle       string        `json:"subtitle"`
	ISBN10         []string      `json:"isbn_10"`
	ISBN13         []string      `json:"isbn_13"`
	PublishDate    string        `json:"publish_date"`
	Publishers     []string      `json:"publishers"`
	Identifiers    Identifiers   `json:"identifiers"`
	Contributors   []Contributor `json:"contributors"`
	Genres         []string      `json:"genres"`
	Works          []Ref         `json:"works"`
	PhysicalFormat string        `json:"physical_format"`
	Description    Text          `json:"description"`
	Series         []string      `json:"series"`
	Covers         []int         `json:"covers"`
}

// ID returns the bare edition id, e.g. OL26399409M.
func (e Edition) ID() string {
	return trimKey(e.Key, "/books/")
}

// ISBN prefers the 13 digit form.
func (e Edition) ISBN() string {
	if len(e.ISBN13) > 0 {
		return e.ISBN13[0]
	}
	if len(e.ISBN10) > 0 {
		return e.ISBN10[0]
	}
	return ""
}

// WorkID returns the id of the first referenced work.
func (e Edition) WorkID() (string, bool) {
	if len(e.Works) == 0 || e.Works[0].Key == "" {
		return "", false
	}
	return trimKey(e.Works[0].Key, "/works/"), true
}

// CoverURL is the large cover image derived from the edition id.
func (e Edition) CoverURL() string {
	return CoverURL(e.ID())
}

type WorkAuthor struct {
	Author Ref `json:"author"`
}

// Work matches /works/{id}.json
type Work struct {
	Key         string       `json:"key"`
	Title       string       `json:"title"`
	Description Text         `json:"description"`
	Authors     []WorkAuthor `json:"authors"`
}

func (w Work) ID() string {
	return trimKey(w.Key, "/works/")
}

func (w Work) AuthorIDs() []string {
	ids := make([]string, 0, len(w.Authors))
	for _, a := range w.Authors {
		if a.Author.Key == "" {
			continue
		}
		ids = append(ids, trimKey(a.Author.Key, "/authors/"))
	}
	return ids
}

// Author matches /authors/{id}.json
type Author struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Photos []int  `json:"photos"`
}

func (a Author) ID() string {
	return trimKey(a.Key, "/authors/")
}

// PhotoURL returns the image for the author's first photo, if any.
// Open Library uses -1 as a placeholder for removed photos.
func (a Author) PhotoURL() (string, bool) {
	if len(a.Photos) == 0 || a.Photos[0] <= 0 {
		return "", false
	}
	return CoversBaseURL + "/a/id/" + strconv.Itoa(a.Photos[0]) + "-L.jpg", true
}

// SearchResponse matches search.json
type SearchResponse struct {
	Start    int         `json:"start"`
	NumFound int         `json:"numFound"`
	Docs     []SearchDoc `json:"docs"`
}

type SearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorNames      []string `json:"author_name"`
	AuthorKeys       []string `json:"author_key"`
	ISBN             []string `json:"isbn"`
	FirstPublishYear int      `json:"first_publish_year"`
}

func (d SearchDoc) Work() Work {
	w := Work{Key: d.Key, Title: d.Title}
	for _, k := range d.AuthorKeys {
		w.Authors = append(w.Authors, WorkAuthor{Author: Ref{Key: "/authors/" + k}})
	}
	return w
}

// CoverURL builds the large cover URL for an edition id.
func CoverURL(editionID string) string {
	if editionID == "" {
		return ""
	}
	return CoversBaseURL + "/b/olid/" + editionID + "-L.jpg"
}

func trimKey(key, prefix string) string {
	return strings.TrimPrefix(key, prefix)
}
