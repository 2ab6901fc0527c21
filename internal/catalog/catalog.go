package catalog

import (
	"strings"
	"time"
)

type Format string

const (
	FormatHardcover Format = "HARDCOVER"
	FormatPaperback Format = "PAPERBACK"
	FormatEbook     Format = "EBOOK"
	FormatAudiobook Format = "AUDIOBOOK"
)

var formatSynonyms = map[string]Format{
	"hardcover":             FormatHardcover,
	"hardback":              FormatHardcover,
	"hard cover":            FormatHardcover,
	"library binding":       FormatHardcover,
	"paperback":             FormatPaperback,
	"mass market paperback": FormatPaperback,
	"trade paperback":       FormatPaperback,
	"softcover":             FormatPaperback,
	"soft cover":            FormatPaperback,
	"ebook":                 FormatEbook,
	"e-book":                FormatEbook,
	"kindle edition":        FormatEbook,
	"electronic resource":   FormatEbook,
	"audiobook":             FormatAudiobook,
	"audio cd":              FormatAudiobook,
	"audio cassette":        FormatAudiobook,
	"audible audio":         FormatAudiobook,
}

// ParseFormat maps a provider's physical format to a Format. Unknown or
// empty values yield PAPERBACK and ok=false.
func ParseFormat(raw string) (f Format, ok bool) {
	key := strings.ToLower(NormalizeName(raw))
	if f, ok := formatSynonyms[key]; ok {
		return f, true
	}
	return FormatPaperback, false
}

type Book struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Subtitle       string     `json:"subtitle,omitempty"`
	ISBN           string     `json:"isbn,omitempty"`
	OpenLibraryID  string     `json:"open_library_id,omitempty"`
	GoodreadsID    string     `json:"goodreads_id,omitempty"`
	GoogleBooksID  string     `json:"google_books_id,omitempty"`
	LibraryThingID string     `json:"library_thing_id,omitempty"`
	Format         Format     `json:"format"`
	PublishDate    *time.Time `json:"publish_date,omitempty"`
	Summary        string     `json:"summary,omitempty"`
	ImageURL       string     `json:"image_url,omitempty"`
	IsCollected    bool       `json:"is_collected"`
	Publisher      *Publisher `json:"publisher,omitempty"`
	Credits        []Credit   `json:"credits"`
	Series         []Series   `json:"series"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Creator struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

type Publisher struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Role struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Series struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Credit links a creator to a book in a role. A book holds at most one
// credit per (creator, role) pair.
type Credit struct {
	BookID  string  `json:"-"`
	Creator Creator `json:"creator"`
	Role    Role    `json:"role"`
}

// AuthorRoleTitle is the role given to every work author.
const AuthorRoleTitle = "Author"
