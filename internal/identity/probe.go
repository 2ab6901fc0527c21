package identity

import (
	"context"
	"errors"
	"strings"

	"bookcatalog/internal/catalog"
)

type ProbeKind int

const (
	ByExternalID ProbeKind = iota + 1
	ByISBN
	ByTitlePair
	ByName
)

func (k ProbeKind) String() string {
	switch k {
	case ByExternalID:
		return "external_id"
	case ByISBN:
		return "isbn"
	case ByTitlePair:
		return "title_pair"
	case ByName:
		return "name"
	default:
		return "unknown"
	}
}

// Probe is one exact-match lookup. Secondary is only used by ByTitlePair
// and holds the subtitle.
type Probe struct {
	Kind      ProbeKind
	Value     string
	Secondary string
}

func ExternalID(id string) Probe { return Probe{Kind: ByExternalID, Value: strings.TrimSpace(id)} }

func ISBN(isbn string) Probe { return Probe{Kind: ByISBN, Value: strings.TrimSpace(isbn)} }

func TitlePair(title, subtitle string) Probe {
	return Probe{Kind: ByTitlePair, Value: strings.TrimSpace(title), Secondary: strings.TrimSpace(subtitle)}
}

func Name(name string) Probe { return Probe{Kind: ByName, Value: strings.TrimSpace(name)} }

// Empty probes carry no identity signal and are skipped.
func (p Probe) Empty() bool {
	return strings.TrimSpace(p.Value) == ""
}

// FindFunc looks up one probe. A miss is reported as catalog.ErrNotFound.
type FindFunc[T any] func(ctx context.Context, p Probe) (T, error)

// Resolve evaluates probes in order and returns the first match. Any error
// other than catalog.ErrNotFound stops the search.
func Resolve[T any](ctx context.Context, find FindFunc[T], probes []Probe) (T, bool, error) {
	var zero T
	for _, p := range probes {
		if p.Empty() {
			continue
		}
		v, err := find(ctx, p)
		if err == nil {
			return v, true, nil
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			return zero, false, err
		}
	}
	return zero, false, nil
}
