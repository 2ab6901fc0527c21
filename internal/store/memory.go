package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"bookcatalog/internal/catalog"
	apperrors "bookcatalog/internal/errors"

	"github.com/google/uuid"
)

var errConcurrentCommit = errors.New("another transaction committed first")

type creditRow struct {
	bookID    string
	creatorID string
	roleID    string
}

type named struct {
	id   string
	name string
}

type memState struct {
	books      map[string]catalog.Book
	creators   map[string]catalog.Creator
	publishers map[string]named
	roles      map[string]named
	series     map[string]named
	credits    []creditRow
	bookSeries map[string][]string
}

func newMemState() *memState {
	return &memState{
		books:      make(map[string]catalog.Book),
		creators:   make(map[string]catalog.Creator),
		publishers: make(map[string]named),
		roles:      make(map[string]named),
		series:     make(map[string]named),
		bookSeries: make(map[string][]string),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		books:      maps.Clone(s.books),
		creators:   maps.Clone(s.creators),
		publishers: maps.Clone(s.publishers),
		roles:      maps.Clone(s.roles),
		series:     maps.Clone(s.series),
		credits:    append([]creditRow(nil), s.credits...),
		bookSeries: make(map[string][]string, len(s.bookSeries)),
	}
	for k, v := range s.bookSeries {
		c.bookSeries[k] = append([]string(nil), v...)
	}
	return c
}

// Memory is an in-process catalogue store. Each transaction works on a
// private snapshot; at commit the first committer wins and any transaction
// that started before it fails with StorageConflictError.
type Memory struct {
	mu      sync.Mutex
	state   *memState
	version uint64
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{state: newMemState(), now: time.Now}
}

func (m *Memory) WithinTx(ctx context.Context, fn catalog.TxFunc) error {
	m.mu.Lock()
	snapshot := m.state.clone()
	startVersion := m.version
	m.mu.Unlock()

	repo := &memRepo{st: snapshot, now: m.now}
	if err := fn(ctx, repo); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !repo.dirty {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.version != startVersion {
		return apperrors.NewStorageConflictError(errConcurrentCommit)
	}
	m.state = snapshot
	m.version++
	return nil
}

func (m *Memory) GetBook(ctx context.Context, id string) (catalog.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memRepo{st: m.state, now: m.now}).GetBook(ctx, id)
}

// CountBooks reports the number of committed books.
func (m *Memory) CountBooks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.books)
}

type memRepo struct {
	st    *memState
	now   func() time.Time
	dirty bool
}

func uniqueViolation(constraint string) error {
	return apperrors.NewStorageConflictError(fmt.Errorf("duplicate key violates unique constraint %q", constraint))
}

func (r *memRepo) publisher(id string) *catalog.Publisher {
	if id == "" {
		return nil
	}
	p, ok := r.st.publishers[id]
	if !ok {
		return nil
	}
	return &catalog.Publisher{ID: p.id, Name: p.name}
}

func (r *memRepo) hydrate(b catalog.Book) catalog.Book {
	if b.Publisher != nil {
		b.Publisher = r.publisher(b.Publisher.ID)
	}
	b.Credits = nil
	b.Series = nil
	return b
}

func (r *memRepo) GetBook(ctx context.Context, id string) (catalog.Book, error) {
	b, ok := r.st.books[id]
	if !ok {
		return catalog.Book{}, catalog.ErrNotFound
	}
	b = r.hydrate(b)
	credits, err := r.ListCredits(ctx, id)
	if err != nil {
		return catalog.Book{}, err
	}
	b.Credits = credits

	b.Series = []catalog.Series{}
	for _, sid := range r.st.bookSeries[id] {
		s := r.st.series[sid]
		b.Series = append(b.Series, catalog.Series{ID: s.id, Title: s.name})
	}
	sort.Slice(b.Series, func(i, j int) bool { return b.Series[i].Title < b.Series[j].Title })
	return b, nil
}

func (r *memRepo) findBook(match func(catalog.Book) bool) (catalog.Book, error) {
	for _, b := range r.st.books {
		if match(b) {
			return r.hydrate(b), nil
		}
	}
	return catalog.Book{}, catalog.ErrNotFound
}

func (r *memRepo) FindBookByOpenLibraryID(_ context.Context, olid string) (catalog.Book, error) {
	return r.findBook(func(b catalog.Book) bool { return olid != "" && b.OpenLibraryID == olid })
}

func (r *memRepo) FindBookByISBN(_ context.Context, isbn string) (catalog.Book, error) {
	return r.findBook(func(b catalog.Book) bool { return isbn != "" && b.ISBN == isbn })
}

func (r *memRepo) FindBookByTitle(_ context.Context, title, subtitle string) (catalog.Book, error) {
	return r.findBook(func(b catalog.Book) bool { return b.Title == title && b.Subtitle == subtitle })
}

func (r *memRepo) checkBookUnique(b *catalog.Book) error {
	for id, other := range r.st.books {
		if id == b.ID {
			continue
		}
		switch {
		case b.OpenLibraryID != "" && other.OpenLibraryID == b.OpenLibraryID:
			return uniqueViolation("books_open_library_id_key")
		case b.ISBN != "" && other.ISBN == b.ISBN:
			return uniqueViolation("books_isbn_key")
		case other.Title == b.Title && other.Subtitle == b.Subtitle:
			return uniqueViolation("books_title_subtitle_key")
		}
	}
	return nil
}

func (r *memRepo) storeBook(b *catalog.Book) {
	stored := *b
	stored.Credits = nil
	stored.Series = nil
	if b.Publisher != nil {
		stored.Publisher = &catalog.Publisher{ID: b.Publisher.ID}
	}
	r.st.books[b.ID] = stored
	r.dirty = true
}

func (r *memRepo) CreateBook(_ context.Context, b *catalog.Book) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if err := r.checkBookUnique(b); err != nil {
		return err
	}
	now := r.now()
	b.CreatedAt, b.UpdatedAt = now, now
	r.storeBook(b)
	return nil
}

func (r *memRepo) UpdateBook(_ context.Context, b *catalog.Book) error {
	existing, ok := r.st.books[b.ID]
	if !ok {
		return catalog.ErrNotFound
	}
	if err := r.checkBookUnique(b); err != nil {
		return err
	}
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = r.now()
	r.storeBook(b)
	return nil
}

func (r *memRepo) FindCreatorByName(_ context.Context, name string) (catalog.Creator, error) {
	key := catalog.NormalizeKey(name)
	for _, c := range r.st.creators {
		if catalog.NormalizeKey(c.Name) == key {
			return c, nil
		}
	}
	return catalog.Creator{}, catalog.ErrNotFound
}

func (r *memRepo) CreateCreator(ctx context.Context, c *catalog.Creator) error {
	if _, err := r.FindCreatorByName(ctx, c.Name); err == nil {
		return uniqueViolation("creators_name_key_key")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Name = catalog.NormalizeName(c.Name)
	r.st.creators[c.ID] = *c
	r.dirty = true
	return nil
}

func (r *memRepo) UpdateCreator(_ context.Context, c *catalog.Creator) error {
	existing, ok := r.st.creators[c.ID]
	if !ok {
		return catalog.ErrNotFound
	}
	existing.ImageURL = c.ImageURL
	r.st.creators[c.ID] = existing
	r.dirty = true
	return nil
}

func findNamed(table map[string]named, name string) (named, bool) {
	key := catalog.NormalizeKey(name)
	for _, n := range table {
		if catalog.NormalizeKey(n.name) == key {
			return n, true
		}
	}
	return named{}, false
}

func (r *memRepo) createNamed(table map[string]named, constraint string, id *string, name *string) error {
	if _, ok := findNamed(table, *name); ok {
		return uniqueViolation(constraint)
	}
	if *id == "" {
		*id = uuid.NewString()
	}
	*name = catalog.NormalizeName(*name)
	table[*id] = named{id: *id, name: *name}
	r.dirty = true
	return nil
}

func (r *memRepo) FindPublisherByName(_ context.Context, name string) (catalog.Publisher, error) {
	if n, ok := findNamed(r.st.publishers, name); ok {
		return catalog.Publisher{ID: n.id, Name: n.name}, nil
	}
	return catalog.Publisher{}, catalog.ErrNotFound
}

func (r *memRepo) CreatePublisher(_ context.Context, p *catalog.Publisher) error {
	return r.createNamed(r.st.publishers, "publishers_name_key_key", &p.ID, &p.Name)
}

func (r *memRepo) FindRoleByTitle(_ context.Context, title string) (catalog.Role, error) {
	if n, ok := findNamed(r.st.roles, title); ok {
		return catalog.Role{ID: n.id, Title: n.name}, nil
	}
	return catalog.Role{}, catalog.ErrNotFound
}

func (r *memRepo) CreateRole(_ context.Context, role *catalog.Role) error {
	return r.createNamed(r.st.roles, "roles_name_key_key", &role.ID, &role.Title)
}

func (r *memRepo) FindSeriesByTitle(_ context.Context, title string) (catalog.Series, error) {
	if n, ok := findNamed(r.st.series, title); ok {
		return catalog.Series{ID: n.id, Title: n.name}, nil
	}
	return catalog.Series{}, catalog.ErrNotFound
}

func (r *memRepo) CreateSeries(_ context.Context, s *catalog.Series) error {
	return r.createNamed(r.st.series, "series_name_key_key", &s.ID, &s.Title)
}

func (r *memRepo) AddSeriesMembership(_ context.Context, bookID, seriesID string) error {
	if _, ok := r.st.books[bookID]; !ok {
		return catalog.ErrNotFound
	}
	for _, id := range r.st.bookSeries[bookID] {
		if id == seriesID {
			return nil
		}
	}
	r.st.bookSeries[bookID] = append(r.st.bookSeries[bookID], seriesID)
	r.dirty = true
	return nil
}

func (r *memRepo) ListCredits(_ context.Context, bookID string) ([]catalog.Credit, error) {
	credits := []catalog.Credit{}
	for _, row := range r.st.credits {
		if row.bookID != bookID {
			continue
		}
		role := r.st.roles[row.roleID]
		credits = append(credits, catalog.Credit{
			BookID:  bookID,
			Creator: r.st.creators[row.creatorID],
			Role:    catalog.Role{ID: role.id, Title: role.name},
		})
	}
	return credits, nil
}

func (r *memRepo) CreateCredit(_ context.Context, c catalog.Credit) error {
	if _, ok := r.st.books[c.BookID]; !ok {
		return catalog.ErrNotFound
	}
	row := creditRow{bookID: c.BookID, creatorID: c.Creator.ID, roleID: c.Role.ID}
	for _, existing := range r.st.credits {
		if existing == row {
			return nil
		}
	}
	r.st.credits = append(r.st.credits, row)
	r.dirty = true
	return nil
}

func (r *memRepo) DeleteCredits(_ context.Context, bookID string) error {
	kept := r.st.credits[:0:0]
	for _, row := range r.st.credits {
		if row.bookID != bookID {
			kept = append(kept, row)
		}
	}
	if len(kept) != len(r.st.credits) {
		r.dirty = true
	}
	r.st.credits = kept
	return nil
}

var _ catalog.Repository = (*memRepo)(nil)
