package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/contact"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/importbatch"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/connection"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/spreadsheet"
	"github.com/jacksonlee411/leadimport/pkg/composables"
)

// store is an in-memory tenant scoped database. Transactions snapshot the
// contact table and restore it when fn fails.
type store struct {
	mu          sync.Mutex
	connections map[string]connection.Connection
	batches     map[uuid.UUID]*importbatch.ImportBatch
	batchOrder  []uuid.UUID
	contacts    []contact.Contact
	txCount     int

	createHook func(ctx context.Context, c contact.Contact) error
	updateErr  error
}

func newStore() *store {
	return &store{
		connections: map[string]connection.Connection{},
		batches:     map[uuid.UUID]*importbatch.ImportBatch{},
	}
}

func (s *store) runTx(ctx context.Context, fn func(context.Context) error) error {
	if _, err := composables.UseTenantID(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.txCount++
	snapshot := append([]contact.Contact(nil), s.contacts...)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.contacts = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func connKey(tenantID uuid.UUID, userID string) string {
	return tenantID.String() + "/" + userID
}

type connRepo struct {
	*store
	getErr       error
	updateCalls  atomic.Int32
	failUpdateOK bool
}

func (r *connRepo) GetByUser(ctx context.Context, userID string) (*connection.Connection, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connections[connKey(tenantID, userID)]
	if !ok {
		return nil, connection.ErrConnectionNotFound
	}
	return &c, nil
}

func (r *connRepo) Upsert(ctx context.Context, c *connection.Connection) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := connKey(tenantID, c.UserID)
	if existing, ok := r.connections[key]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
		if c.RefreshToken == "" {
			c.RefreshToken = existing.RefreshToken
		}
	}
	r.connections[key] = *c
	return nil
}

func (r *connRepo) UpdateToken(ctx context.Context, c *connection.Connection, prevExpiry time.Time) (bool, error) {
	r.updateCalls.Add(1)
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := connKey(tenantID, c.UserID)
	existing, ok := r.connections[key]
	if !ok || !existing.TokenExpiry.Equal(prevExpiry) || r.failUpdateOK {
		return false, nil
	}
	r.connections[key] = *c
	return true, nil
}

func (r *connRepo) Delete(ctx context.Context, userID string) (bool, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := connKey(tenantID, userID)
	_, ok := r.connections[key]
	delete(r.connections, key)
	return ok, nil
}

type batchRepo struct {
	*store
	createErr error
}

func (r *batchRepo) Create(ctx context.Context, b *importbatch.ImportBatch) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, err := composables.UseTenantID(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[b.ID()] = cloneBatch(b)
	r.batchOrder = append(r.batchOrder, b.ID())
	return nil
}

func (r *batchRepo) Update(ctx context.Context, b *importbatch.ImportBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.batches[b.ID()]
	if !ok || stored.Status().IsTerminal() {
		return importbatch.ErrBatchFinalized
	}
	r.batches[b.ID()] = cloneBatch(b)
	return nil
}

func (r *batchRepo) GetByID(ctx context.Context, id uuid.UUID) (*importbatch.ImportBatch, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok || b.TenantID() != tenantID {
		return nil, importbatch.ErrBatchNotFound
	}
	return cloneBatch(b), nil
}

func (r *batchRepo) List(ctx context.Context, params *importbatch.FindParams) ([]*importbatch.ImportBatch, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*importbatch.ImportBatch
	for i := len(r.batchOrder) - 1; i >= 0; i-- {
		b := r.batches[r.batchOrder[i]]
		if b.TenantID() == tenantID {
			out = append(out, cloneBatch(b))
		}
	}
	if params != nil && params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (r *batchRepo) only() *importbatch.ImportBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batchOrder) != 1 {
		return nil
	}
	return r.batches[r.batchOrder[0]]
}

func cloneBatch(b *importbatch.ImportBatch) *importbatch.ImportBatch {
	return importbatch.Hydrate(importbatch.HydrateParams{
		ID:                b.ID(),
		TenantID:          b.TenantID(),
		UserID:            b.UserID(),
		SourceType:        b.SourceType(),
		SourceID:          b.SourceID(),
		SourceName:        b.SourceName(),
		Status:            b.Status(),
		TotalRows:         b.TotalRows(),
		ImportedCount:     b.ImportedCount(),
		SkippedCount:      b.SkippedCount(),
		ErrorCount:        b.ErrorCount(),
		Errors:            b.Errors(),
		ColumnMapping:     b.ColumnMapping(),
		DuplicateStrategy: b.DuplicateStrategy(),
		CreatedAt:         b.CreatedAt(),
		CompletedAt:       b.CompletedAt(),
	})
}

type contactRepo struct {
	*store
}

func (r *contactRepo) FindByEmail(ctx context.Context, email string) (contact.Contact, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return contact.Contact{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.TenantID() == tenantID && c.Email() == email {
			return c, nil
		}
	}
	return contact.Contact{}, contact.ErrContactNotFound
}

func (r *contactRepo) Create(ctx context.Context, c contact.Contact) (contact.Contact, error) {
	if _, err := composables.UseTenantID(ctx); err != nil {
		return contact.Contact{}, err
	}
	r.mu.Lock()
	r.contacts = append(r.contacts, c)
	hook := r.createHook
	r.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, c); err != nil {
			return contact.Contact{}, err
		}
	}
	return c, nil
}

func (r *contactRepo) Update(ctx context.Context, c contact.Contact) (contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return contact.Contact{}, r.updateErr
	}
	for i := range r.contacts {
		if r.contacts[i].ID() == c.ID() {
			r.contacts[i] = c
			return c, nil
		}
	}
	return contact.Contact{}, contact.ErrContactNotFound
}

func (s *store) contactsByEmail(email string) []contact.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contact.Contact
	for _, c := range s.contacts {
		if c.Email() == email {
			out = append(out, c)
		}
	}
	return out
}

func (s *store) contactCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contacts)
}

type fakeProvider struct {
	mu           sync.Mutex
	values       map[string][][]string
	info         map[string]*spreadsheet.Info
	files        []spreadsheet.File
	exchangeTok  *spreadsheet.Token
	exchangeErr  error
	refreshTok   *spreadsheet.Token
	refreshErr   error
	refreshGate  chan struct{}
	emailErr     error
	readErr      error
	refreshCalls atomic.Int32
	readCalls    atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		values: map[string][][]string{},
		info:   map[string]*spreadsheet.Info{},
	}
}

func (p *fakeProvider) addSheet(id, title string, values [][]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.info[id] = &spreadsheet.Info{ID: id, Title: title, SheetNames: []string{"Sheet1"}}
	p.values[id] = values
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*spreadsheet.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	tok := *p.exchangeTok
	return &tok, nil
}

func (p *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*spreadsheet.Token, error) {
	p.refreshCalls.Add(1)
	if p.refreshGate != nil {
		<-p.refreshGate
	}
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	tok := *p.refreshTok
	return &tok, nil
}

func (p *fakeProvider) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	if p.emailErr != nil {
		return "", p.emailErr
	}
	return "ann@x.com", nil
}

func (p *fakeProvider) ListSpreadsheets(ctx context.Context, accessToken string) ([]spreadsheet.File, error) {
	if p.readErr != nil {
		return nil, p.readErr
	}
	return p.files, nil
}

func (p *fakeProvider) Metadata(ctx context.Context, accessToken, spreadsheetID string) (*spreadsheet.Info, error) {
	if p.readErr != nil {
		return nil, p.readErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.info[spreadsheetID]
	if !ok {
		return nil, errors.New("404 spreadsheet not found")
	}
	return info, nil
}

func (p *fakeProvider) ReadValues(ctx context.Context, accessToken, spreadsheetID, sheetName string) ([][]string, error) {
	p.readCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[spreadsheetID]
	if !ok {
		return nil, errors.New("404 spreadsheet not found")
	}
	return v, nil
}

type staticTokens struct {
	token string
	ok    bool
	err   error
}

func (s staticTokens) GetValidAccessToken(ctx context.Context, userID string, tenantID uuid.UUID) (string, bool, error) {
	return s.token, s.ok, s.err
}

func sortedEmails(cs []contact.Contact) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Email())
	}
	sort.Strings(out)
	return out
}
