// Package testutil provides in-memory stores that satisfy the service
// interfaces, for tests that do not need SQL.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/property-rental-api/internal/model"
	"github.com/iliyamo/property-rental-api/internal/repository"
)

// Contacts is an in-memory ContactStore. Phone matching compares the raw
// stored value against the candidates, as the SQL query does after
// stripping separators.
type Contacts struct {
	mu   sync.Mutex
	next uint64
	rows map[uint64]model.Contact
}

func NewContacts(seed ...model.Contact) *Contacts {
	s := &Contacts{rows: map[uint64]model.Contact{}}
	for _, c := range seed {
		s.put(c)
	}
	return s
}

func (s *Contacts) put(c model.Contact) uint64 {
	if c.ID == 0 {
		s.next++
		c.ID = s.next
	} else if c.ID > s.next {
		s.next = c.ID
	}
	s.rows[c.ID] = c
	return c.ID
}

// Peek returns the stored row for assertions.
func (s *Contacts) Peek(id uint64) model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

func (s *Contacts) GetByID(_ context.Context, id uint64) (model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return c, repository.ErrContactNotFound
	}
	return c, nil
}

func (s *Contacts) FindByEmail(_ context.Context, email string) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Contact
	for _, c := range s.sorted() {
		if strings.EqualFold(strings.TrimSpace(c.Email), strings.TrimSpace(email)) {
			out = append(out, c)
		}
	}
	return out, nil
}

var separators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")

func (s *Contacts) FindByPhones(_ context.Context, candidates []string) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]bool{}
	for _, c := range candidates {
		want[c] = true
	}
	var out []model.Contact
	for _, c := range s.sorted() {
		if want[separators.Replace(c.Phone)] || want[separators.Replace(c.Mobile)] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Contacts) sorted() []model.Contact {
	out := make([]model.Contact, 0, len(s.rows))
	for _, c := range s.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Contacts) Create(_ context.Context, c *model.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = 0
	c.ID = s.put(*c)
	return nil
}

func (s *Contacts) UpdateProfile(_ context.Context, c model.Contact) error {
	return s.update(c.ID, func(cur *model.Contact) {
		pw, ver, otp, exp := cur.Password, cur.IsVerified, cur.OTPCode, cur.OTPExpiresAt
		*cur = c
		cur.Password, cur.IsVerified, cur.OTPCode, cur.OTPExpiresAt = pw, ver, otp, exp
	})
}

func (s *Contacts) SetPassword(_ context.Context, id uint64, hash string, verify bool) error {
	return s.update(id, func(c *model.Contact) {
		c.Password = hash
		if verify {
			c.IsVerified = true
		}
	})
}

func (s *Contacts) SetOTP(_ context.Context, id uint64, code string, expires time.Time) error {
	return s.update(id, func(c *model.Contact) { c.OTPCode, c.OTPExpiresAt = code, &expires })
}

func (s *Contacts) ConfirmOTP(_ context.Context, id uint64) error {
	return s.update(id, func(c *model.Contact) { c.IsVerified, c.OTPCode, c.OTPExpiresAt = true, "", nil })
}

func (s *Contacts) ClearOTP(_ context.Context, id uint64) error {
	return s.update(id, func(c *model.Contact) { c.OTPCode, c.OTPExpiresAt = "", nil })
}

func (s *Contacts) ResetVerification(_ context.Context, id uint64) error {
	return s.update(id, func(c *model.Contact) { c.IsVerified = false })
}

func (s *Contacts) update(id uint64, f func(*model.Contact)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return repository.ErrContactNotFound
	}
	f(&c)
	s.rows[id] = c
	return nil
}

// Tokens is an in-memory TokenRepository.
type Tokens struct {
	mu      sync.Mutex
	next    uint64
	refresh map[uint64]model.RefreshToken
	access  map[uint64]model.AccessToken
}

func NewTokens() *Tokens {
	return &Tokens{refresh: map[uint64]model.RefreshToken{}, access: map[uint64]model.AccessToken{}}
}

func (s *Tokens) insert(r *model.RefreshToken, a *model.AccessToken) {
	s.next++
	r.ID = s.next
	r.State = model.RefreshActive
	s.refresh[r.ID] = *r
	s.next++
	a.ID = s.next
	a.RefreshID = r.ID
	s.access[a.ID] = *a
}

func (s *Tokens) CreatePair(_ context.Context, r *model.RefreshToken, a *model.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(r, a)
	return nil
}

func (s *Tokens) Rotate(_ context.Context, oldID uint64, r *model.RefreshToken, a *model.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.refresh[oldID]
	if !ok || old.State != model.RefreshActive {
		return repository.ErrTokenNotActive
	}
	now := time.Now().UTC()
	old.State, old.RotatedAt = model.RefreshRotated, &now
	s.refresh[oldID] = old
	for id, t := range s.access {
		if t.RefreshID == oldID {
			delete(s.access, id)
		}
	}
	s.insert(r, a)
	return nil
}

func (s *Tokens) FindAccess(_ context.Context, hash string) (model.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.access {
		if t.TokenHash == hash {
			return t, nil
		}
	}
	return model.AccessToken{}, repository.ErrTokenNotFound
}

func (s *Tokens) FindRefresh(_ context.Context, hash string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.refresh {
		if t.TokenHash == hash {
			return t, nil
		}
	}
	return model.RefreshToken{}, repository.ErrTokenNotFound
}

func (s *Tokens) RevokeFamily(_ context.Context, family string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.refresh {
		if t.FamilyID != family {
			continue
		}
		t.State = model.RefreshRevoked
		s.refresh[id] = t
		for aid, a := range s.access {
			if a.RefreshID == id {
				delete(s.access, aid)
			}
		}
	}
	return nil
}

// AccessCount reports how many access tokens are stored.
func (s *Tokens) AccessCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.access)
}

// Settings is an in-memory SettingsStore.
type Settings struct {
	mu     sync.Mutex
	params map[string]string
	Front  *model.FrontConfig
}

func NewSettings(params map[string]string, front *model.FrontConfig) *Settings {
	p := map[string]string{}
	for k, v := range params {
		p[k] = v
	}
	return &Settings{params: p, Front: front}
}

func (s *Settings) Param(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.params[key]
	if !ok {
		return "", repository.ErrParamNotFound
	}
	return v, nil
}

func (s *Settings) Params(_ context.Context, prefix string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for k, v := range s.params {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (s *Settings) SetParam(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[key] = value
	return nil
}

func (s *Settings) ActiveFrontConfig(_ context.Context) (model.FrontConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Front == nil || !s.Front.Active {
		return model.FrontConfig{}, repository.ErrFrontConfigNotFound
	}
	return *s.Front, nil
}
