package activitypub

import (
	"sync"

	"github.com/deemkeen/aprelay/domain"
	"github.com/deemkeen/aprelay/relayerr"
	"github.com/deemkeen/aprelay/store"
)

var _ store.Store = (*MockStore)(nil)

// MockStore is an in-memory store.Store for activitypub package tests,
// grounded on gnp-x-stegodon's MockDatabase map-of-everything shape.
type MockStore struct {
	mu sync.Mutex

	Instances map[string]*domain.Instance
	Bans      map[string]*domain.DomainBan
	SoftBans  map[string]*domain.SoftwareBan
	Whitelist map[string]*domain.Whitelist
	Config    map[string]domain.ConfigEntry

	ForceError error
}

func NewMockStore() *MockStore {
	return &MockStore{
		Instances: make(map[string]*domain.Instance),
		Bans:      make(map[string]*domain.DomainBan),
		SoftBans:  make(map[string]*domain.SoftwareBan),
		Whitelist: make(map[string]*domain.Whitelist),
		Config:    make(map[string]domain.ConfigEntry),
	}
}

func (m *MockStore) GetInstance(value string) (*domain.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return nil, m.ForceError
	}
	if in, ok := m.Instances[value]; ok {
		cp := *in
		return &cp, nil
	}
	for _, in := range m.Instances {
		if in.Actor == value || in.Inbox == value {
			cp := *in
			return &cp, nil
		}
	}
	return nil, relayerr.New(relayerr.NotFound, "instance not found")
}

func (m *MockStore) PutInstance(in domain.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	cp := in
	m.Instances[in.Domain] = &cp
	return nil
}

func (m *MockStore) DeleteInstance(dom string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Instances[dom]; !ok {
		return relayerr.New(relayerr.NotFound, "instance not found")
	}
	delete(m.Instances, dom)
	return nil
}

func (m *MockStore) GetRequests() ([]domain.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Instance
	for _, in := range m.Instances {
		if !in.Accepted {
			out = append(out, *in)
		}
	}
	return out, nil
}

func (m *MockStore) PutRequestResponse(dom string, accept bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.Instances[dom]
	if !ok {
		return relayerr.New(relayerr.NotFound, "no pending request")
	}
	if accept {
		in.Accepted = true
	} else {
		delete(m.Instances, dom)
	}
	return nil
}

func (m *MockStore) GetDomainBan(dom string) (*domain.DomainBan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.Bans[dom]; ok {
		return b, nil
	}
	return nil, relayerr.New(relayerr.NotFound, "no ban")
}

func (m *MockStore) PutDomainBan(ban domain.DomainBan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Bans[ban.Domain] = &ban
	delete(m.Instances, ban.Domain)
	return nil
}

func (m *MockStore) UpdateDomainBan(ban domain.DomainBan) error {
	return m.PutDomainBan(ban)
}

func (m *MockStore) DeleteDomainBan(dom string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Bans, dom)
	return nil
}

func (m *MockStore) ListDomainBans() ([]domain.DomainBan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DomainBan
	for _, b := range m.Bans {
		out = append(out, *b)
	}
	return out, nil
}

func (m *MockStore) GetSoftwareBan(name string) (*domain.SoftwareBan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.SoftBans[name]; ok {
		return b, nil
	}
	return nil, relayerr.New(relayerr.NotFound, "no ban")
}

func (m *MockStore) PutSoftwareBan(ban domain.SoftwareBan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SoftBans[ban.Name] = &ban
	return nil
}

func (m *MockStore) UpdateSoftwareBan(ban domain.SoftwareBan) error {
	return m.PutSoftwareBan(ban)
}

func (m *MockStore) DeleteSoftwareBan(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.SoftBans, name)
	return nil
}

func (m *MockStore) ListSoftwareBans() ([]domain.SoftwareBan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SoftwareBan
	for _, b := range m.SoftBans {
		out = append(out, *b)
	}
	return out, nil
}

func (m *MockStore) GetDomainWhitelist(dom string) (*domain.Whitelist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.Whitelist[dom]; ok {
		return w, nil
	}
	return nil, relayerr.New(relayerr.NotFound, "not whitelisted")
}

func (m *MockStore) PutDomainWhitelist(w domain.Whitelist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Whitelist[w.Domain] = &w
	return nil
}

func (m *MockStore) DeleteDomainWhitelist(dom string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Whitelist, dom)
	return nil
}

func (m *MockStore) ListDomainWhitelist() ([]domain.Whitelist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Whitelist
	for _, w := range m.Whitelist {
		out = append(out, *w)
	}
	return out, nil
}

func (m *MockStore) GetConfig(key string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.Config[key]; ok {
		return e.Value, e.Type, nil
	}
	return "", "", relayerr.New(relayerr.NotFound, "unknown key")
}

func (m *MockStore) GetConfigAll() ([]domain.ConfigEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ConfigEntry
	for _, e := range m.Config {
		out = append(out, e)
	}
	return out, nil
}

func (m *MockStore) PutConfig(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Config[key] = domain.ConfigEntry{Key: key, Value: value}
	return nil
}

func (m *MockStore) DistillInboxes(senderDomain, objectDomain string) ([]domain.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Instance
	for _, in := range m.Instances {
		if in.Accepted && in.Domain != senderDomain && in.Domain != objectDomain {
			out = append(out, *in)
		}
	}
	return out, nil
}

func (m *MockStore) ListAcceptedInstances() ([]domain.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Instance
	for _, in := range m.Instances {
		if in.Accepted {
			out = append(out, *in)
		}
	}
	return out, nil
}

func (m *MockStore) Close() error { return nil }
