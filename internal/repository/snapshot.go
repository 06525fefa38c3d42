package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"fieldops/internal/models"
)

type snapshotUser struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

// snapshot is the on-disk form of a MemoryStore.
type snapshot struct {
	Customers []models.Customer        `json:"customers"`
	Products  []models.Product         `json:"products"`
	Orders    []models.Order           `json:"orders"`
	Requests  []models.OrderRequest    `json:"requests"`
	Bills     []models.BillTransaction `json:"bills"`
	Roles     []models.Role            `json:"roles"`
	Users     []snapshotUser           `json:"users"`
	Tasks     []Task                   `json:"tasks"`
	NextTask  int64                    `json:"next_task"`
}

func byKey[V any](m map[string]V) []V {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// LoadMemoryStore restores a store saved at path; a missing file yields an empty store.
func LoadMemoryStore(path string) (*MemoryStore, error) {
	s := NewMemoryStore()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}

	st := s.state
	for _, c := range snap.Customers {
		st.customers[c.ID] = c
	}
	for _, p := range snap.Products {
		st.products[p.ID] = p
	}
	for _, o := range snap.Orders {
		st.orders[o.ID] = o
	}
	for _, r := range snap.Requests {
		st.requests[r.ID] = r
	}
	for _, b := range snap.Bills {
		st.bills[b.ID] = b
	}
	for _, r := range snap.Roles {
		st.roles[r.Name] = r
	}
	for _, u := range snap.Users {
		u.User.PasswordHash = u.PasswordHash
		st.users[u.ID] = u.User
	}
	for _, t := range snap.Tasks {
		st.tasks[t.ID] = t
	}
	st.nextTask = snap.NextTask
	return s, nil
}

// Save writes the whole state to path, replacing the previous file atomically.
func (s *MemoryStore) Save(path string) error {
	s.mu.Lock()
	st := s.state.clone()
	s.mu.Unlock()

	snap := snapshot{
		Customers: byKey(st.customers),
		Products:  byKey(st.products),
		Orders:    byKey(st.orders),
		Requests:  byKey(st.requests),
		Bills:     byKey(st.bills),
		Roles:     byKey(st.roles),
		NextTask:  st.nextTask,
	}
	for _, u := range byKey(st.users) {
		snap.Users = append(snap.Users, snapshotUser{User: u, PasswordHash: u.PasswordHash})
	}
	for _, t := range st.tasks {
		snap.Tasks = append(snap.Tasks, t)
	}
	sort.Slice(snap.Tasks, func(i, j int) bool { return snap.Tasks[i].ID < snap.Tasks[j].ID })

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
