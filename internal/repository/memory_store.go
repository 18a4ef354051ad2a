package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/subman/internal/model"
)

// MemoryStore はプロセス内メモリに保持するストア。
// pathを指定した場合は書き込みのたびにJSONファイルへ永続化し、起動時に読み込む。
// SubscriptionStoreとWorkspaceRepositoryの両方を実装する。
type MemoryStore struct {
	mu         sync.RWMutex
	path       string
	now        func() time.Time
	workspaces map[string]*model.Workspace
	// workspaceID -> subscriptionID -> subscription
	subs map[string]map[string]*model.Subscription
}

type persistedState struct {
	Workspaces    []*model.Workspace    `json:"workspaces"`
	Subscriptions []*model.Subscription `json:"subscriptions"`
}

// NewMemoryStore はMemoryStoreを生成する。pathが空の場合は永続化しない。
func NewMemoryStore(path string) (*MemoryStore, error) {
	s := &MemoryStore{
		path:       path,
		now:        time.Now,
		workspaces: make(map[string]*model.Workspace),
		subs:       make(map[string]map[string]*model.Subscription),
	}
	if path == "" {
		return s, nil
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemoryStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("データファイルの読み込みに失敗しました: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("データファイルの解析に失敗しました: %w", err)
	}
	for _, ws := range state.Workspaces {
		s.workspaces[ws.ID] = ws
	}
	for _, sub := range state.Subscriptions {
		s.bucketLocked(sub.WorkspaceID)[sub.ID] = sub
	}
	return nil
}

func (s *MemoryStore) persistLocked() error {
	if s.path == "" {
		return nil
	}
	state := persistedState{
		Workspaces:    make([]*model.Workspace, 0, len(s.workspaces)),
		Subscriptions: make([]*model.Subscription, 0),
	}
	for _, ws := range s.workspaces {
		state.Workspaces = append(state.Workspaces, ws)
	}
	for _, bucket := range s.subs {
		for _, sub := range bucket {
			state.Subscriptions = append(state.Subscriptions, sub)
		}
	}
	sort.Slice(state.Workspaces, func(i, j int) bool { return state.Workspaces[i].ID < state.Workspaces[j].ID })
	sort.Slice(state.Subscriptions, func(i, j int) bool {
		a, b := state.Subscriptions[i], state.Subscriptions[j]
		if a.WorkspaceID != b.WorkspaceID {
			return a.WorkspaceID < b.WorkspaceID
		}
		return a.ID < b.ID
	})

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("データのシリアライズに失敗しました: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("データディレクトリの作成に失敗しました: %w", err)
		}
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("データファイルの書き込みに失敗しました: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("データファイルの置き換えに失敗しました: %w", err)
	}
	return nil
}

func (s *MemoryStore) bucketLocked(workspaceID string) map[string]*model.Subscription {
	bucket, ok := s.subs[workspaceID]
	if !ok {
		bucket = make(map[string]*model.Subscription)
		s.subs[workspaceID] = bucket
	}
	return bucket
}

func (s *MemoryStore) ensureWorkspaceLocked(workspaceID string, now time.Time) {
	if _, ok := s.workspaces[workspaceID]; ok {
		return
	}
	s.workspaces[workspaceID] = &model.Workspace{
		ID:         workspaceID,
		Name:       model.DefaultWorkspaceName,
		SortOption: model.DefaultSortOption,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *MemoryStore) listLocked(workspaceID string) []*model.Subscription {
	bucket := s.subs[workspaceID]
	out := make([]*model.Subscription, 0, len(bucket))
	for _, sub := range bucket {
		out = append(out, sub.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListByWorkspace はワークスペースの全サブスクリプションのコピーを返す。
func (s *MemoryStore) ListByWorkspace(_ context.Context, workspaceID string) ([]*model.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(workspaceID), nil
}

// ListByShareToken は共有トークンに対応するワークスペースの全サブスクリプションを返す。
func (s *MemoryStore) ListByShareToken(_ context.Context, token string) ([]*model.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token == "" {
		return nil, model.ErrNotFound
	}
	for _, ws := range s.workspaces {
		if ws.ShareToken == token {
			return s.listLocked(ws.ID), nil
		}
	}
	return nil, model.ErrNotFound
}

// CreateInWorkspace はサブスクリプションを作成する。ワークスペースが無い場合は作成する。
func (s *MemoryStore) CreateInWorkspace(_ context.Context, workspaceID string, in model.NewSubscription) (*model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	sub := newSubscriptionFromInput(workspaceID, in, now)
	bucket := s.bucketLocked(workspaceID)
	if _, exists := bucket[sub.ID]; exists {
		return nil, fmt.Errorf("サブスクリプションIDが重複しています: %s", sub.ID)
	}
	s.ensureWorkspaceLocked(workspaceID, now)
	bucket[sub.ID] = sub
	if err := s.persistLocked(); err != nil {
		delete(bucket, sub.ID)
		return nil, err
	}
	return sub.Clone(), nil
}

// UpdateInWorkspace はサブスクリプションを部分更新する。
func (s *MemoryStore) UpdateInWorkspace(_ context.Context, workspaceID, id string, patch model.SubscriptionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.subs[workspaceID][id]
	if !ok {
		return model.ErrNotFound
	}
	updated := current.Clone()
	patch.Apply(updated)
	updated.UpdatedAt = s.now().UTC()
	s.subs[workspaceID][id] = updated
	if err := s.persistLocked(); err != nil {
		s.subs[workspaceID][id] = current
		return err
	}
	return nil
}

// DeleteInWorkspace はサブスクリプションを削除する。
func (s *MemoryStore) DeleteInWorkspace(_ context.Context, workspaceID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.subs[workspaceID][id]
	if !ok {
		return model.ErrNotFound
	}
	delete(s.subs[workspaceID], id)
	if err := s.persistLocked(); err != nil {
		s.subs[workspaceID][id] = current
		return err
	}
	return nil
}

// FindByID は指定IDのワークスペースを取得する。見つからない場合はnilを返す。
func (s *MemoryStore) FindByID(_ context.Context, id string) (*model.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.workspaces[id]
	if !ok {
		return nil, nil
	}
	c := *ws
	return &c, nil
}

// FindByShareToken は共有トークンでワークスペースを検索する。見つからない場合はnilを返す。
func (s *MemoryStore) FindByShareToken(_ context.Context, token string) (*model.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token == "" {
		return nil, nil
	}
	for _, ws := range s.workspaces {
		if ws.ShareToken == token {
			c := *ws
			return &c, nil
		}
	}
	return nil, nil
}

// Create はワークスペースを作成する。同じIDが既に存在する場合は何もしない。
func (s *MemoryStore) Create(_ context.Context, ws *model.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[ws.ID]; ok {
		return nil
	}
	c := *ws
	s.workspaces[ws.ID] = &c
	if err := s.persistLocked(); err != nil {
		delete(s.workspaces, ws.ID)
		return err
	}
	return nil
}

func (s *MemoryStore) updateWorkspace(id string, mutate func(*model.Workspace)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.workspaces[id]
	if !ok {
		return model.ErrNotFound
	}
	updated := *current
	mutate(&updated)
	updated.UpdatedAt = s.now().UTC()
	s.workspaces[id] = &updated
	if err := s.persistLocked(); err != nil {
		s.workspaces[id] = current
		return err
	}
	return nil
}

// UpdateName はワークスペース名を更新する。
func (s *MemoryStore) UpdateName(_ context.Context, id, name string) error {
	return s.updateWorkspace(id, func(ws *model.Workspace) { ws.Name = name })
}

// SetShareToken は共有トークンを設定する。
func (s *MemoryStore) SetShareToken(_ context.Context, id, token string) error {
	return s.updateWorkspace(id, func(ws *model.Workspace) { ws.ShareToken = token })
}

// UpdateSortOption は並び順の設定を保存する。
func (s *MemoryStore) UpdateSortOption(_ context.Context, id, sortOption string) error {
	return s.updateWorkspace(id, func(ws *model.Workspace) { ws.SortOption = sortOption })
}

// PingContext は常に成功する。ヘルスチェック用。
func (s *MemoryStore) PingContext(_ context.Context) error {
	return nil
}

// compile-time interface check
var (
	_ SubscriptionStore   = (*MemoryStore)(nil)
	_ WorkspaceRepository = (*MemoryStore)(nil)
	_ Pinger              = (*MemoryStore)(nil)
)
