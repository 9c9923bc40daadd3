package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mentorboxai/api/internal/config"
	"github.com/mentorboxai/api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalArtifactStore_Save(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalArtifactStore(dir)

	refs, err := s.Save(context.Background(), "job_1", Artifacts{
		Understanding: model.Document{"topic": "immunity"},
		Plan:          model.Document{"title": "Vaccines"},
		Code:          "from manim import *",
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "job_1_plan.json"), refs.Plan)
	assert.Equal(t, filepath.Join(dir, "job_1_understanding.json"), refs.Understanding)
	assert.Equal(t, filepath.Join(dir, "manim", "job_1.py"), refs.Code)

	code, err := os.ReadFile(refs.Code)
	require.NoError(t, err)
	assert.Equal(t, "from manim import *", string(code))

	raw, err := os.ReadFile(refs.Plan)
	require.NoError(t, err)
	var plan map[string]any
	require.NoError(t, json.Unmarshal(raw, &plan))
	assert.Equal(t, "Vaccines", plan["title"])
}

func TestLocalArtifactStore_NilDocuments(t *testing.T) {
	s := NewLocalArtifactStore(t.TempDir())
	refs, err := s.Save(context.Background(), "job_1", Artifacts{})
	require.NoError(t, err)

	raw, err := os.ReadFile(refs.Understanding)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
	deleted []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key == f.failOn {
		return errors.New("upload failed")
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeObjectStore) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

func TestObjectArtifactStore_Save(t *testing.T) {
	store := newFakeObjectStore()
	s := NewObjectArtifactStore(store)

	refs, err := s.Save(context.Background(), "job_1", Artifacts{Code: "code"})
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/jobs/job_1/scene.py", refs.Code)
	assert.Equal(t, "https://cdn.example.com/jobs/job_1/plan.json", refs.Plan)
	assert.Equal(t, []byte("code"), store.objects["jobs/job_1/scene.py"])
	assert.Len(t, store.objects, 3)
}

func TestObjectArtifactStore_CleansUpPartialUpload(t *testing.T) {
	store := newFakeObjectStore()
	store.failOn = "jobs/job_1/scene.py"
	s := NewObjectArtifactStore(store)

	_, err := s.Save(context.Background(), "job_1", Artifacts{Code: "code"})
	require.Error(t, err)

	assert.Empty(t, store.objects)
	assert.ElementsMatch(t, []string{"jobs/job_1/plan.json", "jobs/job_1/understanding.json"}, store.deleted)
}

func TestNewArtifactStore(t *testing.T) {
	store, err := NewArtifactStore(&config.Config{Storage: config.StorageConfig{Backend: "local", OutputDir: t.TempDir()}})
	require.NoError(t, err)
	assert.IsType(t, &LocalArtifactStore{}, store)

	_, err = NewArtifactStore(&config.Config{Storage: config.StorageConfig{Backend: "r2"}})
	assert.Error(t, err, "incomplete R2 configuration must be rejected")

	_, err = NewArtifactStore(&config.Config{Storage: config.StorageConfig{Backend: "ftp"}})
	assert.ErrorContains(t, err, "unknown storage backend")
}
