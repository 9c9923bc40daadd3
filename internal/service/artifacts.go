package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mentorboxai/api/internal/client"
	"github.com/mentorboxai/api/internal/config"
	"github.com/mentorboxai/api/internal/model"
)

// Artifacts is the bundle persisted for a finished pipeline run
type Artifacts struct {
	Understanding model.Document
	Plan          model.Document
	Code          string
}

// ArtifactRefs locates persisted artifacts (file paths or URLs)
type ArtifactRefs struct {
	Understanding string
	Plan          string
	Code          string
}

// ArtifactStore persists the artifacts of a job
type ArtifactStore interface {
	Save(ctx context.Context, jobID string, a Artifacts) (*ArtifactRefs, error)
}

func encodeDocument(doc model.Document) ([]byte, error) {
	if doc == nil {
		doc = model.Document{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// LocalArtifactStore writes artifacts below a directory:
// <dir>/<id>_plan.json, <dir>/<id>_understanding.json and <dir>/manim/<id>.py
type LocalArtifactStore struct {
	dir string
}

// NewLocalArtifactStore creates a filesystem artifact store
func NewLocalArtifactStore(dir string) *LocalArtifactStore {
	return &LocalArtifactStore{dir: dir}
}

func (s *LocalArtifactStore) Save(_ context.Context, jobID string, a Artifacts) (*ArtifactRefs, error) {
	manimDir := filepath.Join(s.dir, "manim")
	if err := os.MkdirAll(manimDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	refs := &ArtifactRefs{
		Plan:          filepath.Join(s.dir, jobID+"_plan.json"),
		Understanding: filepath.Join(s.dir, jobID+"_understanding.json"),
		Code:          filepath.Join(manimDir, jobID+".py"),
	}

	plan, err := encodeDocument(a.Plan)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	understanding, err := encodeDocument(a.Understanding)
	if err != nil {
		return nil, fmt.Errorf("failed to encode understanding: %w", err)
	}

	files := []struct {
		path string
		data []byte
	}{
		{refs.Plan, plan},
		{refs.Understanding, understanding},
		{refs.Code, []byte(a.Code)},
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, f.data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", filepath.Base(f.path), err)
		}
	}
	return refs, nil
}

// ObjectArtifactStore uploads artifacts to object storage under jobs/<id>/
type ObjectArtifactStore struct {
	store client.ObjectStore
}

// NewObjectArtifactStore creates an object storage artifact store
func NewObjectArtifactStore(store client.ObjectStore) *ObjectArtifactStore {
	return &ObjectArtifactStore{store: store}
}

func (s *ObjectArtifactStore) Save(ctx context.Context, jobID string, a Artifacts) (*ArtifactRefs, error) {
	plan, err := encodeDocument(a.Plan)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	understanding, err := encodeDocument(a.Understanding)
	if err != nil {
		return nil, fmt.Errorf("failed to encode understanding: %w", err)
	}

	objects := []struct {
		key         string
		data        []byte
		contentType string
	}{
		{fmt.Sprintf("jobs/%s/plan.json", jobID), plan, "application/json"},
		{fmt.Sprintf("jobs/%s/understanding.json", jobID), understanding, "application/json"},
		{fmt.Sprintf("jobs/%s/scene.py", jobID), []byte(a.Code), "text/x-python"},
	}

	urls := make([]string, 0, len(objects))
	var uploaded []string
	for _, obj := range objects {
		if err := s.store.Put(ctx, obj.key, obj.data, obj.contentType); err != nil {
			s.cleanup(ctx, uploaded)
			return nil, err
		}
		uploaded = append(uploaded, obj.key)

		url, err := s.store.URL(ctx, obj.key)
		if err != nil {
			s.cleanup(ctx, uploaded)
			return nil, err
		}
		urls = append(urls, url)
	}

	return &ArtifactRefs{Plan: urls[0], Understanding: urls[1], Code: urls[2]}, nil
}

// cleanup removes a partial upload; errors are ignored since the job fails anyway.
func (s *ObjectArtifactStore) cleanup(ctx context.Context, keys []string) {
	for _, key := range keys {
		_ = s.store.Delete(ctx, key)
	}
}

// NewArtifactStore builds the store selected by storage.backend.
func NewArtifactStore(cfg *config.Config) (ArtifactStore, error) {
	switch cfg.Storage.Backend {
	case "", "local":
		return NewLocalArtifactStore(cfg.Storage.OutputDir), nil
	case "r2":
		r2, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			return nil, err
		}
		return NewObjectArtifactStore(r2), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
