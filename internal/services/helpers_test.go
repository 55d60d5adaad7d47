package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/genai-studio/internal/auth"
	"github.com/tbourn/genai-studio/internal/domain"
	"github.com/tbourn/genai-studio/internal/imagegen"
	"github.com/tbourn/genai-studio/internal/mailer"
	"github.com/tbourn/genai-studio/internal/repo"
)

var alice = auth.Identity{Subject: "auth0|alice", Email: "alice@example.com"}

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:svc_" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := repo.Open("sqlite", dsn, 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newUsers(t *testing.T, db *gorm.DB) *UserService {
	t.Helper()
	us, err := NewUserService(db, 0, 0)
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	return us
}

func closeDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	_ = sqlDB.Close()
}

// ----- fakes -----

type fakeText struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	reply   string
	err     error
}

func (f *fakeText) GenerateText(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type fakeImages struct {
	calls int
	count int
	err   error
}

func (f *fakeImages) GenerateImages(_ context.Context, prompt string, count int, _ string) ([]imagegen.Image, error) {
	f.calls++
	f.count = count
	if f.err != nil {
		return nil, f.err
	}
	out := make([]imagegen.Image, count)
	for i := range out {
		out[i] = imagegen.Image{URL: "https://img.test/" + string(rune('a'+i)), Prompt: prompt}
	}
	return out, nil
}

type fakeVideos struct {
	calls int
	err   error
}

func (f *fakeVideos) GenerateVideo(_ context.Context, prompt string) (imagegen.Video, error) {
	f.calls++
	if f.err != nil {
		return imagegen.Video{}, f.err
	}
	return imagegen.Video{URL: "https://vid.test/clip.mp4", Prompt: prompt}, nil
}

type prefixMirror struct{ prefix string }

func (m prefixMirror) MirrorURL(_ context.Context, src string) string { return m.prefix + src }

type countingStore struct {
	calls int
	err   error
	saved []*domain.Generation
}

func (s *countingStore) SaveGeneration(_ context.Context, _ auth.Identity, g *domain.Generation) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, g)
	return nil
}

type fakeMailer struct {
	sent []mailer.Mail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, m mailer.Mail) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

var errVendor = errors.New("vendor down")
