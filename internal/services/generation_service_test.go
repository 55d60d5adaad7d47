package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/genai-studio/internal/auth"
	"github.com/tbourn/genai-studio/internal/domain"
	"github.com/tbourn/genai-studio/internal/observability"
	"github.com/tbourn/genai-studio/internal/repo"
)

type genFixture struct {
	svc    *GenerationService
	text   *fakeText
	images *fakeImages
	videos *fakeVideos
}

func newGenFixture(t *testing.T) *genFixture {
	t.Helper()
	db := newServiceDB(t)
	f := &genFixture{
		text:   &fakeText{reply: "```go\nfmt.Println(1)\n```"},
		images: &fakeImages{},
		videos: &fakeVideos{},
	}
	f.svc = NewGenerationService(GenerationDeps{
		DB:             db,
		Users:          newUsers(t, db),
		Text:           f.text,
		Images:         f.images,
		Videos:         f.videos,
		Mirror:         prefixMirror{prefix: "mirror:"},
		Model:          "gemini-test",
		ImageMaxAmount: 3,
	})
	return f
}

func userMsg(s string) TextRequest {
	return TextRequest{Messages: []ChatMessage{{Role: "user", Content: s}}}
}

func TestGeneration_CodeStoresRecordAndCreatesUser(t *testing.T) {
	f := newGenFixture(t)
	ctx := context.Background()

	reply, err := f.svc.Code(ctx, alice, userMsg("print one"))
	if err != nil {
		t.Fatalf("code: %v", err)
	}
	if reply.Role != "assistant" || reply.Content != f.text.reply {
		t.Fatalf("reply=%+v", reply)
	}
	if len(f.text.prompts) != 1 || !strings.HasPrefix(f.text.prompts[0], "system: "+codeInstruction) {
		t.Fatalf("prompt missing instruction: %q", f.text.prompts)
	}

	n, err := repo.CountUsersBySubject(ctx, f.svc.DB, alice.Subject)
	if err != nil || n != 1 {
		t.Fatalf("users=%d err=%v", n, err)
	}
	uid, _ := f.svc.Users.Find(ctx, alice.Subject)
	items, err := repo.ListGenerations(ctx, f.svc.DB, uid, domain.CapabilityCode, 10)
	if err != nil || len(items) != 1 {
		t.Fatalf("items=%d err=%v", len(items), err)
	}
	if items[0].Prompt != "print one" {
		t.Fatalf("prompt=%q", items[0].Prompt)
	}
}

func TestGeneration_TwoRequestsOneUser(t *testing.T) {
	f := newGenFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Conversation(ctx, alice, userMsg("hi")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Code(ctx, alice, userMsg("again")); err != nil {
		t.Fatal(err)
	}
	n, err := repo.CountUsersBySubject(ctx, f.svc.DB, alice.Subject)
	if err != nil || n != 1 {
		t.Fatalf("users=%d err=%v", n, err)
	}
}

func TestGeneration_ConversationPromptHasNoInstruction(t *testing.T) {
	f := newGenFixture(t)
	req := TextRequest{Messages: []ChatMessage{
		{Role: "User", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
		{Content: "how are you"},
	}}
	if _, err := f.svc.Conversation(context.Background(), alice, req); err != nil {
		t.Fatal(err)
	}
	want := "user: hello\nassistant: hi there\nuser: how are you\nassistant:"
	if f.text.prompts[0] != want {
		t.Fatalf("prompt=%q\nwant   %q", f.text.prompts[0], want)
	}
}

func TestGeneration_EmptyMessagesIsBadRequest(t *testing.T) {
	f := newGenFixture(t)
	cases := []TextRequest{
		{},
		{Messages: []ChatMessage{{Role: "user", Content: "  "}}},
		{Messages: []ChatMessage{{Role: "robot", Content: "x"}}},
		{Messages: []ChatMessage{{Role: "assistant", Content: "only me"}}},
	}
	for i, req := range cases {
		if _, err := f.svc.Conversation(context.Background(), alice, req); !errors.Is(err, ErrBadRequest) {
			t.Fatalf("case %d: want ErrBadRequest, got %v", i, err)
		}
	}
	if f.text.calls != 0 {
		t.Fatalf("text generator called %d times", f.text.calls)
	}
}

func TestGeneration_UnauthorizedNoCalls(t *testing.T) {
	f := newGenFixture(t)
	_, err := f.svc.Images(context.Background(), auth.Identity{}, ImageRequest{Prompt: "a red fox"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if f.images.calls != 0 {
		t.Fatalf("images called %d", f.images.calls)
	}
}

func TestGeneration_ImagesAmountAndMirror(t *testing.T) {
	f := newGenFixture(t)
	imgs, err := f.svc.Images(context.Background(), alice, ImageRequest{Prompt: "a red fox", Amount: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(imgs) != 2 {
		t.Fatalf("len=%d", len(imgs))
	}
	for _, im := range imgs {
		if !strings.HasPrefix(im.URL, "mirror:https://img.test/") || im.Prompt != "a red fox" {
			t.Fatalf("image=%+v", im)
		}
	}
}

func TestGeneration_ImagesAmountDefaultsAndClamps(t *testing.T) {
	f := newGenFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Images(ctx, alice, ImageRequest{Prompt: "p"}); err != nil || f.images.count != 1 {
		t.Fatalf("default: count=%d err=%v", f.images.count, err)
	}
	if _, err := f.svc.Images(ctx, alice, ImageRequest{Prompt: "p", Amount: 50}); err != nil || f.images.count != 3 {
		t.Fatalf("clamp: count=%d err=%v", f.images.count, err)
	}
	if _, err := f.svc.Images(ctx, alice, ImageRequest{Prompt: "p", Amount: -1}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("negative: %v", err)
	}
}

func TestGeneration_VideoFailureIsCapabilityFailed(t *testing.T) {
	f := newGenFixture(t)
	f.videos.err = errVendor
	_, err := f.svc.Video(context.Background(), alice, VideoRequest{Prompt: "waves"})
	if !errors.Is(err, ErrCapabilityFailed) {
		t.Fatalf("want ErrCapabilityFailed, got %v", err)
	}
}

func TestGeneration_ListVideos(t *testing.T) {
	f := newGenFixture(t)
	ctx := context.Background()

	got, err := f.svc.ListVideos(ctx, alice, 10)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("unknown user: got=%v err=%v", got, err)
	}

	for _, p := range []string{"one", "two"} {
		if _, err := f.svc.Video(ctx, alice, VideoRequest{Prompt: p}); err != nil {
			t.Fatal(err)
		}
	}
	got, err = f.svc.ListVideos(ctx, alice, 10)
	if err != nil || len(got) != 2 {
		t.Fatalf("len=%d err=%v", len(got), err)
	}
	count, latest, err := f.svc.VideosStats(ctx, alice)
	if err != nil || count != 2 || latest == nil {
		t.Fatalf("stats count=%d latest=%v err=%v", count, latest, err)
	}

	bob := auth.Identity{Subject: "auth0|bob"}
	if got, _ := f.svc.ListVideos(ctx, bob, 10); len(got) != 0 {
		t.Fatalf("bob sees %d videos", len(got))
	}
}

func TestGeneration_ListVideosDatabaseDownReturnsEmpty(t *testing.T) {
	f := newGenFixture(t)
	closeDB(t, f.svc.DB)

	got, err := f.svc.ListVideos(context.Background(), alice, 10)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("got=%v, want empty non-nil", got)
	}
}

func TestGeneration_DatabaseDownStillReplies(t *testing.T) {
	f := newGenFixture(t)
	closeDB(t, f.svc.DB)

	label := string(domain.CapabilityConversation)
	before := testutil.ToFloat64(observability.PersistenceFailures.WithLabelValues(label))
	reply, err := f.svc.Conversation(context.Background(), alice, userMsg("still there?"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if reply.Content == "" {
		t.Fatal("empty reply")
	}
	if d := testutil.ToFloat64(observability.PersistenceFailures.WithLabelValues(label)) - before; d != 1 {
		t.Fatalf("persistence failures delta=%v", d)
	}
}
