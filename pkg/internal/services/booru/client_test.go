package booru

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDanbooruPostsBefore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("before_id") != "200" {
			t.Errorf("before_id = %q, want 200", q.Get("before_id"))
		}
		if q.Get("tags") != "landscape" {
			t.Errorf("tags = %q, want landscape", q.Get("tags"))
		}
		if q.Get("login") != "user" {
			t.Errorf("login = %q, want user", q.Get("login"))
		}
		wantHash := fmt.Sprintf("%x", sha1.Sum([]byte("prefix--secret--")))
		if q.Get("password_hash") != wantHash {
			t.Errorf("password_hash = %q, want %q", q.Get("password_hash"), wantHash)
		}

		fmt.Fprint(w, `[
			{"id": 199, "tags": "landscape sky", "md5": "aa11", "file_url": "/data/aa11.jpg", "width": 1920, "height": 1080, "rating": "s"},
			{"id": 198, "tags": "landscape", "md5": "bb22", "file_url": "/data/bb22.png", "rating": "e"}
		]`)
	}))
	defer srv.Close()

	client := NewDanbooru(srv.URL, "user", "secret", "prefix--%s--", nil)

	posts, err := client.PostsBefore(context.Background(), 200, "landscape", 100)
	if err != nil {
		t.Fatalf("PostsBefore() error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].PostID != 199 || posts[1].PostID != 198 {
		t.Errorf("post ids = %d, %d, want 199, 198", posts[0].PostID, posts[1].PostID)
	}
	if posts[0].Width != 1920 {
		t.Errorf("width = %d, want 1920", posts[0].Width)
	}
}

func TestDanbooruAppliesFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id": 2, "tags": "keep", "md5": "aa", "file_url": "/a.jpg"},
			{"id": 1, "tags": "drop", "md5": "bb", "file_url": "/b.jpg"}
		]`)
	}))
	defer srv.Close()

	filter := func(in []Record) []Record {
		var out []Record
		for _, rec := range in {
			if rec.HasAnyTag([]string{"keep"}) {
				out = append(out, rec)
			}
		}
		return out
	}

	client := NewDanbooru(srv.URL, "", "", "", filter)
	posts, err := client.PostsPage(context.Background(), "", 1, 100)
	if err != nil {
		t.Fatalf("PostsPage() error: %v", err)
	}
	if len(posts) != 1 || posts[0].PostID != 2 {
		t.Errorf("filtered posts = %v, want only id 2", posts)
	}
}

func TestDanbooruMalformedBatchFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 5, "md5": "aa", "file_url": "/a.jpg"}]`)
	}))
	defer srv.Close()

	client := NewDanbooru(srv.URL, "", "", "", nil)
	_, err := client.PostsPage(context.Background(), "", 1, 100)
	if err == nil {
		t.Fatal("expected a MalformedRecordError for a post without tags")
	}
	if IsTransport(err) {
		t.Errorf("malformed batch reported as transport error: %v", err)
	}
}

func TestTransportErrorPreservesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewDanbooru(srv.URL, "", "", "", nil)
	_, err := client.PostsPage(context.Background(), "", 1, 100)
	if !IsTransport(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status code not preserved: %v", err)
	}
}

func TestRateLimitSpacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	client := NewDanbooru(srv.URL, "", "", "", nil)
	ctx := context.Background()

	if _, err := client.PostsPage(ctx, "", 1, 1); err != nil {
		t.Fatalf("first call error: %v", err)
	}
	start := time.Now()
	if _, err := client.PostsPage(ctx, "", 2, 1); err != nil {
		t.Fatalf("second call error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < MinRequestSpacing {
		t.Errorf("second request dispatched after %v, want at least %v", elapsed, MinRequestSpacing)
	}
}

func TestGelbooruPostsPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pid := r.URL.Query().Get("pid"); pid != "0" {
			t.Errorf("pid = %q, want 0 for page 1", pid)
		}
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<posts count="2" offset="0">
  <post id="301" tags=" sky  cloud " width="800" height="600" rating="s" md5="cc33" file_url="https://img.example/cc33.jpeg" has_comments="true"/>
  <post id="300" tags="sky" width="640" height="480" rating="q" md5="dd44" file_url="https://img.example/dd44.png"/>
</posts>`)
	}))
	defer srv.Close()

	client := NewGelbooru(srv.URL, nil)
	posts, err := client.PostsPage(context.Background(), "sky", 1, 100)
	if err != nil {
		t.Fatalf("PostsPage() error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].PostID != 301 || len(posts[0].Tags) != 2 {
		t.Errorf("first post = %+v, want id 301 with 2 tags", posts[0])
	}
}

func TestLoginParamsSaltTemplate(t *testing.T) {
	tests := []struct {
		name   string
		salt   string
		hashed string
	}{
		{"with template", "prefix--%s--", "prefix--secret--"},
		{"no template", "", "secret"},
		{"template without slot", "prefix----", "secret"},
		{"template with two slots", "%s--%s", "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := fmt.Sprintf("&login=user&password_hash=%x", sha1.Sum([]byte(tt.hashed)))
			if got := loginParams("user", "secret", tt.salt); got != want {
				t.Errorf("loginParams() = %q, want %q", got, want)
			}
		})
	}

	if got := loginParams("", "secret", "%s"); got != "" {
		t.Errorf("loginParams() without a username = %q, want empty", got)
	}
}

func TestGelbooruBeforeIDUnsupported(t *testing.T) {
	client := NewGelbooru("https://example.org", nil)
	if _, err := client.PostsBefore(context.Background(), 100, "", 10); err == nil {
		t.Fatal("expected an error for before_id on the XML dialect")
	}
}
