package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/redwood-webops/ins-display/config"
	"github.com/redwood-webops/ins-display/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db open: %v", err)
	}
	return db
}

// fakeGraph is a stand-in for the Instagram OAuth and Graph API endpoints.
type fakeGraph struct {
	srv *httptest.Server

	mu            sync.Mutex
	exchangeCalls int
	profileCalls  int
	refreshCalls  int
	mediaCalls    int
	lastCode      string

	username       string
	mediaJSON      string
	failProfile    bool
	failRefresh    bool
	failRefreshFor string
	failMedia      bool
}

const defaultMediaJSON = `{"data":[
  {"id":"p1","caption":"Carousel day","media_type":"CAROUSEL_ALBUM",
   "permalink":"https://www.instagram.com/p/p1/","timestamp":"2026-05-02T10:00:00+0000",
   "children":{"data":[
     {"id":"c1","media_type":"IMAGE","media_url":"https://cdn.example.com/1.jpg","timestamp":"2026-05-02T10:00:00+0000"},
     {"id":"c2","media_type":"IMAGE","media_url":"https://cdn.example.com/2.jpg","timestamp":"2026-05-02T10:00:00+0000"},
     {"id":"c3","media_type":"VIDEO","media_url":"https://cdn.example.com/3.mp4","timestamp":"2026-05-02T10:00:00+0000"}]}},
  {"id":"p2","caption":"Single shot","media_type":"IMAGE",
   "media_url":"https://cdn.example.com/4.jpg",
   "permalink":"https://www.instagram.com/p/p2/","timestamp":"2026-05-01T09:00:00+0000"}
]}`

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()
	f := &fakeGraph{
		username:  "redwoodkyudojo",
		mediaJSON: defaultMediaJSON,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.exchangeCalls++
		f.lastCode = r.Form.Get("code")
		f.mu.Unlock()
		writeJSON(w, map[string]any{
			"access_token": "short-token",
			"user_id":      "17840001",
		})
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.profileCalls++
		fail := f.failProfile
		username := f.username
		f.mu.Unlock()
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{
			"id":                  "17840001",
			"user_id":             "17840001",
			"name":                "Redwood Kyudojo",
			"username":            username,
			"profile_picture_url": "https://cdn.example.com/avatar.jpg",
			"followers_count":     321,
			"media_count":         42,
		})
	})
	mux.HandleFunc("/access_token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"access_token": "long-token",
			"token_type":   "bearer",
			"expires_in":   5184000,
		})
	})
	mux.HandleFunc("/refresh_access_token", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("access_token")
		f.mu.Lock()
		f.refreshCalls++
		fail := f.failRefresh || (f.failRefreshFor != "" && token == f.failRefreshFor)
		f.mu.Unlock()
		if fail {
			http.Error(w, "cannot refresh", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{
			"access_token": "refreshed-token",
			"token_type":   "bearer",
			"expires_in":   5184000,
		})
	})
	mux.HandleFunc("/me/media", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.mediaCalls++
		fail := f.failMedia
		media := f.mediaJSON
		f.mu.Unlock()
		if fail {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(media))
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGraph) config() config.InstagramConfig {
	return config.InstagramConfig{
		ClientID:         "test-client-id",
		ClientSecret:     "test-client-secret",
		AuthURL:          f.srv.URL + "/oauth/authorize",
		TokenURL:         f.srv.URL + "/oauth/access_token",
		GraphURL:         f.srv.URL,
		Scopes:           []string{"instagram_business_basic"},
		AllowedOrigins:   []string{"https://gallery.example.com"},
		AllowedUsernames: []string{"redwoodkyudojo", "redwood_webops"},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// newTestStack wires db, client and services against the fake graph.
func newTestStack(t *testing.T) (*gorm.DB, *fakeGraph, *AuthService, *SyncService, *PostService) {
	t.Helper()
	db := newTestDB(t)
	graph := newFakeGraph(t)
	client := NewInstagramClient(graph.config())
	auth := NewAuthService(db, client, graph.config())
	sync := NewSyncService(db, client, auth)
	posts := NewPostService(db)
	return db, graph, auth, sync, posts
}
