package search

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

type fakeES struct {
	mu     sync.Mutex
	paths  []string
	bodies []map[string]any
	status int
	reply  string
}

func (f *fakeES) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Errorf("request body is not json: %v", err)
			}
		}
		f.mu.Lock()
		f.paths = append(f.paths, r.URL.Path)
		f.bodies = append(f.bodies, body)
		status, reply := f.status, f.reply
		f.mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}
}

func newTestClient(t *testing.T, f *fakeES) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c, err := NewClient(logger.Nop(), Config{Addresses: []string{srv.URL}, Timeout: 2 * time.Second}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

const trackReply = `{"hits":{"hits":[
 {"_id":"1","_score":0.9,"_source":{"spotifyId":"sp1","durationMs":200000,
   "danceability":0.9,"energy":0.95,"loudness":-4,"speechiness":0.2,"acousticness":0.1,
   "instrumentalness":0.05,"liveness":0.5,"valence":0.9,"tempo":140,
   "trackMetrics":{"title":"Song A","artist":"Artist","album":"Album","popularity":55,"explicit":true,"imageUrl":"http://img/a"}}},
 {"_id":"2","_score":0.4,"_source":{"spotifyId":"sp2",
   "danceability":0.88,"energy":0.92,"loudness":-3,"speechiness":0.15,"acousticness":0,
   "instrumentalness":0,"liveness":0.45,"valence":0.88,"tempo":135,
   "trackMetrics":{"popularity":12}}}
]}}`

func TestSearchTracksDecodesHitsAndSendsQuery(t *testing.T) {
	f := &fakeES{reply: trackReply}
	c := newTestClient(t, f)

	got, err := c.SearchTracks(context.Background(), TrackQuery{
		Ranges:        []FieldRange{{Field: "energy", Min: 0.9, Max: 1.0}},
		MinPopularity: 10,
		Seed:          42,
		Limit:         5,
	})
	if err != nil {
		t.Fatalf("SearchTracks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("hits: want=2 got=%d", len(got))
	}
	if got[0].SpotifyID != "sp1" || got[0].Title != "Song A" || got[0].Popularity != 55 || !got[0].Explicit || got[0].Tempo != 140 {
		t.Fatalf("first hit decoded wrong: %+v", got[0])
	}

	if len(f.paths) != 1 || f.paths[0] != "/tracks/_search" {
		t.Fatalf("paths: got=%v", f.paths)
	}
	body := f.bodies[0]
	if body["size"] != float64(5) {
		t.Fatalf("size: got=%v", body["size"])
	}
	fs := body["query"].(map[string]any)["function_score"].(map[string]any)
	rs := fs["functions"].([]any)[0].(map[string]any)["random_score"].(map[string]any)
	if rs["seed"] != "42" || rs["field"] != "_seq_no" {
		t.Fatalf("random_score: got=%v", rs)
	}
	must := fs["query"].(map[string]any)["bool"].(map[string]any)["must"].([]any)
	if len(must) != 2 {
		t.Fatalf("must clauses: want=2 got=%d", len(must))
	}
	energy := must[0].(map[string]any)["range"].(map[string]any)["energy"].(map[string]any)
	if energy["gte"] != 0.9 || energy["lte"] != 1.0 {
		t.Fatalf("energy range: got=%v", energy)
	}
	pop := must[1].(map[string]any)["range"].(map[string]any)[popularityField].(map[string]any)
	if pop["gte"] != float64(10) {
		t.Fatalf("popularity floor: got=%v", pop)
	}
}

func TestWithDefaultsMatchesDefaultConfig(t *testing.T) {
	got := Config{}.withDefaults()
	want := DefaultConfig()
	if got.TrackIndex != want.TrackIndex || got.PostIndex != want.PostIndex ||
		got.PostScoreField != want.PostScoreField || got.Timeout != want.Timeout {
		t.Fatalf("withDefaults: want=%+v got=%+v", want, got)
	}
	if want.PostScoreField != "trend_score" {
		t.Fatalf("post score field: want=trend_score got=%s", want.PostScoreField)
	}
	kept := Config{TrackIndex: "audio", PostScoreField: "score"}.withDefaults()
	if kept.TrackIndex != "audio" || kept.PostScoreField != "score" || kept.PostIndex != want.PostIndex {
		t.Fatalf("withDefaults must keep set fields: got=%+v", kept)
	}
}

func TestSearchTracksRespectsLimit(t *testing.T) {
	c := newTestClient(t, &fakeES{reply: trackReply})
	got, err := c.SearchTracks(context.Background(), TrackQuery{Limit: 1})
	if err != nil || len(got) != 1 {
		t.Fatalf("SearchTracks limit 1: got=%d err=%v", len(got), err)
	}
}

func TestSearchTracksErrors(t *testing.T) {
	c := newTestClient(t, &fakeES{status: http.StatusInternalServerError, reply: `{"error":"boom"}`})
	if _, err := c.SearchTracks(context.Background(), TrackQuery{Limit: 3}); err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("server error: got=%v", err)
	}

	c = newTestClient(t, &fakeES{reply: `{"hits":`})
	if _, err := c.SearchTracks(context.Background(), TrackQuery{Limit: 3}); !errors.Is(err, errMalformed) {
		t.Fatalf("malformed body: want errMalformed got=%v", err)
	}

	c = newTestClient(t, &fakeES{reply: `{"hits":{"hits":[{"_id":"x","_source":{}}]}}`})
	if _, err := c.SearchTracks(context.Background(), TrackQuery{Limit: 3}); !errors.Is(err, errMalformed) {
		t.Fatalf("hit without id: want errMalformed got=%v", err)
	}

	c = newTestClient(t, &fakeES{reply: `{"hits":{"hits":[{"_id":"x","_source":{"spotifyId":"x","trackMetrics":{"popularity":80}}}]}}`})
	if got, err := c.SearchTracks(context.Background(), TrackQuery{Limit: 3}); !errors.Is(err, errMalformed) {
		t.Fatalf("hit without features: want errMalformed got=%v tracks=%v", err, got)
	}

	// a present zero is a real value, only absence is malformed
	c = newTestClient(t, &fakeES{reply: `{"hits":{"hits":[{"_id":"y","_source":{"spotifyId":"y",
	 "danceability":0.5,"energy":0.5,"loudness":-9,"speechiness":0.1,"acousticness":0.3,
	 "instrumentalness":0.2,"liveness":0.1,"valence":0.5}}]}}`})
	if _, err := c.SearchTracks(context.Background(), TrackQuery{Limit: 3}); !errors.Is(err, errMalformed) || !strings.Contains(err.Error(), "tempo") {
		t.Fatalf("hit without tempo: want errMalformed naming tempo got=%v", err)
	}
	c = newTestClient(t, &fakeES{reply: `{"hits":{"hits":[{"_id":"z","_source":{"spotifyId":"z",
	 "danceability":0,"energy":0,"loudness":0,"speechiness":0,"acousticness":0,
	 "instrumentalness":0,"liveness":0,"valence":0,"tempo":0}}]}}`})
	if got, err := c.SearchTracks(context.Background(), TrackQuery{Limit: 3}); err != nil || len(got) != 1 {
		t.Fatalf("explicit zero features: got=%v err=%v", got, err)
	}
}

func TestTopRankedPosts(t *testing.T) {
	f := &fakeES{reply: `{"hits":{"hits":[
	 {"_id":"7","_source":{"id":7,"content":"hello","userName":"u7","userProfileName":"p7"},"sort":[12.5,7]},
	 {"_id":"3","_source":{"id":3,"content":"world"},"sort":[12.5,3]}
	]}}`}
	c := newTestClient(t, f)

	got, err := c.TopRankedPosts(context.Background(), 50)
	if err != nil {
		t.Fatalf("TopRankedPosts: %v", err)
	}
	if len(got) != 2 || got[0].PostID != 7 || got[0].Score != 12.5 || got[0].UserName != "u7" || got[1].PostID != 3 {
		t.Fatalf("TopRankedPosts: got=%+v", got)
	}
	if f.paths[0] != "/posts/_search" {
		t.Fatalf("path: got=%s", f.paths[0])
	}
	sort := f.bodies[0]["sort"].([]any)
	if _, ok := sort[0].(map[string]any)["trend_score"]; !ok {
		t.Fatalf("sort: want trend_score first got=%v", sort)
	}
}
