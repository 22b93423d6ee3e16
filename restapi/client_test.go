package restapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/txflow/cache"
	"github.com/mohitkumar/txflow/config"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	hits int32
}

func (b *fakeBackend) handler() http.Handler {
	write := func(w http.ResponseWriter, code int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(v)
	}
	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&b.hits, 1)
			next.ServeHTTP(w, r)
		})
	})
	router.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("thumbnail")
		if err != nil {
			write(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		content, _ := io.ReadAll(file)
		if len(content) == 0 {
			write(w, http.StatusBadRequest, map[string]string{"error": "empty file"})
			return
		}
		write(w, http.StatusOK, UploadResult{URL: "https://cdn.test/" + header.Filename, Message: "ok"})
	}).Methods(http.MethodPost)
	router.HandleFunc("/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["id"] != "12" {
			write(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		write(w, http.StatusOK, map[string]any{"data": EventDetail{EventID: 12, Name: "Jazz night", Quota: 100}})
	}).Methods(http.MethodGet)
	router.HandleFunc("/users/{address}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["address"] == "0xbroken" {
			write(w, http.StatusInternalServerError, map[string]string{"error": "db down"})
			return
		}
		write(w, http.StatusOK, map[string]any{"data": UserProfile{Address: mux.Vars(r)["address"], Nickname: "ana"}})
	}).Methods(http.MethodGet)
	router.HandleFunc("/event-passes", func(w http.ResponseWriter, r *http.Request) {
		page := EventPassPage{
			Data:       []EventPass{{ID: 1, PassID: 5}},
			Pagination: Pagination{TotalItems: 1, TotalPages: 1, CurrentPage: 1, PageSize: passPageSize},
		}
		if r.URL.Query().Get("owner_address") == "" {
			page.Data = nil
		}
		write(w, http.StatusOK, page)
	}).Methods(http.MethodGet)
	return router
}

type staticReceipts struct {
	calls int32
	has   bool
}

func (s *staticReceipts) HasReceipt(ctx context.Context, address string) (bool, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.has, nil
}

func TestClient(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, c *Client, b *fakeBackend, store *cache.LocalStore,
	){
		"upload returns the public url":         testUpload,
		"reads are served from cache":           testCacheAside,
		"invalidated read goes to the backend":  testInvalidatedRead,
		"missing event is nil":                  testMissingEvent,
		"backend error is an api error":         testApiError,
		"event passes are filtered by owner":    testEventPasses,
		"gacha receipt is cached until cleared": testGachaReceipt,
	} {
		t.Run(scenario, func(t *testing.T) {
			b := &fakeBackend{}
			srv := httptest.NewServer(b.handler())
			defer srv.Close()
			store := cache.NewLocalStore(time.Minute)
			c := New(config.BackendConfig{BaseUrl: srv.URL, Timeout: 5 * time.Second, CacheTTL: time.Minute}, store, &staticReceipts{has: true})
			fn(t, c, b, store)
		})
	}
}

func testUpload(t *testing.T, c *Client, b *fakeBackend, store *cache.LocalStore) {
	res, err := c.UploadImage(context.Background(), "moment.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.Equal(t, "https://cdn.test/moment.png", res.URL)

	_, err = c.UploadImage(context.Background(), "empty.png", strings.NewReader(""))
	var apiErr *ApiError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func testCacheAside(t *testing.T, c *Client, b *fakeBackend, store *cache.LocalStore) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		profile, err := c.UserProfile(ctx, "0x01")
		require.NoError(t, err)
		require.Equal(t, "ana", profile.Nickname)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&b.hits))
	_, ok, err := store.Get(ctx, "user-profile:0x01")
	require.NoError(t, err)
	require.True(t, ok)
}

func testInvalidatedRead(t *testing.T, c *Client, b *fakeBackend, store *cache.LocalStore) {
	ctx := context.Background()
	_, err := c.EventDetail(ctx, "12")
	require.NoError(t, err)
	require.NoError(t, store.Invalidate(ctx, "event-detail:*"))
	ev, err := c.EventDetail(ctx, "12")
	require.NoError(t, err)
	require.Equal(t, "Jazz night", ev.Name)
	require.Equal(t, int32(2), atomic.LoadInt32(&b.hits))
}

func testMissingEvent(t *testing.T, c *Client, b *fakeBackend, store *cache.LocalStore) {
	ctx := context.Background()
	ev, err := c.EventDetail(ctx, "99")
	require.NoError(t, err)
	require.Nil(t, ev)
	_, ok, _ := store.Get(ctx, "event-detail:99")
	require.False(t, ok)
}

func testApiError(t *testing.T, c *Client, b *fakeBackend, store *cache.LocalStore) {
	_, err := c.UserProfile(context.Background(), "0xbroken")
	var apiErr *ApiError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.Contains(t, apiErr.Body, "db down")
}

func testEventPasses(t *testing.T, c *Client, b *fakeBackend, store *cache.LocalStore) {
	page, err := c.EventPasses(context.Background(), "0x01")
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	require.Equal(t, uint64(5), page.Data[0].PassID)
	require.Equal(t, passPageSize, page.Pagination.PageSize)
}

func testGachaReceipt(t *testing.T, c *Client, b *fakeBackend, store *cache.LocalStore) {
	ctx := context.Background()
	receipts := c.receipts.(*staticReceipts)
	for i := 0; i < 2; i++ {
		has, err := c.HasGachaReceipt(ctx, "0x01")
		require.NoError(t, err)
		require.True(t, has)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&receipts.calls))

	receipts.has = false
	require.NoError(t, store.Invalidate(ctx, "gacha-receipt:0x01"))
	has, err := c.HasGachaReceipt(ctx, "0x01")
	require.NoError(t, err)
	require.False(t, has)
}
