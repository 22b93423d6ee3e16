// Package restapi talks to the application backend. Reads go through a
// cache-aside store whose keys are the ones the invalidation table names.
package restapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mohitkumar/txflow/cache"
	"github.com/mohitkumar/txflow/config"
	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/util"
	"go.uber.org/zap"
)

const passPageSize = 8

// ReceiptSource answers whether an account holds an unrevealed gacha receipt.
type ReceiptSource interface {
	HasReceipt(ctx context.Context, address string) (bool, error)
}

type Client struct {
	http     *resty.Client
	store    cache.Store
	ttl      time.Duration
	receipts ReceiptSource
}

func New(cfg config.BackendConfig, store cache.Store, receipts ReceiptSource) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseUrl).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}
	return &Client{
		http:     httpClient,
		store:    store,
		ttl:      cfg.CacheTTL,
		receipts: receipts,
	}
}

// UploadImage posts the thumbnail as multipart form data and returns its public url.
func (c *Client) UploadImage(ctx context.Context, filename string, content io.Reader) (*UploadResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("thumbnail", filename, content).
		SetResult(&UploadResult{}).
		Post("/upload")
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	res := resp.Result().(*UploadResult)
	if res.URL == "" {
		return nil, fmt.Errorf("upload %s: backend returned no url", filename)
	}
	logger.Info("image uploaded", zap.String("file", filename), zap.String("url", res.URL))
	return res, nil
}

// EventDetail returns nil when the event does not exist.
func (c *Client) EventDetail(ctx context.Context, eventId string) (*EventDetail, error) {
	return cached(ctx, c, "event-detail:"+eventId, func() (*EventDetail, error) {
		return get[EventDetail](ctx, c, "/events/"+eventId, nil)
	})
}

// UserProfile returns nil when the user has not set up a profile yet.
func (c *Client) UserProfile(ctx context.Context, address string) (*UserProfile, error) {
	return cached(ctx, c, "user-profile:"+address, func() (*UserProfile, error) {
		return get[UserProfile](ctx, c, "/users/"+address, nil)
	})
}

// EventPasses returns the first page of passes owned by address.
func (c *Client) EventPasses(ctx context.Context, address string) (*EventPassPage, error) {
	return cached(ctx, c, "event-passes:"+address, func() (*EventPassPage, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"owner_address": address,
				"page":          "1",
				"pageSize":      fmt.Sprint(passPageSize),
			}).
			SetResult(&EventPassPage{}).
			Get("/event-passes")
		if err != nil {
			return nil, fmt.Errorf("get event passes of %s: %w", address, err)
		}
		if resp.IsError() {
			return nil, apiError(resp)
		}
		return resp.Result().(*EventPassPage), nil
	})
}

func (c *Client) HasGachaReceipt(ctx context.Context, address string) (bool, error) {
	if c.receipts == nil {
		return false, fmt.Errorf("no receipt source configured")
	}
	res, err := cached(ctx, c, "gacha-receipt:"+address, func() (*bool, error) {
		ok, err := c.receipts.HasReceipt(ctx, address)
		if err != nil {
			return nil, err
		}
		return &ok, nil
	})
	if err != nil || res == nil {
		return false, err
	}
	return *res, nil
}

func get[T any](ctx context.Context, c *Client, path string, query map[string]string) (*T, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(&envelope[T]{}).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return &resp.Result().(*envelope[T]).Data, nil
}

// cached serves key from the store, or fetches and stores it. Absent values are not cached.
func cached[T any](ctx context.Context, c *Client, key string, fetch func() (*T, error)) (*T, error) {
	encDec := util.NewJsonEncoderDecoder[T]()
	if c.store != nil {
		raw, ok, err := c.store.Get(ctx, key)
		if err != nil {
			logger.Error("error in reading cache", zap.String("key", key), zap.Error(err))
		} else if ok {
			if v, err := encDec.Decode(raw); err == nil {
				return v, nil
			}
		}
	}
	v, err := fetch()
	if err != nil || v == nil || c.store == nil {
		return v, err
	}
	raw, err := encDec.Encode(*v)
	if err != nil {
		return v, nil
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		logger.Error("error in writing cache", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}

func apiError(resp *resty.Response) error {
	return &ApiError{
		Method: resp.Request.Method,
		Path:   resp.Request.URL,
		Status: resp.StatusCode(),
		Body:   string(resp.Body()),
	}
}
