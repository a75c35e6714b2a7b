package checkout

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-faster/errors"
	"golang.org/x/sync/singleflight"
)

// SDK describes the provider's successfully loaded browser SDK: the script
// URL the page embeds and the public key it is initialized with.
type SDK struct {
	ScriptURL string `json:"script_url"`
	PublicKey string `json:"public_key"`
}

// SDKLoadError indicates the provider script could not be fetched. The UI
// action that opens checkout must stay disabled until a later Load succeeds.
type SDKLoadError struct {
	URL string
	Err error
}

func (e *SDKLoadError) Error() string {
	return errors.Wrapf(e.Err, "load provider sdk %s", e.URL).Error()
}

func (e *SDKLoadError) Unwrap() error { return e.Err }

// SDKLoader loads the provider script once per process. Concurrent callers
// share a single in-flight fetch; after the first success every Load is a
// cache hit. Failures are not cached, so a later Load retries.
type SDKLoader struct {
	scriptURL string
	publicKey string
	client    *http.Client

	group singleflight.Group

	mu     sync.RWMutex
	loaded *SDK
}

// NewSDKLoader creates a loader for the script at scriptURL. client may be
// nil, in which case http.DefaultClient is used.
func NewSDKLoader(scriptURL, publicKey string, client *http.Client) *SDKLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &SDKLoader{
		scriptURL: scriptURL,
		publicKey: publicKey,
		client:    client,
	}
}

// Load returns the SDK handle, fetching the script on first use.
func (l *SDKLoader) Load(ctx context.Context) (*SDK, error) {
	l.mu.RLock()
	if sdk := l.loaded; sdk != nil {
		l.mu.RUnlock()
		return sdk, nil
	}
	l.mu.RUnlock()

	v, err, _ := l.group.Do("sdk", func() (any, error) {
		sdk, err := l.fetch(ctx)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.loaded = sdk
		l.mu.Unlock()
		return sdk, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SDK), nil
}

// Loaded reports whether a Load has already succeeded.
func (l *SDKLoader) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded != nil
}

func (l *SDKLoader) fetch(ctx context.Context) (*SDK, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, l.scriptURL, nil)
	if err != nil {
		return nil, &SDKLoadError{URL: l.scriptURL, Err: err}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &SDKLoadError{URL: l.scriptURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &SDKLoadError{URL: l.scriptURL, Err: errors.Errorf("status %d", resp.StatusCode)}
	}
	return &SDK{ScriptURL: l.scriptURL, PublicKey: l.publicKey}, nil
}
