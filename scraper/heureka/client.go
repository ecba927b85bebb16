package heureka

import (
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

// userAgent is shared by the browser and the HTTP client so the transplanted
// session is presented by the same client identity that created it.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewHTTPClient builds the lightweight client used for per-date statistics
// requests. It has no session until session.Install is called on it.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(timeout)

	// Transport-level hiccups only; authentication problems are handled by
	// the fetcher's session policy.
	client.SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return client
}
