package objstore

import (
	"fmt"

	"github.com/lodworld/tileworker/internal/nlog"
	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type purgeFile struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

type purgeBody struct {
	Files []purgeFile `json:"files"`
}

type purgeResponse struct {
	Success bool `json:"success"`
}

// CDNPurger posts purge requests to the Cloudflare-compatible purge_cache
// endpoint. Non-2xx responses or success:false payloads are logged, never
// returned as an error: CdnPurgeFailed is a logged-only error kind.
type CDNPurger struct {
	client  *fasthttp.Client
	zoneURL string // https://api.cloudflare.com/client/v4/zones/<zone>/purge_cache
	token   string
	origin  string
}

// NewCDNPurger builds a purger targeting zoneID with the given bearer
// token and Origin header value.
func NewCDNPurger(zoneID, token, origin string) *CDNPurger {
	return &CDNPurger{
		client:  &fasthttp.Client{},
		zoneURL: fmt.Sprintf("https://api.cloudflare.com/client/v4/zones/%s/purge_cache", zoneID),
		token:   token,
		origin:  origin,
	}
}

// PurgeCache POSTs a single JSON document listing urls for purge.
func (p *CDNPurger) PurgeCache(urls []string) {
	body := purgeBody{Files: make([]purgeFile, len(urls))}
	for i, u := range urls {
		body.Files[i] = purgeFile{URL: u, Headers: map[string]string{"Origin": p.origin}}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		nlog.Errorln("cdn purge: encoding request", err)
		return
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(p.zoneURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.SetBody(payload)

	if err := p.client.Do(req, resp); err != nil {
		nlog.Errorln("cdn purge: request failed", err)
		return
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		nlog.Errorf("cdn purge: non-2xx status %d", resp.StatusCode())
		return
	}
	var pr purgeResponse
	if err := json.Unmarshal(resp.Body(), &pr); err != nil {
		nlog.Errorln("cdn purge: decoding response", err)
		return
	}
	if !pr.Success {
		nlog.Errorln("cdn purge: success=false", string(resp.Body()))
	}
}
