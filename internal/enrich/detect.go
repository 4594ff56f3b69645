package enrich

import (
	"bytes"
	"net/http"
	"strings"
)

// Detector reports whether a page is a WAF challenge or block page rather
// than the site itself, and which product served it.
type Detector func(p *Page) (detected bool, source string)

// DefaultDetectors covers the WAFs commonly seen in front of domestic
// company sites plus the large international ones.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAliyun,
		detectTencent,
		detectAkamai,
	}
}

// Blocked runs p through detectors and returns the first match.
func Blocked(p *Page, detectors []Detector) (bool, string) {
	if p == nil {
		return false, ""
	}
	for _, d := range detectors {
		if detected, source := d(p); detected {
			return true, source
		}
	}
	return false, ""
}

func challengeStatus(code int) bool {
	return code == http.StatusForbidden || code == http.StatusMethodNotAllowed ||
		code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

func detectCloudflare(p *Page) (bool, string) {
	if !challengeStatus(p.StatusCode) {
		return false, ""
	}
	if strings.Contains(strings.ToLower(p.Headers.Get("Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bytes.Contains(p.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(p.Body, []byte("cf-turnstile")) ||
		bytes.Contains(p.Body, []byte("Attention Required! | Cloudflare")) {
		return true, "Cloudflare"
	}
	return false, ""
}

// detectAliyun matches Alibaba Cloud WAF block pages and the acw_sc__v2
// JavaScript challenge, which is served with status 200.
func detectAliyun(p *Page) (bool, string) {
	if bytes.Contains(p.Body, []byte("acw_sc__v2")) || bytes.Contains(p.Body, []byte("aliyun_waf")) {
		return true, "Aliyun WAF"
	}
	if challengeStatus(p.StatusCode) && strings.Contains(p.Headers.Get("Server"), "Tengine") &&
		bytes.Contains(p.Body, []byte("errors.aliyun.com")) {
		return true, "Aliyun WAF"
	}
	return false, ""
}

func detectTencent(p *Page) (bool, string) {
	if !challengeStatus(p.StatusCode) && p.StatusCode != 0 {
		return false, ""
	}
	if bytes.Contains(p.Body, []byte("waf.tencent-cloud.com")) ||
		bytes.Contains(p.Body, []byte("TencentCloud WAF")) {
		return true, "Tencent Cloud WAF"
	}
	return false, ""
}

func detectAkamai(p *Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(p.Headers.Get("Server")), "akamai") {
		return true, "Akamai"
	}
	if bytes.Contains(p.Body, []byte("Reference #")) && bytes.Contains(p.Body, []byte("Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}
