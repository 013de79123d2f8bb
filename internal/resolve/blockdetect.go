package resolve

import (
	"fmt"
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot page a bulletin site served.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// BlockedError reports that an endpoint served a challenge page.
type BlockedError struct {
	Endpoint string
	Block    BlockType
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("resolve: %s blocked (%s)", e.Endpoint, e.Block)
}

// DetectBlock checks a bulletin page response for a challenge page instead
// of real content.
func DetectBlock(resp *http.Response, body []byte) BlockType {
	if resp == nil {
		return BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))
	switch {
	case strings.Contains(lower, "checking your browser"),
		strings.Contains(lower, "cf-browser-verification"),
		strings.Contains(lower, "cf-challenge"):
		return BlockCloudflare
	case strings.Contains(lower, "g-recaptcha"),
		strings.Contains(lower, "h-captcha"),
		strings.Contains(lower, "captcha-container"):
		return BlockCaptcha
	}

	// Tiny pages that only tell the browser to run a script or refresh.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "enable javascript") {
			return BlockJSShell
		}
		if strings.Contains(lower, `http-equiv="refresh"`) && !strings.Contains(lower, ".pdf") {
			return BlockJSShell
		}
	}

	return BlockNone
}
