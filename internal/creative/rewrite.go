// Package creative rewrites winning creatives: it substitutes the
// {AUCTION_PRICE} macro in the DSP-supplied markup and injects ADX-side
// tracking matched to the creative format.
package creative

import (
	"encoding/json"
	"strings"
	"unicode"
)

// PriceMacro is the literal token DSPs embed for the clearing price.
const PriceMacro = "{AUCTION_PRICE}"

// Injected tracking keeps the macro unexpanded; the SSP fills it on
// impression fire.
const (
	htmlPixel      = `<img src="http://tk.rust-adx.com/impression?price={AUCTION_PRICE}" style="display:none;" />`
	vastImpression = `<Impression><![CDATA[http://tk.rust-adx.com/impression?price={AUCTION_PRICE}]]></Impression>`
	impressionURL  = "http://tk.rust-adx.com/impression?price={AUCTION_PRICE}"
	clickURL       = "http://tk.rust-adx.com/click?price={AUCTION_PRICE}"
)

// Format classifies creative markup.
type Format string

const (
	FormatHTML    Format = "html"
	FormatVAST    Format = "vast"
	FormatNative  Format = "native"
	FormatUnknown Format = "unknown"
)

// DetectFormat inspects markup and picks the injection strategy. Signals
// are case-sensitive; "<html" wins over "<VAST", and markup starting with
// "{" after leading whitespace counts as native JSON.
func DetectFormat(adm string) Format {
	switch {
	case strings.Contains(adm, "<html"):
		return FormatHTML
	case strings.Contains(adm, "<VAST"):
		return FormatVAST
	case strings.HasPrefix(strings.TrimLeftFunc(adm, unicode.IsSpace), "{"):
		return FormatNative
	default:
		return FormatUnknown
	}
}

// Rewrite substitutes the price macro in the DSP markup and injects ADX
// tracking. priceText is the final price already rendered as a decimal
// string. Rewriting applies once per auction; it does not check for
// tracking injected by an earlier pass.
func Rewrite(adm, priceText string) string {
	format := DetectFormat(adm)
	substituted := strings.ReplaceAll(adm, PriceMacro, priceText)

	switch format {
	case FormatHTML:
		return injectHTML(substituted)
	case FormatVAST:
		return injectVAST(substituted)
	case FormatNative:
		return injectNative(substituted)
	default:
		return substituted
	}
}

// injectHTML places the tracking pixel after the final </body>, else at
// the end of the markup.
func injectHTML(adm string) string {
	if idx := strings.LastIndex(adm, "</body>"); idx >= 0 {
		insertAt := idx + len("</body>")
		return adm[:insertAt] + htmlPixel + adm[insertAt:]
	}
	return adm + htmlPixel
}

// injectVAST inserts the impression node right after the first <InLine>
// opening tag. VAST without an inline ad gets it appended at the end.
func injectVAST(adm string) string {
	start := strings.Index(adm, "<InLine")
	if start < 0 {
		return adm + vastImpression
	}
	end := strings.Index(adm[start:], ">")
	if end < 0 {
		return adm + vastImpression
	}
	insertAt := start + end + 1
	return adm[:insertAt] + vastImpression + adm[insertAt:]
}

// injectNative adds top-level SSP tracking fields to the native payload.
// Unparseable JSON passes through untouched.
func injectNative(adm string) string {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(adm), &payload); err != nil {
		return adm
	}
	payload["ssp_impression_tracking"] = impressionURL
	payload["ssp_click_tracking"] = clickURL
	out, err := json.Marshal(payload)
	if err != nil {
		return adm
	}
	return string(out)
}
