package middleware

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/aq2208/gorder-scalapay/internal/logging"
)

const redacted = "***redacted***"

// sensitive holds lower-cased JSON keys whose values never reach the logs.
var sensitive = map[string]bool{
	"password":      true,
	"authorization": true,
	"token":         true,
	"ordertoken":    true,
	"access_token":  true,
	"secret":        true,
	"client_secret": true,
	"apikey":        true,
	"api_key":       true,
}

// maskedParams are query parameters logged through logging.Mask: the provider
// callback carries the settlement token in the URL.
var maskedParams = map[string]bool{
	"ordertoken": true,
	"token":      true,
}

// redactJSON returns raw unchanged when it is not JSON.
func redactJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return raw
	}
	out, err := json.Marshal(scrub(doc))
	if err != nil {
		return raw
	}
	return out
}

func scrub(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if sensitive[strings.ToLower(k)] {
				t[k] = redacted
			} else {
				t[k] = scrub(child)
			}
		}
	case []any:
		for i := range t {
			t[i] = scrub(t[i])
		}
	}
	return v
}

// redactQuery renders the query with tokens masked and secrets removed.
func redactQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	out := url.Values{}
	for k, vs := range q {
		lk := strings.ToLower(k)
		for _, v := range vs {
			switch {
			case maskedParams[lk]:
				out.Add(k, logging.Mask(v))
			case sensitive[lk]:
				out.Add(k, redacted)
			default:
				out.Add(k, v)
			}
		}
	}
	return out.Encode()
}
