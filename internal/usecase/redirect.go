package usecase

import (
	"net/url"
	"strings"
)

// OrderIDPlaceholder in the success URL is replaced by the order id.
const OrderIDPlaceholder = "<order-id>"

// Redirects decides where the shopper's browser goes after a callback.
type Redirects struct {
	SuccessURL string
	FailureURL string
}

// Decide appends the order query to the success URL and leaves the rest of it untouched.
func (r Redirects) Decide(ok bool, orderID string) string {
	if !ok {
		return r.FailureURL
	}
	target := strings.ReplaceAll(r.SuccessURL, OrderIDPlaceholder, orderID)

	target, fragment, hasFragment := strings.Cut(target, "#")
	sep := "?"
	switch {
	case strings.HasSuffix(target, "?"), strings.HasSuffix(target, "&"):
		sep = ""
	case strings.Contains(target, "?"):
		sep = "&"
	}
	target += sep + "order=" + url.QueryEscape(orderID)
	if hasFragment {
		target += "#" + fragment
	}
	return target
}
