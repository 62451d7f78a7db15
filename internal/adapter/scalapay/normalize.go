package scalapay

import (
	"fmt"
	"strings"

	domain "github.com/aq2208/gorder-scalapay/internal/entity"
)

// Normalize maps a platform order onto the provider's order-creation request.
// Missing customer or address records only drop the fields they would have filled.
func Normalize(o *domain.Order, baseURL string) OrderRequest {
	name := fallbackName(o.Customer)
	redirect := fmt.Sprintf("%s/payments/%s?orderId=%s", strings.TrimRight(baseURL, "/"), domain.ScalapayHandler, o.ID)

	req := OrderRequest{
		TotalAmount: NewAmount(o.TotalWithTax),
		Consumer:    consumer(o.Customer),
		Billing:     address(o.BillingAddress, name),
		Shipping:    address(o.ShippingAddress, name),
		Items:       make([]OrderLine, 0, len(o.Lines)),
		Merchant: Merchant{
			RedirectCancelURL:  redirect,
			RedirectConfirmURL: redirect,
		},
	}

	for _, l := range o.Lines {
		req.Items = append(req.Items, OrderLine{
			Quantity: l.Quantity,
			Price:    NewAmount(l.LinePriceWithTax),
			Name:     domain.Deref(l.ProductName),
			SKU:      domain.Deref(l.SKU),
		})
	}

	// the label reuses the tax-inclusive amount as-is; the provider only displays it
	for _, d := range o.Discounts {
		req.Discounts = append(req.Discounts, Discount{DisplayName: fmt.Sprintf("%d%%off", d.AmountWithTax)})
	}

	if o.ShippingWithTax != 0 {
		amt := NewAmount(o.ShippingWithTax)
		req.ShippingAmount = &amt
	}
	return req
}

// fallbackName treats empty names like missing ones.
func fallbackName(c *domain.Customer) string {
	if c == nil {
		return ""
	}
	first, last := domain.Deref(c.FirstName), domain.Deref(c.LastName)
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

func consumer(c *domain.Customer) Consumer {
	if c == nil {
		return Consumer{}
	}
	return Consumer{
		PhoneNumber: domain.Deref(c.PhoneNumber),
		GivenNames:  domain.Deref(c.FirstName),
		Surname:     domain.Deref(c.LastName),
		Email:       domain.Deref(c.EmailAddress),
	}
}

func address(a *domain.Address, fallback string) *Address {
	out := Address{Name: fallback}
	if a != nil {
		out.PhoneNumber = domain.Deref(a.PhoneNumber)
		out.CountryCode = strings.ToUpper(domain.Deref(a.CountryCode))
		out.Postcode = domain.Deref(a.PostalCode)
		out.Suburb = domain.Deref(a.City)
		out.Line1 = domain.Deref(a.StreetLine1)
		if a.FullName != nil && *a.FullName != "" {
			out.Name = *a.FullName
		}
	}
	if out == (Address{}) {
		return nil
	}
	return &out
}
