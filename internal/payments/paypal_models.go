package payments

// Wire types for the PayPal REST payments API (v1).

type Payment struct {
	ID           string        `json:"id,omitempty"`
	Intent       string        `json:"intent,omitempty"`
	State        string        `json:"state,omitempty"`
	Payer        *Payer        `json:"payer,omitempty"`
	Transactions []Transaction `json:"transactions,omitempty"`
	RedirectURLs *RedirectURLs `json:"redirect_urls,omitempty"`
	Links        []Link        `json:"links,omitempty"`
	CreateTime   string        `json:"create_time,omitempty"`
	UpdateTime   string        `json:"update_time,omitempty"`
}

type Payer struct {
	PaymentMethod string     `json:"payment_method,omitempty"`
	Status        string     `json:"status,omitempty"`
	PayerInfo     *PayerInfo `json:"payer_info,omitempty"`
}

type PayerInfo struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	PayerID   string `json:"payer_id,omitempty"`
}

type RedirectURLs struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type Transaction struct {
	Amount        *Amount   `json:"amount,omitempty"`
	ItemList      *ItemList `json:"item_list,omitempty"`
	InvoiceNumber string    `json:"invoice_number,omitempty"`
	Description   string    `json:"description,omitempty"`
}

// Amount totals are decimal strings, e.g. "19.99".
type Amount struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type ItemList struct {
	Items []Item `json:"items"`
}

type Item struct {
	Quantity string `json:"quantity"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type executeRequest struct {
	PayerID string `json:"payer_id"`
}

// Link returns the href of the first link with the given rel.
func (p *Payment) Link(rel string) (string, bool) {
	for _, l := range p.Links {
		if l.Rel == rel {
			return l.Href, true
		}
	}
	return "", false
}
