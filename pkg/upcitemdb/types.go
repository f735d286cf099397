package upcitemdb

// LookupResponse is returned by the lookup endpoint.
type LookupResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Total   int    `json:"total"`
	Items   []Item `json:"items"`
}

// Item is one product match. Category is a " > " separated taxonomy path.
type Item struct {
	EAN         string   `json:"ean"`
	UPC         string   `json:"upc"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Brand       string   `json:"brand"`
	Model       string   `json:"model"`
	Category    string   `json:"category"`
	Images      []string `json:"images"`
	Weight      string   `json:"weight"`
	Dimension   string   `json:"dimension"`
}
