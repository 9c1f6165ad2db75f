package model

import "github.com/shopspring/decimal"

// CustomerContact is the contact block embedded in an order summary.
type CustomerContact struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
	Email  string `json:"email"`
}

// CustomerRef is one entry of the customer dropdown. Type decides which
// customer id field an order payload populates.
type CustomerRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// CustomerDetails is returned by GET /customers/details.
type CustomerDetails struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	Mobile  string          `json:"mobile"`
	Email   string          `json:"email"`
	Address *AddressSummary `json:"address"`
}

// AddressSummary is the latest address attached to customer details.
type AddressSummary struct {
	ID          int64  `json:"id"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	Pincode     string `json:"pincode"`
	StateID     int64  `json:"state_id"`
	StateName   string `json:"state_name"`
}

// Address belongs to exactly one customer and is referenced by address_id
// when an order is created.
type Address struct {
	AddressID      int64  `json:"address_id"`
	Name           string `json:"name"`
	Mobile         string `json:"mobile"`
	Pincode        string `json:"pincode"`
	Locality       string `json:"locality,omitempty"`
	AddressLine    string `json:"address_line"`
	City           string `json:"city"`
	StateID        int64  `json:"state_id"`
	Landmark       string `json:"landmark,omitempty"`
	AlternatePhone string `json:"alternate_phone,omitempty"`
	AddressType    string `json:"address_type,omitempty"`
	Label          string `json:"label,omitempty"`
}

// NewAddress is the body of POST /customers/address/create.
type NewAddress struct {
	CustType       string `json:"cust_type"`
	CustomerID     int64  `json:"customer_id"`
	Name           string `json:"name"`
	Mobile         string `json:"mobile"`
	Pincode        string `json:"pincode"`
	Locality       string `json:"locality"`
	AddressLine    string `json:"address_line"`
	City           string `json:"city"`
	StateID        int64  `json:"state_id"`
	AddressType    string `json:"address_type"`
	Landmark       string `json:"landmark"`
	AlternatePhone string `json:"alternate_phone"`
}

// Product is one entry of the product dropdown.
type Product struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProductDetails is the authoritative metadata used when a product is added
// to a draft order. MRP, Image and Stock are optional upstream.
type ProductDetails struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	SKUID      string          `json:"sku_id"`
	GSTPercent decimal.Decimal `json:"gst_percent"`
	MRP        decimal.Decimal `json:"mrp"`
	Image      string          `json:"image"`
	Stock      int             `json:"stock"`
}

// State is one entry of the state dropdown.
type State struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
