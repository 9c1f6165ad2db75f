package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kiwari-pos/order-desk/internal/model"
	"github.com/shopspring/decimal"
)

// Products lists the product dropdown.
func (c *Client) Products(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	if err := c.do(ctx, http.MethodGet, "/products/list", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProductDetails fetches name, SKU and GST rate for one product.
func (c *Client) ProductDetails(ctx context.Context, productID int64) (model.ProductDetails, error) {
	var out model.ProductDetails
	q := url.Values{"id": {strconv.FormatInt(productID, 10)}}
	err := c.do(ctx, http.MethodGet, "/products/details", q, nil, &out)
	return out, err
}

// ProductPrice fetches the current selling price. The upstream reports 0
// when it has no price on record.
func (c *Client) ProductPrice(ctx context.Context, productID int64) (decimal.Decimal, error) {
	var out struct {
		Price decimal.Decimal `json:"price"`
	}
	q := url.Values{"product_id": {strconv.FormatInt(productID, 10)}}
	if err := c.do(ctx, http.MethodGet, "/dropdowns/products/get_price", q, nil, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Price, nil
}

// Customers lists online and offline customers, type-tagged.
func (c *Client) Customers(ctx context.Context) ([]model.CustomerRef, error) {
	var out []model.CustomerRef
	if err := c.do(ctx, http.MethodGet, "/customers/list", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CustomerDetails fetches contact details and the latest address.
func (c *Client) CustomerDetails(ctx context.Context, custType string, id int64) (model.CustomerDetails, error) {
	var out model.CustomerDetails
	q := url.Values{"type": {custType}, "id": {strconv.FormatInt(id, 10)}}
	err := c.do(ctx, http.MethodGet, "/customers/details", q, nil, &out)
	return out, err
}

// Addresses lists a customer's available addresses, oldest first.
func (c *Client) Addresses(ctx context.Context, custType string, id int64) ([]model.Address, error) {
	var out []model.Address
	path := "/dropdowns/customers/" + url.PathEscape(custType) + "/" + strconv.FormatInt(id, 10) + "/addresses"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAddress adds an address and returns its id.
func (c *Client) CreateAddress(ctx context.Context, a model.NewAddress) (int64, error) {
	var out struct {
		AddressID int64 `json:"address_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/customers/address/create", nil, a, &out); err != nil {
		return 0, err
	}
	return out.AddressID, nil
}

// States lists the state dropdown.
func (c *Client) States(ctx context.Context) ([]model.State, error) {
	var out []model.State
	if err := c.do(ctx, http.MethodGet, "/states/list", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
