package model

// SerialEntry is the serial assignment state of one order item.
type SerialEntry struct {
	ItemID      int64    `json:"item_id"`
	ProductID   int64    `json:"product_id"`
	ProductName string   `json:"product_name"`
	Quantity    int      `json:"quantity"`
	Serials     []string `json:"serials"`
}
