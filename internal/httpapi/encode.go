package httpapi

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-fulfillment/internal/domain/cart"
	"github.com/xenking/kart-fulfillment/internal/domain/customer"
	"github.com/xenking/kart-fulfillment/internal/domain/order"
	"github.com/xenking/kart-fulfillment/internal/domain/product"
)

// Money is rendered as a string with two decimals so no precision is lost
// in JSON numbers.
func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.StringFixed(2))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeTimestamps(e *jx.Encoder, created, updated time.Time) {
	e.FieldStart("created_at")
	encodeTime(e, created)
	e.FieldStart("updated_at")
	encodeTime(e, updated)
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	encodeMoney(e, p.Price)
	e.FieldStart("stock")
	e.Int(p.Stock)
	if p.ImageURL != "" {
		e.FieldStart("image_url")
		e.Str(p.ImageURL)
	}
	encodeTimestamps(e, p.CreatedAt, p.UpdatedAt)
	e.ObjEnd()
}

func encodeProducts(e *jx.Encoder, ps []product.Product) {
	e.ArrStart()
	for i := range ps {
		encodeProduct(e, &ps[i])
	}
	e.ArrEnd()
}

func encodeItem(e *jx.Encoder, it *cart.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(it.ID)
	e.FieldStart("cart_id")
	e.Str(it.CartID)
	e.FieldStart("product_id")
	e.Str(it.ProductID)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("total")
	encodeMoney(e, it.Total)
	if it.Product != nil {
		e.FieldStart("product")
		encodeProduct(e, it.Product)
	}
	encodeTimestamps(e, it.CreatedAt, it.UpdatedAt)
	e.ObjEnd()
}

func encodeItems(e *jx.Encoder, items []cart.Item) {
	e.ArrStart()
	for i := range items {
		encodeItem(e, &items[i])
	}
	e.ArrEnd()
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("customer_id")
	e.Str(c.CustomerID)
	e.FieldStart("total")
	encodeMoney(e, c.Total)
	if c.Items != nil {
		e.FieldStart("items")
		encodeItems(e, c.Items)
	}
	encodeTimestamps(e, c.CreatedAt, c.UpdatedAt)
	e.ObjEnd()
}

func encodeCarts(e *jx.Encoder, cs []cart.Cart) {
	e.ArrStart()
	for i := range cs {
		encodeCart(e, &cs[i])
	}
	e.ArrEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("cart_id")
	e.Str(o.CartID)
	if o.Cart != nil {
		e.FieldStart("cart")
		encodeCart(e, o.Cart)
	}
	encodeTimestamps(e, o.CreatedAt, o.UpdatedAt)
	e.ObjEnd()
}

func encodeOrders(e *jx.Encoder, list []order.Order) {
	e.ArrStart()
	for i := range list {
		encodeOrder(e, &list[i])
	}
	e.ArrEnd()
}

func encodeSummary(e *jx.Encoder, s order.Summary) {
	e.ObjStart()
	e.FieldStart("total_orders")
	e.Int(s.TotalOrders)
	e.FieldStart("total_revenue")
	encodeMoney(e, s.TotalRevenue)
	e.ObjEnd()
}

func encodeCustomer(e *jx.Encoder, c *customer.Customer) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("name")
	e.Str(c.Name)
	e.FieldStart("mail")
	e.Str(c.Mail)
	e.FieldStart("role")
	e.Str(string(c.Role))
	encodeTimestamps(e, c.CreatedAt, c.UpdatedAt)
	e.ObjEnd()
}

func encodeCustomers(e *jx.Encoder, cs []customer.Customer) {
	e.ArrStart()
	for i := range cs {
		encodeCustomer(e, &cs[i])
	}
	e.ArrEnd()
}
