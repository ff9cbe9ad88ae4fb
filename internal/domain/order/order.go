package order

import (
	"strconv"
	"time"

	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
)

// Order — полезная нагрузка заказа, которую несет фид изменений.
type Order struct {
	OrderID       string    `json:"order_id"`
	TrackNumber   string    `json:"track_number"`
	CustomerID    string    `json:"customer_id"`
	CustomerEmail string    `json:"customer_email"`
	PaymentStatus string    `json:"payment_status"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	DateCreated   time.Time `json:"date_created"`
	Items         []Item    `json:"items"`
}

type Item struct {
	ChrtID string `json:"chrt_id"`
	Name   string `json:"name"`
	Price  int64  `json:"price"`
	Brand  string `json:"brand"`
}

// ToTree собирает типизированный образ заказа — в том виде, в котором
// первичное хранилище публикует его в фид изменений.
func (o Order) ToTree() attrvalue.Tree {
	items := make([]attrvalue.Value, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, attrvalue.Map(map[string]attrvalue.Value{
			"chrt_id": attrvalue.String(it.ChrtID),
			"name":    attrvalue.String(it.Name),
			"price":   attrvalue.Number(itoa(it.Price)),
			"brand":   attrvalue.String(it.Brand),
		}))
	}
	return attrvalue.Tree{
		"orderId":       attrvalue.String(o.OrderID),
		"trackNumber":   attrvalue.String(o.TrackNumber),
		"customerId":    attrvalue.String(o.CustomerID),
		"customerEmail": attrvalue.String(o.CustomerEmail),
		"paymentStatus": attrvalue.String(o.PaymentStatus),
		"amount":        attrvalue.Number(itoa(o.Amount)),
		"currency":      attrvalue.String(o.Currency),
		"dateCreated":   attrvalue.String(o.DateCreated.UTC().Format(time.RFC3339)),
		"items":         attrvalue.List(items...),
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
