// cmd/seeder/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	segmentio "github.com/segmentio/kafka-go"

	kaf "github.com/reybrally/order-pipeline/internal/adapters/kafka"
	"github.com/reybrally/order-pipeline/internal/app/stream"
	"github.com/reybrally/order-pipeline/internal/domain/order"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	ctx := context.Background()

	brokers := strings.Split(getenv("KAFKA_BROKERS", "localhost:19092"), ",")
	feedTopic := getenv("ORDERS_CHANGEFEED_TOPIC", "orders-changefeed")
	clickTopic := getenv("CLICKSTREAM_TOPIC", "clickstream-events")

	prod, err := kaf.NewProducer(kaf.ProducerConfig{
		Brokers:                brokers,
		ClientID:               "seeder",
		RequiredAcks:           segmentio.RequireAll,
		BatchBytes:             1 << 20,
		BatchTimeout:           50 * time.Millisecond,
		Compression:            segmentio.Snappy,
		AllowAutoTopicCreation: true,
	})
	if err != nil {
		log.Fatalf("kafka producer: %v", err)
	}
	defer prod.Close()

	rand.Seed(time.Now().UnixNano())

	const ordersN = 200
	const clicksN = 1000
	now := time.Now().UTC()

	// ---------- события фида изменений ----------
	for i := 1; i <= ordersN; i++ {
		o := sampleOrder(i, now)

		image, err := json.Marshal(o.ToTree())
		if err != nil {
			log.Fatalf("marshal image: %v", err)
		}
		env := kaf.Envelope[json.RawMessage]{
			EventType:  kaf.EventRecordInserted,
			Version:    1,
			OccurredAt: now.Add(-time.Duration(rand.Intn(3600)) * time.Second),
			EntityID:   o.OrderID,
			Payload:    image,
			Meta: kaf.Meta{
				Producer: "seeder",
				TraceID:  uuid.New().String(),
				Source:   "seeder",
			},
		}
		if err := prod.PublishJSON(ctx, feedTopic, []byte(o.OrderID), env, nil); err != nil {
			log.Fatalf("publish mutation %s: %v", o.OrderID, err)
		}
	}
	log.Printf("published %d mutation events to %s", ordersN, feedTopic)

	// ---------- события кликстрима ----------
	eventTypes := []string{"product_view", "add_to_cart", "purchase", "search", ""}
	pages := []string{"/catalog", "/item/42", "/cart", "/checkout"}
	for i := 1; i <= clicksN; i++ {
		ev := stream.ClickEvent{
			UserID:    fmt.Sprintf("cust-%d", 1000+rand.Intn(200)),
			SessionID: uuid.New().String(),
			EventType: eventTypes[rand.Intn(len(eventTypes))],
			Timestamp: now.Add(-time.Duration(rand.Intn(86400)) * time.Second),
			Properties: map[string]any{
				"page":     pages[rand.Intn(len(pages))],
				"referrer": "seed",
			},
		}
		if err := prod.PublishJSON(ctx, clickTopic, []byte(ev.UserID), ev, nil); err != nil {
			log.Fatalf("publish click %d: %v", i, err)
		}
	}
	log.Printf("published %d click events to %s", clicksN, clickTopic)
}

func sampleOrder(i int, now time.Time) order.Order {
	statuses := []string{"SUCCESS", "SUCCESS", "SUCCESS", "DECLINED"}
	names := []string{"Кроссовки", "Футболка", "Наушники", "Кружка", "Рюкзак"}
	brands := []string{"Nike", "Adidas", "Puma", "Reebok", "Apple", "Xiaomi"}

	itemsCount := 1 + rand.Intn(4)
	items := make([]order.Item, 0, itemsCount)
	for j := 0; j < itemsCount; j++ {
		items = append(items, order.Item{
			ChrtID: fmt.Sprintf("%d", 10000+i*10+j),
			Name:   names[rand.Intn(len(names))],
			Price:  int64(1000 + rand.Intn(300000)),
			Brand:  brands[rand.Intn(len(brands))],
		})
	}

	return order.Order{
		OrderID:       fmt.Sprintf("ORD-%06d", i),
		TrackNumber:   fmt.Sprintf("TRK-%06d", i),
		CustomerID:    fmt.Sprintf("cust-%d", 1000+i),
		CustomerEmail: fmt.Sprintf("cust-%d@example.com", 1000+i),
		PaymentStatus: statuses[rand.Intn(len(statuses))],
		Amount:        int64(1000 + rand.Intn(500000)),
		Currency:      "RUB",
		DateCreated:   now.Add(-time.Duration(rand.Intn(86400)) * time.Second),
		Items:         items,
	}
}
