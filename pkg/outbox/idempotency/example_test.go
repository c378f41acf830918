package idempotency

import (
	"context"
	"fmt"
	"time"
)

func ExampleManager_CheckAndMark() {
	manager, _ := NewManager(newMemoryStore(), 24*time.Hour)
	ctx := context.Background()
	day := "2026-03-01"

	for i := 0; i < 2; i++ {
		seen, _ := manager.CheckAndMark(ctx, "alerts:low_stock", "product-7:"+day)
		if seen {
			fmt.Println("alert already queued today")
			continue
		}
		fmt.Println("queue low stock alert")
	}
	// Output:
	// queue low stock alert
	// alert already queued today
}
