package inventory

import (
	"context"
	"log"
)

// LowStockNotifier is the slice of the notification dispatcher the monitor
// needs.
type LowStockNotifier interface {
	NotifyLowStock(ctx context.Context, lv Level) error
}

// Monitor watches stock levels after ledger decreases and signals the
// notifier when a product drops below the threshold. It is invoked after the
// owning transaction commits; a notification failure is logged and never
// propagated, so it cannot unwind the inventory change that triggered it.
type Monitor struct {
	notifier LowStockNotifier
	logger   *log.Logger
}

func NewMonitor(notifier LowStockNotifier, logger *log.Logger) *Monitor {
	return &Monitor{notifier: notifier, logger: logger}
}

func (m *Monitor) Observe(ctx context.Context, lv Level) {
	if lv.Stock >= LowStockThreshold {
		return
	}
	if err := m.notifier.NotifyLowStock(ctx, lv); err != nil {
		m.logger.Printf("low stock alert for product %s failed: %v", lv.ProductID, err)
	}
}
