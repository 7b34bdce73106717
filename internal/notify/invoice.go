package notify

import (
	"fmt"
	"strings"

	"github.com/matemarket/matemarket/internal/domain"
)

// RenderInvoice produces the plain-text confirmation body for a committed
// order.
func RenderInvoice(event domain.OrderCreatedEvent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", event.OrderID)
	fmt.Fprintf(&b, "Delivery: %s\n\n", event.DeliveryMethod)
	b.WriteString("Items:\n")

	for _, item := range event.Items {
		fmt.Fprintf(&b, "  %d x %s @ %s\n",
			item.Quantity, item.ProductID, item.UnitPrice.StringFixed(2))
	}

	fmt.Fprintf(&b, "\nTotal: %s\n", event.Total.StringFixed(2))

	return b.String()
}
