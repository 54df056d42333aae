package orders

const (
	TopicOrderCreated    = "order.created"
	TopicOrderConfirmed  = "order.confirmed"
	TopicStockRejected   = "order.stock.rejected"
	TopicPaymentRecorded = "order.payment.recorded"
	TopicOrderCompleted  = "order.completed"
	TopicOrderCancelled  = "order.cancelled"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID int64) []byte {
	return []byte(itoa(orderID))
}
