package orders

// Binding pairs one order line with the concrete stock unit it claims.
type Binding struct {
	OrderItemID int64
	StockItemID int64
}

// GroupDemand counts demand per product and keeps the line ids in the
// order they were given (callers pass lines sorted by id).
func GroupDemand(items []OrderItem) (map[int64][]int64, []int64) {
	demand := map[int64][]int64{}
	var productOrder []int64
	for _, it := range items {
		if _, ok := demand[it.ProductID]; !ok {
			productOrder = append(productOrder, it.ProductID)
		}
		demand[it.ProductID] = append(demand[it.ProductID], it.ID)
	}
	return demand, productOrder
}

// PlanAllocation assigns the i-th line of each product's demand to the
// i-th available unit (unit id lists are ascending: earliest-acquired
// sold first). All-or-nothing: any shortage returns the full detail
// list and no bindings.
func PlanAllocation(items []OrderItem, available map[int64][]int64) ([]Binding, *InsufficientStockError) {
	demand, productOrder := GroupDemand(items)

	var shortages []ShortageDetail
	for _, pid := range productOrder {
		if len(available[pid]) < len(demand[pid]) {
			shortages = append(shortages, ShortageDetail{
				ProductID: pid, Required: len(demand[pid]), Available: len(available[pid]),
			})
		}
	}
	if len(shortages) > 0 {
		return nil, &InsufficientStockError{Details: shortages}
	}

	bindings := make([]Binding, 0, len(items))
	for _, pid := range productOrder {
		units := available[pid]
		for i, itemID := range demand[pid] {
			bindings = append(bindings, Binding{OrderItemID: itemID, StockItemID: units[i]})
		}
	}
	return bindings, nil
}
