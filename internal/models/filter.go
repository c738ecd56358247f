package models

import "strings"

// FilterItems returns the items whose name or SKU contains search,
// ignoring case. An empty search returns every item.
func FilterItems(items []InventoryItem, search string) []InventoryItem {
	return filter(items, search, func(i InventoryItem) []string {
		return []string{i.Name, i.SKU}
	})
}

// FilterOrders matches on order number or supplier name.
func FilterOrders(orders []PurchaseOrder, search string) []PurchaseOrder {
	return filter(orders, search, func(o PurchaseOrder) []string {
		return []string{o.OrderNumber, o.SupplierName}
	})
}

// FilterStaff matches on username or email.
func FilterStaff(users []User, search string) []User {
	return filter(users, search, func(u User) []string {
		return []string{u.Username, u.Email}
	})
}

func filter[T any](in []T, search string, fields func(T) []string) []T {
	search = strings.ToLower(search)

	out := make([]T, 0, len(in))
	for _, v := range in {
		if search == "" {
			out = append(out, v)
			continue
		}
		for _, f := range fields(v) {
			if strings.Contains(strings.ToLower(f), search) {
				out = append(out, v)
				break
			}
		}
	}
	return out
}
