package migrate

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"

	"github.com/jipraks/kasirgratisan/internal/store"
)

var newDeviceID = func() string {
	return uuid.Must(uuid.NewV7()).String()
}

var lifecycleCollections = []store.Collection{store.Categories, store.Products, store.Suppliers}

func lifecycleDone(ds Dataset) bool {
	for _, c := range lifecycleCollections {
		for _, doc := range ds[c] {
			if _, ok := doc["isDeleted"]; !ok {
				return false
			}
		}
	}
	return true
}

func addLifecycle(ds Dataset) (Dataset, error) {
	out := Dataset{}
	for _, c := range lifecycleCollections {
		docs := make([]Doc, 0, len(ds[c]))
		for _, doc := range ds[c] {
			next := maps.Clone(doc)
			if _, ok := next["isDeleted"]; !ok {
				next["isDeleted"] = false
				next["deletedAt"] = nil
			}
			docs = append(docs, next)
		}
		out[c] = docs
	}
	return out, nil
}

func deviceIDDone(ds Dataset) bool {
	for _, doc := range ds[store.StoreSettings] {
		if !hasDeviceID(doc) {
			return false
		}
	}
	return true
}

func hasDeviceID(doc Doc) bool {
	id, ok := doc["deviceId"].(string)
	return ok && strings.TrimSpace(id) != ""
}

func assignDeviceID(ds Dataset) (Dataset, error) {
	docs := make([]Doc, 0, len(ds[store.StoreSettings]))
	for _, doc := range ds[store.StoreSettings] {
		next := maps.Clone(doc)
		if !hasDeviceID(next) {
			next["deviceId"] = newDeviceID()
		}
		docs = append(docs, next)
	}
	return Dataset{store.StoreSettings: docs}, nil
}

func itemsSplitDone(ds Dataset) bool {
	for _, doc := range ds[store.Transactions] {
		if _, ok := doc["items"]; ok {
			return false
		}
	}
	return true
}

// splitTransactionItems moves each transaction's embedded "items" array into
// standalone transactionItems tagged with the parent id. A transaction that
// has items but no id gets one past the highest existing id.
func splitTransactionItems(ds Dataset) (Dataset, error) {
	var maxID int64
	for _, doc := range ds[store.Transactions] {
		if id, ok := docID(doc); ok && id > maxID {
			maxID = id
		}
	}

	transactions := make([]Doc, 0, len(ds[store.Transactions]))
	items := make([]Doc, 0, len(ds[store.TransactionItems]))
	for _, doc := range ds[store.TransactionItems] {
		items = append(items, maps.Clone(doc))
	}

	for i, doc := range ds[store.Transactions] {
		next := maps.Clone(doc)
		embedded, has := next["items"]
		if !has {
			transactions = append(transactions, next)
			continue
		}
		delete(next, "items")

		parent, ok := docID(next)
		if !ok {
			maxID++
			parent = maxID
			next["id"] = json.Number(fmt.Sprint(parent))
		}

		if embedded != nil {
			list, ok := embedded.([]any)
			if !ok {
				return nil, fmt.Errorf("transaction %d: items is %T, want array", i, embedded)
			}
			for j, raw := range list {
				item, ok := raw.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("transaction %d item %d: want object, got %T", i, j, raw)
				}
				split := maps.Clone(item)
				delete(split, "id")
				split["transactionId"] = json.Number(fmt.Sprint(parent))
				items = append(items, split)
			}
		}
		transactions = append(transactions, next)
	}

	return Dataset{
		store.Transactions:     transactions,
		store.TransactionItems: items,
	}, nil
}

func docID(doc Doc) (int64, bool) {
	switch v := doc["id"].(type) {
	case json.Number:
		id, err := v.Int64()
		return id, err == nil && id > 0
	case float64:
		return int64(v), v > 0
	case int64:
		return v, v > 0
	}
	return 0, false
}
