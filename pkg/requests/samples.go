package requests

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// sampleDocuments are ready-made payloads for trying out the embed flow.
var sampleDocuments = map[string]interface{}{
	"customer": map[string]interface{}{
		"name":  "John Smith",
		"email": "john@example.com",
		"address": map[string]interface{}{
			"street": "123 Main St",
			"city":   "New York",
			"zip":    "10001",
		},
		"preferences": map[string]interface{}{
			"newsletter":    true,
			"notifications": false,
		},
	},
	"product": map[string]interface{}{
		"productId": "PROD-001",
		"name":      "Smartphone X",
		"price":     999.99,
		"category":  "Electronics",
		"specifications": map[string]interface{}{
			"screen":  "6.1 inch",
			"storage": "128GB",
			"color":   "Black",
		},
	},
	"order": map[string]interface{}{
		"orderId":    "ORD-2024-001",
		"customerId": "CUST-123",
		"items": []interface{}{
			map[string]interface{}{"productId": "PROD-001", "quantity": 2, "price": 999.99},
			map[string]interface{}{"productId": "PROD-002", "quantity": 1, "price": 299.99},
		},
		"total":  2299.97,
		"status": "pending",
	},
}

// SampleKinds lists the available sample document names.
func SampleKinds() []string {
	ret := make([]string, 0, len(sampleDocuments))
	for k := range sampleDocuments {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// SampleDocument returns the named sample as indented JSON, ready to be
// edited or fed to BuildEmbedRequest.
func SampleDocument(kind string) (string, error) {
	doc, ok := sampleDocuments[kind]
	if !ok {
		return "", errors.Errorf("unknown sample %q (available: %v)", kind, SampleKinds())
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to encode sample")
	}
	return string(b), nil
}
