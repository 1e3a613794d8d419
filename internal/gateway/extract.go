package gateway

import (
	"errors"
	"strings"
)

// The aggregator has shipped at least three response shapes over time. Each
// value is looked up through an ordered list of extractors tried in sequence;
// upstream shape drift is the main failure mode here, so keep the lists
// colocated and in precedence order.

var ErrMalformedResponse = errors.New("gateway response did not match any known shape")

type extractor func(m map[string]any) (string, bool)

var paymentURLExtractors = []extractor{
	// oldest shape: url at the top level
	stringField("payment_url"),
	stringField("paymentUrl"),
	// current shape: wrapped in a transaction object
	nestedStringField("transaction", "payment_url"),
	nestedStringField("transaction", "paymentUrl"),
	// v2 api: one more envelope around it
	nestedStringField("data", "transaction", "payment_url"),
	nestedStringField("data", "transaction", "paymentUrl"),
}

var transactionIDExtractors = []extractor{
	stringField("transaction_id"),
	stringField("transactionId"),
	nestedStringField("transaction", "id"),
	nestedStringField("data", "transaction", "id"),
}

var statusExtractors = []extractor{
	stringField("status"),
	stringField("state"),
	nestedStringField("transaction", "status"),
	nestedStringField("data", "transaction", "status"),
}

func extractPaymentURL(m map[string]any) (string, bool) {
	return runExtractors(paymentURLExtractors, m)
}

func extractTransactionID(m map[string]any) (string, bool) {
	return runExtractors(transactionIDExtractors, m)
}

func extractStatus(m map[string]any) (string, bool) {
	return runExtractors(statusExtractors, m)
}

func runExtractors(list []extractor, m map[string]any) (string, bool) {
	for _, ex := range list {
		if v, ok := ex(m); ok {
			return v, true
		}
	}
	return "", false
}

func stringField(key string) extractor {
	return func(m map[string]any) (string, bool) {
		s, ok := m[key].(string)
		return s, ok && s != ""
	}
}

func nestedStringField(path ...string) extractor {
	return func(m map[string]any) (string, bool) {
		cur := m
		for _, key := range path[:len(path)-1] {
			next, ok := cur[key].(map[string]any)
			if !ok {
				return "", false
			}
			cur = next
		}
		s, ok := cur[path[len(path)-1]].(string)
		return s, ok && s != ""
	}
}

// isConfirmedStatus is the poll confirmation predicate. The aggregator is not
// consistent about casing across endpoints.
func isConfirmedStatus(status string) bool {
	switch strings.ToLower(status) {
	case "completed", "succeeded", "success":
		return true
	default:
		return false
	}
}
