package params

// Schema declares, per accepted parameter key, the canonical kind the value
// is normalized to before hashing.
type Schema map[string]ValueKind

// documentSchemas is the per-document-type allow-list. Keys a type does not
// declare are dropped by Filter; document types not present here accept
// nothing (fail-closed).
var documentSchemas = map[string]Schema{
	"sales-stat": {
		"fromDate":   KindDate,
		"toDate":     KindDate,
		"branchId":   KindNumber,
		"customerId": KindNumber,
		"groupBy":    KindString,
	},
	"invoice": {
		"invoiceId":    KindNumber,
		"invoiceNo":    KindString,
		"includeLogo":  KindBool,
		"currencyCode": KindString,
	},
	"customer-balances": {
		"asOfDate":       KindDate,
		"branchId":       KindNumber,
		"includeOverdue": KindBool,
	},
	"stock-summary": {
		"fromDate":    KindDate,
		"toDate":      KindDate,
		"warehouseId": KindNumber,
	},
	"general-ledger": {
		"fromDate":  KindDate,
		"toDate":    KindDate,
		"accountId": KindNumber,
		"branchId":  KindNumber,
	},
	"payment-receipt": {
		"paymentId":   KindNumber,
		"includeLogo": KindBool,
	},
}

// RegisterDocumentSchema adds or replaces the schema for a document type.
// Intended for service wiring at startup, not per-request use.
func RegisterDocumentSchema(documentType string, schema Schema) {
	documentSchemas[documentType] = schema
}

func KnownDocumentType(documentType string) bool {
	_, ok := documentSchemas[documentType]
	return ok
}

// Filter reduces an arbitrary caller-supplied key->value mapping to only the
// keys the document type's schema accepts, normalized to canonical values.
// It never fails: unknown document types yield an empty safe set, and the
// dropped keys come back for advisory warn-logging by the request layer.
func Filter(documentType string, raw map[string]interface{}) (map[string]Value, []string) {
	safe := map[string]Value{}
	var unknown []string

	schema, ok := documentSchemas[documentType]
	if !ok {
		for k := range raw {
			unknown = append(unknown, k)
		}
		return safe, unknown
	}

	for k, v := range raw {
		kind, accepted := schema[k]
		if !accepted {
			unknown = append(unknown, k)
			continue
		}
		safe[k] = coerce(kind, v)
	}
	return safe, unknown
}
