// Package docstore is the remote document store holding voters and
// canvassing surveys. Documents are addressed by collection and string
// id; writes are merge-upserts.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// VotersCollection holds the voter roll, one document per voter id.
	VotersCollection = "voters"

	// SurveysCollection holds per-voter canvassing data such as the
	// family group and the WhatsApp number.
	SurveysCollection = "voter_surveys"

	// WhatsAppRootCollection holds the campaign fallback WhatsApp number
	// in the document RootDocument.
	WhatsAppRootCollection = "whatsapp_root"

	// RootDocument is the id of the single whatsapp_root document.
	RootDocument = "root"
)

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a schemaless document. Values are strings, bools,
// int64, float64, time.Time, nested documents and []interface{}.
type Document map[string]interface{}

// Store is the contract every backend implements.
type Store interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Merge writes the fields of doc into the document, keeping the
	// fields it does not mention. A missing document is created.
	Merge(ctx context.Context, collection, id string, doc Document) error
}

// String returns the field as a string. Numbers are formatted without
// exponent so numeric serial numbers read back as typed.
func (d Document) String(key string) string {
	switch v := d[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the field as an integer, or 0 when it is not numeric.
func (d Document) Int64(key string) int64 {
	switch v := d[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case time.Time:
		return v.UnixNano() / int64(time.Millisecond)
	}
	return 0
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]interface{}(d)).(Document)
}

// Overlay returns a copy of base with every field of patch set on it.
func Overlay(base, patch Document) Document {
	out := base.Clone()
	if out == nil {
		out = Document{}
	}
	for k, v := range patch {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Document:
		out := make(Document, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case map[string]interface{}:
		out := make(Document, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []Document:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// Plain returns the document as nested map[string]interface{} and
// []interface{} values. Times become Unix milliseconds.
func (d Document) Plain() map[string]interface{} {
	if d == nil {
		return nil
	}
	return plainValue(d).(map[string]interface{})
}

func plainValue(v interface{}) interface{} {
	switch t := cloneValue(v).(type) {
	case Document:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = plainValue(val)
		}
		return out
	case []interface{}:
		for i, val := range t {
			t[i] = plainValue(val)
		}
		return t
	case time.Time:
		return t.UnixNano() / int64(time.Millisecond)
	default:
		return t
	}
}

// FromPlain converts decoded JSON-like values back to a Document.
// Integral floats are turned into int64 so millisecond timestamps and
// counters keep their type after a round trip through JSON.
func FromPlain(m map[string]interface{}) Document {
	if m == nil {
		return nil
	}
	return fromPlainValue(m).(Document)
}

const maxExactFloat = 1 << 53

func fromPlainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(Document, len(t))
		for k, val := range t {
			out[k] = fromPlainValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = fromPlainValue(val)
		}
		return out
	case float64:
		if t == float64(int64(t)) && t <= maxExactFloat && t >= -maxExactFloat {
			return int64(t)
		}
		return t
	default:
		return v
	}
}
