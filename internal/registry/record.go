// Package registry looks up companies in a business registry. A synthetic
// in-memory store backs development runs; a remote provider talks to the
// Tianyancha open API.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Status is the outcome of a single registry lookup.
type Status string

const (
	StatusOK       Status = "ok"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// Operation names one of the four registry lookups.
type Operation string

const (
	OpBasicInfo            Operation = "basic_info"
	OpRiskInfo             Operation = "risk_info"
	OpIntellectualProperty Operation = "intellectual_property"
	OpFinancialData        Operation = "financial_data"
)

// Operations lists every lookup in the order a validator performs them.
var Operations = []Operation{OpBasicInfo, OpRiskInfo, OpIntellectualProperty, OpFinancialData}

const (
	// CodeNoResult is the registry error code for an unknown company.
	CodeNoResult = 300204
	// CodeNoData is returned by the registry when a query has no data.
	CodeNoData = 300000

	reasonNoResult = "查无结果"
)

// Record is the uniform result of one lookup. Payload is a JSON object when
// Status is ok and null otherwise.
type Record struct {
	Status      Status
	Payload     json.RawMessage
	ErrorReason string
}

type wireRecord struct {
	Status      Status          `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	ErrorReason *string         `json:"error_reason"`
}

// MarshalJSON renders the zero Record as an empty object so that error
// profiles carry {} placeholders.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.Status == "" {
		return []byte("{}"), nil
	}
	w := wireRecord{Status: r.Status, Payload: r.Payload}
	if len(w.Payload) == 0 {
		w.Payload = json.RawMessage("null")
	}
	if r.ErrorReason != "" {
		reason := r.ErrorReason
		w.ErrorReason = &reason
	}
	return json.Marshal(w)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Status = w.Status
	r.Payload = nil
	if p := bytes.TrimSpace(w.Payload); len(p) > 0 && !bytes.Equal(p, []byte("null")) {
		r.Payload = append(json.RawMessage(nil), p...)
	}
	r.ErrorReason = ""
	if w.ErrorReason != nil {
		r.ErrorReason = *w.ErrorReason
	}
	return nil
}

// OK reports whether the lookup succeeded.
func (r Record) OK() bool { return r.Status == StatusOK }

// Decode unmarshals the payload into v. It fails for records without a
// payload.
func (r Record) Decode(v any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("registry: record with status %q has no payload", r.Status)
	}
	return json.Unmarshal(r.Payload, v)
}

func okRecord(v any) Record {
	b, err := json.Marshal(v)
	if err != nil {
		return errorRecord(fmt.Sprintf("encode payload: %v", err))
	}
	return Record{Status: StatusOK, Payload: b}
}

func notFoundRecord(reason string) Record {
	if reason == "" {
		reason = reasonNoResult
	}
	return Record{Status: StatusNotFound, ErrorReason: reason}
}

func errorRecord(reason string) Record {
	return Record{Status: StatusError, ErrorReason: reason}
}

// Provider performs registry lookups by company name. Every lookup outcome,
// including not found and upstream failures, is reported as a Record; the
// error return is reserved for configuration and internal faults.
type Provider interface {
	BasicInfo(ctx context.Context, name string) (Record, error)
	RiskInfo(ctx context.Context, name string) (Record, error)
	IntellectualProperty(ctx context.Context, name string) (Record, error)
	FinancialData(ctx context.Context, name string) (Record, error)
}

// Lookup dispatches op to the matching Provider method.
func Lookup(ctx context.Context, p Provider, op Operation, name string) (Record, error) {
	switch op {
	case OpBasicInfo:
		return p.BasicInfo(ctx, name)
	case OpRiskInfo:
		return p.RiskInfo(ctx, name)
	case OpIntellectualProperty:
		return p.IntellectualProperty(ctx, name)
	case OpFinancialData:
		return p.FinancialData(ctx, name)
	default:
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
}
