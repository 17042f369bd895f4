package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/sical-tracker/constants"
)

// Record is one extracted budget application snapshot for data transfer between layers.
// Every field is optional; nil means the field was not recognized.
type Record struct {
	ID                     int64            `json:"id,omitempty"`
	Timestamp              time.Time        `json:"timestamp"`
	ImageFile              string           `json:"image_file"`
	Year                   *int             `json:"year"`
	Concept                *string          `json:"concept"`
	ConceptDescription     *string          `json:"concept_description"`
	SaldoInicialDeudor     *decimal.Decimal `json:"saldo_inicial_deudor"`
	SaldoInicialAcreedor   *decimal.Decimal `json:"saldo_inicial_acreedor"`
	TotalHaber             *decimal.Decimal `json:"total_haber"`
	TotalDebe              *decimal.Decimal `json:"total_debe"`
	PropuestasMP           *decimal.Decimal `json:"propuestas_mp"`
	SaldoPendienteAcreedor *decimal.Decimal `json:"saldo_pendiente_acreedor"`
	SaldoPendienteDeudor   *decimal.Decimal `json:"saldo_pendiente_deudor"`
}

// Amount returns a pointer to the storage of a decimal field, or nil for non-decimal fields.
func (r *Record) Amount(f constants.FieldName) **decimal.Decimal {
	switch f {
	case constants.FieldSaldoInicialDeudor:
		return &r.SaldoInicialDeudor
	case constants.FieldSaldoInicialAcreedor:
		return &r.SaldoInicialAcreedor
	case constants.FieldTotalHaber:
		return &r.TotalHaber
	case constants.FieldTotalDebe:
		return &r.TotalDebe
	case constants.FieldPropuestasMP:
		return &r.PropuestasMP
	case constants.FieldSaldoPendienteAcreedor:
		return &r.SaldoPendienteAcreedor
	case constants.FieldSaldoPendienteDeudor:
		return &r.SaldoPendienteDeudor
	}
	return nil
}

// Has reports whether the field holds a value.
func (r *Record) Has(f constants.FieldName) bool {
	switch f {
	case constants.FieldYear:
		return r.Year != nil
	case constants.FieldConcept:
		return r.Concept != nil
	case constants.FieldConceptDescription:
		return r.ConceptDescription != nil
	}
	if p := r.Amount(f); p != nil {
		return *p != nil
	}
	return false
}

// Found lists the fields that hold a value, in column order.
func (r *Record) Found() []constants.FieldName {
	var out []constants.FieldName
	for _, f := range constants.AllFields() {
		if r.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Missing lists the fields without a value, in column order.
func (r *Record) Missing() []constants.FieldName {
	var out []constants.FieldName
	for _, f := range constants.AllFields() {
		if !r.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Empty reports whether no field was recognized.
func (r *Record) Empty() bool {
	return len(r.Found()) == 0
}

// ConceptSummary is one distinct concept tracked in the ledger.
type ConceptSummary struct {
	Concept     string  `json:"concept"`
	Description *string `json:"description,omitempty"`
	Records     int     `json:"records"`
}
