package constants

// FieldName identifies one of the tracked fields of a budget application screen.
type FieldName string

const (
	FieldYear                   FieldName = "year"
	FieldConcept                FieldName = "concept"
	FieldConceptDescription     FieldName = "concept_description"
	FieldSaldoInicialDeudor     FieldName = "saldo_inicial_deudor"
	FieldSaldoInicialAcreedor   FieldName = "saldo_inicial_acreedor"
	FieldTotalHaber             FieldName = "total_haber"
	FieldTotalDebe              FieldName = "total_debe"
	FieldPropuestasMP           FieldName = "propuestas_mp"
	FieldSaldoPendienteAcreedor FieldName = "saldo_pendiente_acreedor"
	FieldSaldoPendienteDeudor   FieldName = "saldo_pendiente_deudor"
)

// FieldKind is the value type a field resolves to.
type FieldKind int

const (
	KindInteger FieldKind = iota
	KindIdentifier
	KindText
	KindDecimal
)

// allFields is ordered as the columns of the records table.
var allFields = []FieldName{
	FieldYear,
	FieldConcept,
	FieldConceptDescription,
	FieldSaldoInicialDeudor,
	FieldSaldoInicialAcreedor,
	FieldTotalHaber,
	FieldTotalDebe,
	FieldPropuestasMP,
	FieldSaldoPendienteAcreedor,
	FieldSaldoPendienteDeudor,
}

// AllFields returns the tracked fields in column order.
func AllFields() []FieldName {
	out := make([]FieldName, len(allFields))
	copy(out, allFields)
	return out
}

// AmountFields returns the decimal fields in column order.
func AmountFields() []FieldName {
	return AllFields()[3:]
}

// Kind returns the value type of the field.
func (f FieldName) Kind() FieldKind {
	switch f {
	case FieldYear:
		return KindInteger
	case FieldConcept:
		return KindIdentifier
	case FieldConceptDescription:
		return KindText
	default:
		return KindDecimal
	}
}

// Volatile reports whether a zero value for the field cannot be told apart from an OCR miss.
// Movement, proposal and pending balances are volatile; initial balances are not.
func (f FieldName) Volatile() bool {
	switch f {
	case FieldTotalHaber, FieldTotalDebe, FieldPropuestasMP,
		FieldSaldoPendienteAcreedor, FieldSaldoPendienteDeudor:
		return true
	}
	return false
}

// Label is the human-readable column header used in exports.
func (f FieldName) Label() string {
	switch f {
	case FieldYear:
		return "Año"
	case FieldConcept:
		return "Concepto"
	case FieldConceptDescription:
		return "Descripción"
	case FieldSaldoInicialDeudor:
		return "Saldo Inicial Deudor"
	case FieldSaldoInicialAcreedor:
		return "Saldo Inicial Acreedor"
	case FieldTotalHaber:
		return "Total Haber"
	case FieldTotalDebe:
		return "Total Debe"
	case FieldPropuestasMP:
		return "Propuestas de M/P"
	case FieldSaldoPendienteAcreedor:
		return "Saldo Pendiente Acreedor"
	case FieldSaldoPendienteDeudor:
		return "Saldo Pendiente Deudor"
	}
	return string(f)
}
