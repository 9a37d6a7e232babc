package domain

// FieldName identifies an editable ticket form field.
type FieldName string

const (
	FieldTitle          FieldName = "title"
	FieldDescription    FieldName = "description"
	FieldCategoryID     FieldName = "categoryId"
	FieldSupportService FieldName = "supportServiceId"
	FieldPriority       FieldName = "priority"
	FieldEmail          FieldName = "email"
	FieldFiscalCode     FieldName = "fiscalCode"
	FieldPhoneNumber    FieldName = "phoneNumber"
	FieldAssignedTo     FieldName = "assignedToId"
)

// AllFields lists every form field in presentation order.
var AllFields = []FieldName{
	FieldTitle,
	FieldDescription,
	FieldCategoryID,
	FieldSupportService,
	FieldPriority,
	FieldEmail,
	FieldFiscalCode,
	FieldPhoneNumber,
	FieldAssignedTo,
}

// KnownField reports whether name identifies a form field.
func KnownField(name FieldName) bool {
	for _, f := range AllFields {
		if f == name {
			return true
		}
	}
	return false
}
