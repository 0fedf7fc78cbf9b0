package model

// SemanticLabel is an internal classification tag, independent of the Gmail
// label identifiers it may be mapped to.
type SemanticLabel string

const (
	LabelClassRegistration SemanticLabel = "class_registration"
	LabelAdministrative    SemanticLabel = "administrative"
	LabelDepartment        SemanticLabel = "department"
	LabelInquiry           SemanticLabel = "inquiry"
	LabelGraduation        SemanticLabel = "graduation"
	LabelAcademic          SemanticLabel = "academic"
	LabelOther             SemanticLabel = "other"
)

// AllSemanticLabels returns the closed label set in a stable order.
func AllSemanticLabels() []SemanticLabel {
	return []SemanticLabel{
		LabelClassRegistration,
		LabelAdministrative,
		LabelDepartment,
		LabelInquiry,
		LabelGraduation,
		LabelAcademic,
		LabelOther,
	}
}

func (l SemanticLabel) Valid() bool {
	switch l {
	case LabelClassRegistration, LabelAdministrative, LabelDepartment,
		LabelInquiry, LabelGraduation, LabelAcademic, LabelOther:
		return true
	}
	return false
}

// LabelMapping maps semantic labels to Gmail label ids. A missing key means
// the label is not mapped yet. Updates are full-replace, never merge.
type LabelMapping map[SemanticLabel]string

// ProviderLabel is a user-visible Gmail label.
type ProviderLabel struct {
	Name string `json:"label"`
	ID   string `json:"value"`
}
