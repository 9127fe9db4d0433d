package models

// PIIKind classifies a detected piece of personally identifiable
// information. Structured identifiers are considered more specific than
// the statistical kinds and win when detections overlap.
type PIIKind string

const (
	PIIKindName                    PIIKind = "name"
	PIIKindAddress                 PIIKind = "address"
	PIIKindPolicyNumber            PIIKind = "policy_number"
	PIIKindNationalInsuranceNumber PIIKind = "national_insurance_number"
	PIIKindEmail                   PIIKind = "email"
	PIIKindPhone                   PIIKind = "phone"
	PIIKindOther                   PIIKind = "other"
)

// Specificity ranks kinds for overlap resolution: a higher value wins over
// a lower one when two detections cover the same text.
func (k PIIKind) Specificity() int {
	switch k {
	case PIIKindNationalInsuranceNumber:
		return 6
	case PIIKindPolicyNumber:
		return 5
	case PIIKindEmail:
		return 4
	case PIIKindPhone:
		return 3
	case PIIKindAddress:
		return 2
	case PIIKindName:
		return 1
	default:
		return 0
	}
}

// PIIEntity is one redacted detection. Span addresses the original text;
// ReplacementToken is what appears in the redacted output. The mapping is
// one-way: the original text is never recoverable from the output.
type PIIEntity struct {
	Kind             PIIKind  `json:"kind"`
	Span             CharSpan `json:"span"`
	ReplacementToken string   `json:"replacement_token"`
}
