package domain

import (
	"fmt"
	"math"
	"strings"
)

const (
	LabelEmail    = "email"
	LabelNotEmail = "not-email"
)

// ClassificationResult is the classifier's answer. It is never persisted.
type ClassificationResult struct {
	Success    bool    `json:"success"`
	Label      string  `json:"predicted_class"`
	Confidence float64 `json:"confidence"`
}

type WorkflowState string

const (
	StateIdle        WorkflowState = "idle"
	StateFetching    WorkflowState = "fetching"
	StateClassifying WorkflowState = "classifying"
	StateTagging     WorkflowState = "tagging"
	StateDone        WorkflowState = "done"
	StateFailed      WorkflowState = "failed"
)

// Active reports whether a run in this state blocks a second run.
func (s WorkflowState) Active() bool {
	return s == StateFetching || s == StateClassifying || s == StateTagging
}

// AutoTagPolicy decides when a classification adds a tag to the document.
type AutoTagPolicy struct {
	Threshold  float64 `yaml:"auto_tag_threshold" json:"auto_tag_threshold"`
	Label      string  `yaml:"auto_tag_label" json:"auto_tag_label"`
	AppliedTag string  `yaml:"applied_tag_text" json:"applied_tag_text"`
}

func DefaultAutoTagPolicy() AutoTagPolicy {
	return AutoTagPolicy{
		Threshold:  0.8,
		Label:      LabelEmail,
		AppliedTag: "Email",
	}
}

func (p AutoTagPolicy) Validate() error {
	if math.IsNaN(p.Threshold) || p.Threshold < 0 || p.Threshold > 1 {
		return WrapError(ErrValidation, "auto tag policy", fmt.Errorf("threshold %v outside [0,1]", p.Threshold))
	}
	if strings.TrimSpace(p.Label) == "" {
		return WrapError(ErrValidation, "auto tag policy", fmt.Errorf("label is required"))
	}
	if strings.TrimSpace(p.AppliedTag) == "" {
		return WrapError(ErrValidation, "auto tag policy", fmt.Errorf("applied tag text is required"))
	}
	return nil
}

// Matches is true only for a successful result with the policy label and a
// confidence strictly above the threshold.
func (p AutoTagPolicy) Matches(result ClassificationResult) bool {
	return result.Success && result.Label == p.Label && result.Confidence > p.Threshold
}

// ClassificationOutcome reports how a workflow run ended. On Failed,
// FailedStage names the stage that broke.
type ClassificationOutcome struct {
	DocumentID  string                `json:"document_id"`
	State       WorkflowState         `json:"state"`
	FailedStage WorkflowState         `json:"failed_stage,omitempty"`
	Result      *ClassificationResult `json:"result,omitempty"`
	Tagged      bool                  `json:"tagged"`
	AppliedTag  string                `json:"applied_tag,omitempty"`
	TagWarning  string                `json:"tag_warning,omitempty"`
	Message     string                `json:"message"`
	Document    *Document             `json:"document,omitempty"`
}

// Summary builds the user-facing sentence for a finished classification.
func (o ClassificationOutcome) Summary(policy AutoTagPolicy) string {
	if o.Result == nil {
		return ""
	}
	label := strings.ToUpper(o.Result.Label)
	if o.Result.Label != policy.Label {
		label = "NOT " + strings.ToUpper(policy.Label)
	}
	pct := int(math.Round(o.Result.Confidence * 100))
	switch {
	case o.Tagged:
		return fmt.Sprintf("Document classified as %s (%d%% confidence) and tagged automatically.", label, pct)
	case o.TagWarning != "":
		return fmt.Sprintf("Classification: %s (%d%% confidence) - error adding tag.", label, pct)
	default:
		return fmt.Sprintf("Document classified as %s (%d%% confidence).", label, pct)
	}
}
