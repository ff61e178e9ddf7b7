// Package lifecycle holds the component status state machine.
//
// Two fields move independently: Status tracks the physical installation state and
// QCStatus tracks inspection results. A failed inspection condemns the component, so
// QCFailed always implies StatusNeedsReplacement.
package lifecycle

import (
	"strings"

	"github.com/bitfantasy/railtrace/internal/railtrace/apperr"
)

// Status 安装/运行状态
type Status string

const (
	StatusManufactured     Status = "Manufactured"
	StatusInstalled        Status = "Installed"
	StatusNeedsReplacement Status = "NeedsReplacement"
)

// QCStatus 质检状态
type QCStatus string

const (
	QCPending QCStatus = "Pending"
	QCPassed  QCStatus = "Passed"
	QCFailed  QCStatus = "Failed"
)

// Outcome 检验结果
type Outcome string

const (
	OutcomeOK       Outcome = "OK"
	OutcomeDefected Outcome = "DEFECTED"
)

var statusEdges = map[Status][]Status{
	StatusManufactured:     {StatusInstalled, StatusNeedsReplacement},
	StatusInstalled:        {StatusInstalled, StatusNeedsReplacement},
	StatusNeedsReplacement: {StatusNeedsReplacement},
}

var qcEdges = map[QCStatus][]QCStatus{
	QCPending: {QCPassed, QCFailed},
	QCPassed:  {QCPassed, QCFailed},
	QCFailed:  {QCFailed},
}

// CanMoveStatus reports whether from → to is an edge of the status graph.
func CanMoveStatus(from, to Status) bool {
	for _, s := range statusEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanMoveQC reports whether from → to is an edge of the qc graph.
func CanMoveQC(from, to QCStatus) bool {
	for _, s := range qcEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// QCStatusesBefore returns the qc states from which to is reachable, i.e. the
// states an update may still overwrite.
func QCStatusesBefore(to QCStatus) []QCStatus {
	var out []QCStatus
	for _, from := range []QCStatus{QCPending, QCPassed, QCFailed} {
		if CanMoveQC(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// CheckInstall validates an install against the current state.
func CheckInstall(status Status, qc QCStatus) error {
	if status == StatusNeedsReplacement || qc == QCFailed {
		return apperr.New(apperr.InvalidStateTransition, "component is condemned and cannot be installed")
	}
	if !CanMoveStatus(status, StatusInstalled) {
		return apperr.New(apperr.InvalidStateTransition, "cannot install component in status %s", status)
	}
	return nil
}

// CheckMaintenance validates maintenance against the current state.
func CheckMaintenance(status Status) error {
	if status != StatusInstalled {
		return apperr.New(apperr.InvalidStateTransition, "maintenance requires an installed component, got %s", status)
	}
	return nil
}

// ParseOutcome accepts outcomes case-insensitively.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToUpper(strings.TrimSpace(s))) {
	case OutcomeOK:
		return OutcomeOK, nil
	case OutcomeDefected:
		return OutcomeDefected, nil
	}
	return "", apperr.New(apperr.InvalidArgument, "outcome must be OK or DEFECTED, got %q", s)
}

// InspectionEffect is the state change an inspection outcome asks for.
type InspectionEffect struct {
	QCStatus QCStatus
	// Status is empty when the outcome leaves the installation state alone.
	Status Status
	// AllowedQC restricts which current qc states may be overwritten.
	AllowedQC []QCStatus
}

// EffectOf maps an outcome onto its effect. DEFECTED may overwrite any qc state,
// OK never overwrites Failed, so a defect wins regardless of arrival order.
func EffectOf(o Outcome) InspectionEffect {
	if o == OutcomeDefected {
		return InspectionEffect{
			QCStatus:  QCFailed,
			Status:    StatusNeedsReplacement,
			AllowedQC: QCStatusesBefore(QCFailed),
		}
	}
	return InspectionEffect{
		QCStatus:  QCPassed,
		AllowedQC: QCStatusesBefore(QCPassed),
	}
}
