package enums

// ScheduledQRStatus is derived from is_processed and scheduled_for at query time.
type ScheduledQRStatus string

const (
	ScheduledQRPending   ScheduledQRStatus = "pending"
	ScheduledQROverdue   ScheduledQRStatus = "overdue"
	ScheduledQRProcessed ScheduledQRStatus = "processed"
)

var validScheduledQRStatuses = []ScheduledQRStatus{ScheduledQRPending, ScheduledQROverdue, ScheduledQRProcessed}

func (s ScheduledQRStatus) IsValid() bool { return oneOf(validScheduledQRStatuses, s) }

func ParseScheduledQRStatus(value string) (ScheduledQRStatus, error) {
	return parseOneOf("scheduled qr status", validScheduledQRStatuses, value)
}

// ProcessingStatus is reported by scheduled and rebuy operations per item.
type ProcessingStatus string

const (
	ProcessingProcessed ProcessingStatus = "processed"
	ProcessingSkipped   ProcessingStatus = "skipped"
	ProcessingFailed    ProcessingStatus = "failed"
	ProcessingSent      ProcessingStatus = "sent"
)
