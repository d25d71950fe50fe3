package models

import "errors"

type JobStatus string

const (
	JobStatusPending   JobStatus = "Pending"
	JobStatusRunning   JobStatus = "Running"
	JobStatusCompleted JobStatus = "Completed"
	JobStatusFailed    JobStatus = "Failed"
)

// IsTerminal reports whether the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo encodes the one-directional job lifecycle:
// Pending -> Running -> {Completed | Failed}, plus Pending -> Failed for
// dispatch-time rejections.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

type OutputFormat string

const (
	OutputFormatPDF  OutputFormat = "PDF"
	OutputFormatCSV  OutputFormat = "CSV"
	OutputFormatXLSX OutputFormat = "XLSX"
)

func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "PDF", "pdf":
		return OutputFormatPDF, nil
	case "CSV", "csv":
		return OutputFormatCSV, nil
	case "XLSX", "xlsx":
		return OutputFormatXLSX, nil
	default:
		return "", errors.New("invalid output format")
	}
}

func (f OutputFormat) ContentType() string {
	switch f {
	case OutputFormatPDF:
		return "application/pdf"
	case OutputFormatCSV:
		return "text/csv"
	case OutputFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

func (f OutputFormat) Extension() string {
	switch f {
	case OutputFormatPDF:
		return ".pdf"
	case OutputFormatCSV:
		return ".csv"
	case OutputFormatXLSX:
		return ".xlsx"
	default:
		return ""
	}
}
