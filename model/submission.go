package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Status is the review state of a submission
type Status string

// Status constants
const (
	StatusReceived       Status = "received"
	StatusReviewing      Status = "reviewing"
	StatusProcessing     Status = "processing"
	StatusCompleted      Status = "completed"
	StatusActionRequired Status = "action_required"
)

// Statuses lists every status in dashboard order
var Statuses = []Status{
	StatusReceived,
	StatusReviewing,
	StatusProcessing,
	StatusCompleted,
	StatusActionRequired,
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// MetadataFileName is the reserved name of the metadata artifact in a container
const MetadataFileName = "metadata.json"

// StoredFile is one uploaded document belonging to a submission
type StoredFile struct {
	FieldName    string `json:"fieldName"`
	FileName     string `json:"fileName"` // name under which the bytes are stored
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	Type         string `json:"type"` // extension, e.g. ".pdf"
	MimeType     string `json:"mimeType,omitempty"`
}

// Category returns the document category of the file's form field
func (f StoredFile) Category() Category {
	return ParseCategory(f.FieldName)
}

// Metadata is the JSON record persisted once per submission container
type Metadata struct {
	FirstName       string       `json:"firstName"`
	LastName        string       `json:"lastName"`
	Email           string       `json:"email"`
	Phone           string       `json:"phone"`
	TaxID           string       `json:"taxId"`
	Address         string       `json:"address"`
	FilingStatus    string       `json:"filingStatus"`
	TaxYear         string       `json:"taxYear"`
	ServiceType     string       `json:"serviceType"`
	FirstTimeFiling string       `json:"firstTimeFiling,omitempty"`
	AdditionalInfo  string       `json:"additionalInfo"`
	SubmittedAt     string       `json:"submittedAt"`
	Status          Status       `json:"status"`
	FilesCount      int          `json:"filesCount"`
	Files           []StoredFile `json:"files"`
}

// Submission is the admin view of one container
type Submission struct {
	ID        string `json:"id"`
	Folder    string `json:"folder"`
	Timestamp string `json:"timestamp"`
	Metadata
}

// Time returns the creation time encoded in the container name
func (s *Submission) Time() time.Time {
	ms, err := strconv.ParseInt(s.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

var nameSeparators = regexp.MustCompile(`[\s/\\]+`)

// ContainerName derives the container identity {millis}_{firstName}_{lastName}
func ContainerName(at time.Time, firstName, lastName string) string {
	return fmt.Sprintf("%d_%s_%s", at.UnixMilli(), cleanNamePart(firstName), cleanNamePart(lastName))
}

func cleanNamePart(s string) string {
	s = nameSeparators.ReplaceAllString(strings.TrimSpace(s), "_")
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// ParseContainerName splits a container name into its timestamp and names.
// ok is false when the name does not start with a millisecond timestamp.
func ParseContainerName(name string) (millis int64, firstName, lastName string, ok bool) {
	parts := strings.Split(name, "_")
	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", "", false
	}
	if len(parts) > 1 {
		firstName = parts[1]
	}
	if len(parts) > 2 {
		lastName = strings.Join(parts[2:], "_")
	}
	return millis, firstName, lastName, true
}
