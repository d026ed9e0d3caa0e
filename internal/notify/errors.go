package notify

import "fmt"

// AttachmentNotFoundError indicates the report file to attach does not exist.
type AttachmentNotFoundError struct {
	Path string
	Err  error
}

func (e *AttachmentNotFoundError) Error() string {
	return fmt.Sprintf("attachment not found: %s", e.Path)
}

func (e *AttachmentNotFoundError) Unwrap() error { return e.Err }

// InvalidSenderError indicates a malformed sender address.
type InvalidSenderError struct{ Address string }

func (e *InvalidSenderError) Error() string {
	return fmt.Sprintf("invalid sender address: %q", e.Address)
}

// InvalidRecipientError indicates a malformed or missing recipient address.
type InvalidRecipientError struct{ Address string }

func (e *InvalidRecipientError) Error() string {
	if e.Address == "" {
		return "no recipient addresses"
	}
	return fmt.Sprintf("invalid recipient address: %q", e.Address)
}

// DeliveryError wraps any failure while talking to the mail server.
type DeliveryError struct {
	// Stage is the SMTP step that failed: connect, starttls, auth, mail, rcpt, data or quit.
	Stage string
	Host  string
	Err   error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return "delivery failed"
	}
	if e.Host != "" {
		return fmt.Sprintf("smtp %s failed at %s: %v", e.Stage, e.Host, e.Err)
	}
	return fmt.Sprintf("smtp %s failed: %v", e.Stage, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
