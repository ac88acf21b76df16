package util

import (
	"net/mail"
	"regexp"
	"strings"
)

var (
	employeeIDPattern = regexp.MustCompile(`^(CADD|LW|DZ|SY)-\d{3}$`)
	emailPattern      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// IdentifierKind tells how a login identifier should be looked up.
type IdentifierKind int

const (
	IdentifierInvalid IdentifierKind = iota
	IdentifierEmail
	IdentifierEmployeeID
)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsEmail(value string) bool {
	if !emailPattern.MatchString(value) {
		return false
	}
	_, err := mail.ParseAddress(value)
	return err == nil
}

func IsEmployeeID(value string) bool {
	return employeeIDPattern.MatchString(value)
}

// ClassifyIdentifier accepts either an email address or an employee id.
func ClassifyIdentifier(identifier string) (IdentifierKind, string) {
	id := strings.TrimSpace(identifier)
	if IsEmployeeID(strings.ToUpper(id)) {
		return IdentifierEmployeeID, strings.ToUpper(id)
	}
	if email := NormalizeEmail(id); IsEmail(email) {
		return IdentifierEmail, email
	}
	return IdentifierInvalid, ""
}

func ValidateName(name string) error {
	n := len([]rune(strings.TrimSpace(name)))
	if n < 2 || n > 50 {
		return Validation("name must be between 2 and 50 characters")
	}
	return nil
}
