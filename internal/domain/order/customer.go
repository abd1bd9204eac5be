package order

import (
	"errors"
	"net/mail"
	"strings"
)

// Customer is the shipping and contact information captured at checkout.
type Customer struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Notes      string `json:"notes,omitempty"`
}

// FieldError names the offending customer field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

var errPhone = errors.New("phone must be an Indonesian mobile number")

// NormalizePhone converts local formats (08..., +62..., 62...) to 62-prefixed digits.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case strings.HasPrefix(d, "62"):
	case strings.HasPrefix(d, "0"):
		d = "62" + d[1:]
	case strings.HasPrefix(d, "8"):
		d = "62" + d
	default:
		return "", errPhone
	}
	if len(d) < 10 || len(d) > 15 || d[2] != '8' {
		return "", errPhone
	}
	return d, nil
}

// Normalize trims every field and canonicalizes the phone number.
func (c Customer) Normalize() (Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	c.Address = strings.TrimSpace(c.Address)
	c.City = strings.TrimSpace(c.City)
	c.PostalCode = strings.TrimSpace(c.PostalCode)
	c.Notes = strings.TrimSpace(c.Notes)

	switch {
	case c.Name == "":
		return c, &FieldError{Field: "name", Message: "is required"}
	case len(c.Name) > 120:
		return c, &FieldError{Field: "name", Message: "is too long"}
	case c.Address == "":
		return c, &FieldError{Field: "address", Message: "is required"}
	case c.City == "":
		return c, &FieldError{Field: "city", Message: "is required"}
	case len(c.Notes) > 500:
		return c, &FieldError{Field: "notes", Message: "is too long"}
	}

	if c.PostalCode != "" && !isDigits(c.PostalCode, 5) {
		return c, &FieldError{Field: "postal_code", Message: "must be 5 digits"}
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return c, &FieldError{Field: "email", Message: "is invalid"}
		}
	}

	phone, err := NormalizePhone(c.Phone)
	if err != nil {
		return c, &FieldError{Field: "phone", Message: err.Error()}
	}
	c.Phone = phone
	return c, nil
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
