package model

import "time"

// Contact is a person or company known to the rental service, usually a
// tenant. Password holds a bcrypt hash once set; rows imported from the
// previous system may still carry a legacy pbkdf2 hash or plaintext until
// the owner logs in again.
type Contact struct {
	ID                     uint64     `db:"id"`                       // contacts.id
	Name                   string     `db:"name"`                     // contacts.name
	Email                  string     `db:"email"`                    // contacts.email
	Phone                  string     `db:"phone"`                    // contacts.phone
	Mobile                 string     `db:"mobile"`                   // contacts.mobile
	Street                 string     `db:"street"`                   // contacts.street
	City                   string     `db:"city"`                     // contacts.city
	CountryCode            string     `db:"country_code"`             // contacts.country_code (ISO alpha-2)
	Function               string     `db:"job_function"`             // contacts.job_function
	ParentID               *uint64    `db:"parent_id"`                // contacts.parent_id (company)
	Password               string     `db:"password"`                 // contacts.password
	IsVerified             bool       `db:"is_verified"`              // contacts.is_verified
	OTPCode                string     `db:"otp_code"`                 // contacts.otp_code
	OTPExpiresAt           *time.Time `db:"otp_expires_at"`           // contacts.otp_expires_at
	IsTenant               bool       `db:"is_tenant"`                // contacts.is_tenant
	WhatsappNumber         string     `db:"whatsapp_number"`          // contacts.whatsapp_number
	PreferredPaymentMethod string     `db:"preferred_payment_method"` // contacts.preferred_payment_method
	CreatedAt              time.Time  `db:"created_at"`               // contacts.created_at
	UpdatedAt              time.Time  `db:"updated_at"`               // contacts.updated_at
}

// HasCredential reports whether a password of any form has been stored.
func (c Contact) HasCredential() bool { return c.Password != "" }

// SMSNumber returns the number reminders are texted to: mobile first.
func (c Contact) SMSNumber() string {
	if c.Mobile != "" {
		return c.Mobile
	}
	return c.Phone
}
