package types

import "encoding/xml"

// Notification is a user-facing record derived from one release feed entry
type Notification struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Date    string `json:"date"`
	Content string `json:"content"`
}

// User is the account registered with the connect server. Its XML form is
// sent as-is in the registration request.
type User struct {
	XMLName      xml.Name `xml:"user" json:"-"`
	ID           int      `xml:"id,omitempty" json:"id,omitempty"`
	Username     string   `xml:"username" json:"username"`
	Email        string   `xml:"email,omitempty" json:"email,omitempty"`
	FirstName    string   `xml:"firstName,omitempty" json:"first_name,omitempty"`
	LastName     string   `xml:"lastName,omitempty" json:"last_name,omitempty"`
	Organization string   `xml:"organization,omitempty" json:"organization,omitempty"`
	Industry     string   `xml:"industry,omitempty" json:"industry,omitempty"`
	PhoneNumber  string   `xml:"phoneNumber,omitempty" json:"phone_number,omitempty"`
	Description  string   `xml:"description,omitempty" json:"description,omitempty"`
}

// MarshalUser returns the XML document for a user
func MarshalUser(u User) (string, error) {
	data, err := xml.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
