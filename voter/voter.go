package voter

import (
	"strings"

	"github.com/janneta/canvass/docstore"
)

// Voter is a voter roll entry as read from the voters collection.
type Voter struct {
	ID                    string `json:"id"`
	VoterID               string `json:"voterId"`
	Name                  string `json:"name"`
	SerialNumber          string `json:"serialNumber"`
	BoothNumber           string `json:"boothNumber"`
	Gender                string `json:"gender"`
	Age                   string `json:"age"`
	PollingStationAddress string `json:"pollingStationAddress"`
	WhatsApp              string `json:"whatsapp,omitempty"`
	Phone                 string `json:"phone,omitempty"`
}

// Key returns the document id of the voter: ID, or VoterID when ID is
// empty.
func (v Voter) Key() string {
	if id := strings.TrimSpace(v.ID); id != "" {
		return id
	}
	return strings.TrimSpace(v.VoterID)
}

// Document returns the non-empty fields of v as a document.
func (v Voter) Document() docstore.Document {
	doc := docstore.Document{}
	set := func(k, val string) {
		if val != "" {
			doc[k] = val
		}
	}
	set("id", v.ID)
	set("voterId", v.VoterID)
	set("name", v.Name)
	set("serialNumber", v.SerialNumber)
	set("boothNumber", v.BoothNumber)
	set("gender", v.Gender)
	set("age", v.Age)
	set("pollingStationAddress", v.PollingStationAddress)
	set("whatsapp", v.WhatsApp)
	set("phone", v.Phone)
	return doc
}

// FromDocument reads a voter out of a stored document.
func FromDocument(doc docstore.Document) Voter {
	return Voter{
		ID:                    doc.String("id"),
		VoterID:               doc.String("voterId"),
		Name:                  doc.String("name"),
		SerialNumber:          doc.String("serialNumber"),
		BoothNumber:           doc.String("boothNumber"),
		Gender:                doc.String("gender"),
		Age:                   doc.String("age"),
		PollingStationAddress: doc.String("pollingStationAddress"),
		WhatsApp:              doc.String("whatsapp"),
		Phone:                 doc.String("phone"),
	}
}

// Member is a voter added to a family group.
type Member struct {
	VoterID               string `json:"voterId"`
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	SerialNumber          string `json:"serialNumber"`
	Gender                string `json:"gender"`
	Age                   string `json:"age"`
	BoothNumber           string `json:"boothNumber"`
	PollingStationAddress string `json:"pollingStationAddress"`
	AddedAt               int64  `json:"addedAt"` // Unix millis
}

// NewMember copies the family fields of v.
func NewMember(v Voter) Member {
	return Member{
		VoterID:               v.VoterID,
		ID:                    v.ID,
		Name:                  v.Name,
		SerialNumber:          v.SerialNumber,
		Gender:                v.Gender,
		Age:                   v.Age,
		BoothNumber:           v.BoothNumber,
		PollingStationAddress: v.PollingStationAddress,
	}
}

// Voter returns the member as a voter record.
func (m Member) Voter() Voter {
	return Voter{
		ID:                    m.ID,
		VoterID:               m.VoterID,
		Name:                  m.Name,
		SerialNumber:          m.SerialNumber,
		BoothNumber:           m.BoothNumber,
		Gender:                m.Gender,
		Age:                   m.Age,
		PollingStationAddress: m.PollingStationAddress,
	}
}

// Same reports whether m and o refer to the same voter, by voter id or
// document id.
func (m Member) Same(o Member) bool {
	if m.VoterID != "" && m.VoterID == o.VoterID {
		return true
	}
	return m.ID != "" && m.ID == o.ID
}

func (m Member) matches(id string) bool {
	return id != "" && (m.VoterID == id || m.ID == id)
}

func (m Member) document() docstore.Document {
	return docstore.Document{
		"voterId":               m.VoterID,
		"id":                    m.ID,
		"name":                  m.Name,
		"serialNumber":          m.SerialNumber,
		"gender":                m.Gender,
		"age":                   m.Age,
		"boothNumber":           m.BoothNumber,
		"pollingStationAddress": m.PollingStationAddress,
		"addedAt":               m.AddedAt,
	}
}

func memberFromDocument(doc docstore.Document) Member {
	return Member{
		VoterID:               doc.String("voterId"),
		ID:                    doc.String("id"),
		Name:                  doc.String("name"),
		SerialNumber:          doc.String("serialNumber"),
		Gender:                doc.String("gender"),
		Age:                   doc.String("age"),
		BoothNumber:           doc.String("boothNumber"),
		PollingStationAddress: doc.String("pollingStationAddress"),
		AddedAt:               doc.Int64("addedAt"),
	}
}
