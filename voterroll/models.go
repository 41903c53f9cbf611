package voterroll

import "github.com/janneta/canvass/voter"

// Row is a line of a voter roll sheet.
type Row struct {
	ID                    string `csv:"id"`
	VoterID               string `csv:"voterId"`
	Name                  string `csv:"name"`
	SerialNumber          string `csv:"serialNumber"`
	BoothNumber           string `csv:"boothNumber"`
	Gender                string `csv:"gender"`
	Age                   string `csv:"age"`
	PollingStationAddress string `csv:"pollingStationAddress"`
	WhatsApp              string `csv:"whatsapp"`
	Phone                 string `csv:"phone"`
}

// Voter returns the voter described by the row.
func (r *Row) Voter() voter.Voter {
	return voter.Voter{
		ID:                    r.ID,
		VoterID:               r.VoterID,
		Name:                  r.Name,
		SerialNumber:          r.SerialNumber,
		BoothNumber:           r.BoothNumber,
		Gender:                r.Gender,
		Age:                   r.Age,
		PollingStationAddress: r.PollingStationAddress,
		WhatsApp:              r.WhatsApp,
		Phone:                 r.Phone,
	}
}
