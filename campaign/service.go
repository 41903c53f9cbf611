// Package campaign wires voters, receipts, the printer and sharing into
// the use-cases the field app calls, and serves them over HTTP.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/janneta/canvass/candidate"
	"github.com/janneta/canvass/escpos"
	"github.com/janneta/canvass/filestorage"
	"github.com/janneta/canvass/pendingwrites"
	"github.com/janneta/canvass/printer"
	"github.com/janneta/canvass/receipt"
	"github.com/janneta/canvass/share"
	"github.com/janneta/canvass/voter"
	"go.uber.org/zap"
)

var (
	// ErrNoFamily is returned when printing a family receipt for a
	// voter without family members.
	ErrNoFamily = errors.New("no family members to print")

	// ErrPhoneRequired is returned when an SMS is requested for a voter
	// without a phone number on record and none was supplied.
	ErrPhoneRequired = errors.New("phone number required")

	// ErrPrintFailed wraps every printer side failure.
	ErrPrintFailed = errors.New("printing failed")
)

// Translator renders printed fields in Marathi.
type Translator interface {
	Voter(ctx context.Context, v voter.Voter) voter.Voter
	Family(ctx context.Context, members []voter.Member) ([]voter.Member, error)
}

// Printer runs print jobs on the shared printer connection.
type Printer interface {
	Run(ctx context.Context, build func(ctx context.Context) ([]byte, error)) error
	State() printer.State
}

// Deps are the collaborators of a Service.
type Deps struct {
	Voters     *voter.Service
	Queue      *pendingwrites.Queue
	Candidate  *candidate.Store
	Printer    Printer
	Translator Translator
	Renderer   receipt.Renderer
	Storage    filestorage.FileStorage
	Bucket     string
	Logger     *zap.SugaredLogger
}

// Service implements the canvassing use-cases.
type Service struct {
	Deps
	now func() time.Time
}

// New returns a service over d.
func New(d Deps) *Service {
	return &Service{Deps: d, now: time.Now}
}

// Link is an outbound share link.
type Link struct {
	URL      string `json:"url"`
	Number   string `json:"number"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl,omitempty"`
	// Queued is set when the number the link goes to only reached the
	// pending queue.
	Queued bool `json:"queued,omitempty"`
}

// resolve returns the freshest record of v. A request carrying only an
// id must name a known voter.
func (s *Service) resolve(ctx context.Context, v voter.Voter) (voter.Voter, error) {
	if v.Key() == "" {
		return v, voter.ErrMissingID
	}
	if v.Name == "" {
		return s.Voters.Get(ctx, v.Key())
	}
	return s.Voters.Lookup(ctx, v)
}

func (s *Service) family(ctx context.Context, v voter.Voter, family bool) ([]voter.Member, error) {
	if !family {
		return nil, nil
	}
	return s.Voters.Family(ctx, v.Key())
}

// Print prints the receipt of v, or of v's family group when family is
// set. The printer connection is dropped after any failure.
func (s *Service) Print(ctx context.Context, v voter.Voter, family bool) error {
	v, err := s.resolve(ctx, v)
	if err != nil {
		return err
	}
	members, err := s.family(ctx, v, family)
	if err != nil {
		return err
	}
	if family && len(members) == 0 {
		return ErrNoFamily
	}
	err = s.Printer.Run(ctx, func(ctx context.Context) ([]byte, error) {
		data := receipt.Data{Candidate: s.Candidate.Get(), Voter: s.Translator.Voter(ctx, v)}
		if family {
			translated, err := s.Translator.Family(ctx, members)
			if err != nil {
				return nil, err
			}
			data.Family = translated
		}
		html, err := receipt.HTML(receipt.Print, data)
		if err != nil {
			return nil, err
		}
		img, err := s.Renderer.Render(ctx, html, receipt.Print.CaptureWidth())
		if err != nil {
			return nil, err
		}
		return escpos.EncodeImage(img)
	})
	if err != nil {
		if errors.Is(err, printer.ErrBusy) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPrintFailed, err)
	}
	s.Logger.Infow("receipt printed", "voter", v.Key(), "family", family, "members", len(members))
	return nil
}

// Share builds the WhatsApp link for v's receipt. The receipt image is
// uploaded and linked in the text; when that fails the link carries
// the text alone. Without a known number it returns
// voter.ErrNoWhatsApp and the caller has to ask for one. A family share
// without members returns ErrNoFamily.
func (s *Service) Share(ctx context.Context, v voter.Voter, family bool) (Link, error) {
	v, err := s.resolve(ctx, v)
	if err != nil {
		return Link{}, err
	}
	members, err := s.family(ctx, v, family)
	if err != nil {
		return Link{}, err
	}
	if family && len(members) == 0 {
		return Link{}, ErrNoFamily
	}
	number, err := s.Voters.ResolveWhatsApp(ctx, v)
	if err != nil {
		return Link{}, err
	}
	text := share.Message(s.Candidate.Get(), v, members)
	imageURL, err := s.uploadReceipt(ctx, v, members)
	if err != nil {
		s.Logger.Warnw("receipt image unavailable, sharing text only", "voter", v.Key(), "error", err)
	}
	text = share.WithImage(text, imageURL)
	url, err := share.WhatsAppURL(number, text)
	if err != nil {
		return Link{}, err
	}
	return Link{URL: url, Number: number, Text: text, ImageURL: imageURL}, nil
}

func (s *Service) uploadReceipt(ctx context.Context, v voter.Voter, members []voter.Member) (string, error) {
	html, err := receipt.HTML(receipt.Share, receipt.Data{Candidate: s.Candidate.Get(), Voter: v, Family: members})
	if err != nil {
		return "", err
	}
	img, err := s.Renderer.Render(ctx, html, receipt.Share.CaptureWidth())
	if err != nil {
		return "", err
	}
	b, err := receipt.EncodePNG(img)
	if err != nil {
		return "", err
	}
	return s.Storage.Upload(ctx, b, s.Bucket, filestorage.ReceiptName(s.now()))
}

// ShareWithNumber saves number as v's WhatsApp number and returns the
// text link to it. For a family share the number goes on the head's
// survey, otherwise on the voter. A family share needs at least one
// member.
func (s *Service) ShareWithNumber(ctx context.Context, v voter.Voter, family bool, number string) (Link, error) {
	if !share.ValidPhone(number) {
		return Link{}, share.ErrInvalidPhone
	}
	number = share.CleanPhone(number)
	v, err := s.resolve(ctx, v)
	if err != nil {
		return Link{}, err
	}
	members, err := s.family(ctx, v, family)
	if err != nil {
		return Link{}, err
	}
	if family && len(members) == 0 {
		return Link{}, ErrNoFamily
	}
	saved := true
	if family {
		saved, err = s.Voters.SaveSurveyWhatsApp(ctx, v.Key(), number)
	} else {
		err = s.Voters.SaveContact(ctx, v.Key(), voter.WhatsApp, number)
	}
	if err != nil {
		return Link{}, err
	}
	if !saved {
		s.Logger.Warnw("whatsapp number queued, not saved yet", "voter", v.Key())
	}
	v.WhatsApp = number
	text := share.Message(s.Candidate.Get(), v, members)
	url, err := share.WhatsAppURL(number, text)
	if err != nil {
		return Link{}, err
	}
	return Link{URL: url, Number: number, Text: text, Queued: !saved}, nil
}

// SMS returns the sms: link for v's receipt text. The phone on record
// is used unless number is given, in which case it is validated and
// saved first.
func (s *Service) SMS(ctx context.Context, v voter.Voter, number string) (Link, error) {
	v, err := s.resolve(ctx, v)
	if err != nil {
		return Link{}, err
	}
	if number == "" {
		if len(v.Phone) != 10 || !share.ValidPhone(v.Phone) {
			return Link{}, ErrPhoneRequired
		}
		number = v.Phone
	} else {
		if !share.ValidPhone(number) {
			return Link{}, share.ErrInvalidPhone
		}
		number = share.CleanPhone(number)
		if err := s.Voters.SaveContact(ctx, v.Key(), voter.Phone, number); err != nil {
			return Link{}, err
		}
		v.Phone = number
	}
	text := share.Message(s.Candidate.Get(), v, nil)
	url, err := share.SMSURL(number, text)
	if err != nil {
		return Link{}, err
	}
	return Link{URL: url, Number: number, Text: text}, nil
}

// AddMember adds the voter m to headID's family group. A member given
// by id only is completed from the voter roll when possible.
func (s *Service) AddMember(ctx context.Context, headID string, m voter.Member) (voter.Member, bool, error) {
	if m.Name == "" {
		key := m.ID
		if key == "" {
			key = m.VoterID
		}
		if key != "" {
			if found, err := s.Voters.Get(ctx, key); err == nil {
				filled := voter.NewMember(found)
				if filled.ID == "" {
					filled.ID = m.ID
				}
				if filled.VoterID == "" {
					filled.VoterID = m.VoterID
				}
				m = filled
			}
		}
	}
	return s.Voters.AddMember(ctx, headID, m)
}

// Sync replays the pending writes.
func (s *Service) Sync(ctx context.Context) (pendingwrites.SyncResult, error) {
	return s.Queue.SyncAll(ctx)
}
