// Package voter looks up voters, saves their contact numbers and keeps
// the family groups canvassers build around a head voter.
package voter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/janneta/canvass/docstore"
	"github.com/janneta/canvass/localcache"
	"github.com/janneta/canvass/pendingwrites"
	"go.uber.org/zap"
)

var (
	// ErrMissingID is returned when a voter has neither id nor voterId.
	ErrMissingID = errors.New("voter has no id")

	// ErrNoWhatsApp is returned when no valid WhatsApp number is known
	// for a voter; the caller has to ask for one.
	ErrNoWhatsApp = errors.New("no whatsapp number available")

	// ErrAlreadyMember is returned when adding a voter that is already
	// in the family group.
	ErrAlreadyMember = errors.New("voter is already a family member")

	// ErrNotMember is returned when removing a voter that is not in
	// the family group.
	ErrNotMember = errors.New("voter is not a family member")

	// ErrInvalidContactKind is returned for contact kinds other than
	// whatsapp and phone.
	ErrInvalidContactKind = errors.New("invalid contact kind")
)

// ContactKind names the voter field a contact number is saved under.
type ContactKind string

const (
	WhatsApp ContactKind = "whatsapp"
	Phone    ContactKind = "phone"
)

const (
	familyMembersField = "familyMembers"
	whatsappField      = "whatsapp"
	rootNumberField    = "number"
	unknownName        = "Unknown"
	phoneDigits        = 10
)

// Service reads voters from the local cache and the remote store and
// writes surveys through the pending-write queue.
type Service struct {
	store  docstore.Store
	cache  *localcache.Cache
	queue  *pendingwrites.Queue
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewService returns a voter service.
func NewService(store docstore.Store, cache *localcache.Cache, queue *pendingwrites.Queue, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		queue:  queue,
		logger: logger,
		now:    time.Now,
	}
}

// Lookup returns the freshest known record of v. The local cache is
// tried first, then the remote voters collection (whose answer is
// cached). When neither has the voter the supplied record is returned.
func (s *Service) Lookup(ctx context.Context, v Voter) (Voter, error) {
	id := v.Key()
	if id == "" {
		return v, ErrMissingID
	}
	doc, err := s.find(ctx, id)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			s.logger.Warnw("voter lookup failed, using supplied record", "id", id, "error", err)
		}
		return v, nil
	}
	return FromDocument(docstore.Overlay(v.Document(), doc)), nil
}

// Get returns the voter stored under id, or an error wrapping
// docstore.ErrNotFound when neither the cache nor the remote store has
// it.
func (s *Service) Get(ctx context.Context, id string) (Voter, error) {
	if id == "" {
		return Voter{}, ErrMissingID
	}
	doc, err := s.find(ctx, id)
	if err != nil {
		return Voter{}, err
	}
	v := FromDocument(doc)
	if v.ID == "" && v.VoterID == "" {
		v.ID = id
	}
	return v, nil
}

func (s *Service) find(ctx context.Context, id string) (docstore.Document, error) {
	cached, ok, err := s.cached(ctx, id)
	if err != nil {
		s.logger.Warnw("failed to read voter from local cache", "id", id, "error", err)
	}
	if ok {
		return cached, nil
	}
	doc, err := s.store.Get(ctx, docstore.VotersCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("voter [%s]: %w", id, docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get voter [%s], error %v", id, err)
	}
	if err := s.cache.PutJSON(ctx, localcache.VoterKey(id), doc.Plain()); err != nil {
		s.logger.Warnw("failed to cache voter", "id", id, "error", err)
	}
	return doc, nil
}

func (s *Service) cached(ctx context.Context, id string) (docstore.Document, bool, error) {
	var m map[string]interface{}
	ok, err := s.cache.GetJSON(ctx, localcache.VoterKey(id), &m)
	if err != nil || !ok {
		return nil, false, err
	}
	return docstore.FromPlain(m), true, nil
}

// SaveContact stores number on the voter under kind and refreshes the
// cached mirror when there is one.
func (s *Service) SaveContact(ctx context.Context, id string, kind ContactKind, number string) error {
	if kind != WhatsApp && kind != Phone {
		return fmt.Errorf("%w: %q", ErrInvalidContactKind, kind)
	}
	if id == "" {
		return ErrMissingID
	}
	patch := docstore.Document{string(kind): number}
	if err := s.store.Merge(ctx, docstore.VotersCollection, id, patch); err != nil {
		return fmt.Errorf("failed to save %s number of voter [%s], error %v", kind, id, err)
	}
	cached, ok, err := s.cached(ctx, id)
	if err != nil {
		s.logger.Warnw("failed to read voter from local cache", "id", id, "error", err)
		return nil
	}
	if ok {
		if err := s.cache.PutJSON(ctx, localcache.VoterKey(id), docstore.Overlay(cached, patch).Plain()); err != nil {
			s.logger.Warnw("failed to update cached voter", "id", id, "error", err)
		}
	}
	return nil
}

// ResolveWhatsApp finds the number a receipt is sent to: the voter's
// own number, then the number saved on the voter's survey, then the
// campaign fallback number. Only 10-digit numbers qualify.
func (s *Service) ResolveWhatsApp(ctx context.Context, v Voter) (string, error) {
	if n, ok := tenDigits(v.WhatsApp); ok {
		return n, nil
	}
	if id := v.Key(); id != "" {
		survey, err := s.store.Get(ctx, docstore.SurveysCollection, id)
		switch {
		case err == nil:
			if n, ok := tenDigits(survey.String(whatsappField)); ok {
				return n, nil
			}
		case !errors.Is(err, docstore.ErrNotFound):
			s.logger.Warnw("failed to read voter survey", "id", id, "error", err)
		}
	}
	root, err := s.store.Get(ctx, docstore.WhatsAppRootCollection, docstore.RootDocument)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			s.logger.Warnw("failed to read fallback whatsapp number", "error", err)
		}
		return "", ErrNoWhatsApp
	}
	for _, field := range []string{rootNumberField, whatsappField} {
		if n, ok := tenDigits(root.String(field)); ok {
			return n, nil
		}
	}
	return "", ErrNoWhatsApp
}

func tenDigits(s string) (string, bool) {
	digits := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	return string(digits), len(digits) == phoneDigits
}

// Family returns the members of headID's family group. A write still
// waiting in the pending queue is the latest state and wins over the
// remote survey.
func (s *Service) Family(ctx context.Context, headID string) ([]Member, error) {
	if headID == "" {
		return nil, ErrMissingID
	}
	pending, ok, err := s.queue.Pending(ctx, headID, docstore.SurveysCollection)
	if err != nil {
		s.logger.Warnw("failed to read pending survey", "id", headID, "error", err)
	}
	if ok {
		if _, has := pending.Payload[familyMembersField]; has {
			return membersOf(pending.Payload[familyMembersField]), nil
		}
	}
	survey, err := s.store.Get(ctx, docstore.SurveysCollection, headID)
	if errors.Is(err, docstore.ErrNotFound) {
		return []Member{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family of voter [%s], error %v", headID, err)
	}
	return membersOf(survey[familyMembersField]), nil
}

// membersOf reads a stored familyMembers value. Lists keep their
// order; an object is read as its values ordered by key.
func membersOf(v interface{}) []Member {
	members := []Member{}
	add := func(item interface{}) {
		switch m := item.(type) {
		case docstore.Document:
			members = append(members, memberFromDocument(m))
		case map[string]interface{}:
			members = append(members, memberFromDocument(docstore.Document(m)))
		}
	}
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			add(item)
		}
	case docstore.Document:
		for _, k := range sortedKeys(t) {
			add(t[k])
		}
	case map[string]interface{}:
		for _, k := range sortedKeys(t) {
			add(t[k])
		}
	}
	return members
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

// editableFamily is Family for the add and remove paths. When the
// remote survey cannot be read the group is taken as empty, so the edit
// still reaches the pending queue.
func (s *Service) editableFamily(ctx context.Context, headID string) ([]Member, error) {
	members, err := s.Family(ctx, headID)
	if errors.Is(err, ErrMissingID) {
		return nil, err
	}
	if err != nil {
		s.logger.Warnw("family unreadable, editing it as empty", "head", headID, "error", err)
		return []Member{}, nil
	}
	return members, nil
}

// AddMember appends m to headID's family group. An empty id or voterId
// is filled from the other. It reports whether the write reached the
// remote store (false: it was queued).
func (s *Service) AddMember(ctx context.Context, headID string, m Member) (Member, bool, error) {
	if m.VoterID == "" && m.ID == "" {
		return m, false, ErrMissingID
	}
	if m.ID == "" {
		m.ID = m.VoterID
	}
	if m.VoterID == "" {
		m.VoterID = m.ID
	}
	members, err := s.editableFamily(ctx, headID)
	if err != nil {
		return m, false, err
	}
	for _, existing := range members {
		if existing.Same(m) {
			return m, false, ErrAlreadyMember
		}
	}
	if m.Name == "" {
		m.Name = unknownName
	}
	m.AddedAt = millis(s.now())
	saved, err := s.writeFamily(ctx, headID, append(members, m))
	return m, saved, err
}

// RemoveMember removes the member whose voterId or id is memberID.
// Removing the last member stores an empty list.
func (s *Service) RemoveMember(ctx context.Context, headID, memberID string) (bool, error) {
	members, err := s.editableFamily(ctx, headID)
	if err != nil {
		return false, err
	}
	kept := make([]Member, 0, len(members))
	for _, m := range members {
		if !m.matches(memberID) {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(members) {
		return false, ErrNotMember
	}
	return s.writeFamily(ctx, headID, kept)
}

func (s *Service) writeFamily(ctx context.Context, headID string, members []Member) (bool, error) {
	list := make([]interface{}, len(members))
	for i, m := range members {
		list[i] = m.document()
	}
	payload := docstore.Document{
		familyMembersField:             list,
		pendingwrites.LastUpdatedField: millis(s.now()),
	}
	saved, err := s.queue.SaveOrEnqueue(ctx, docstore.SurveysCollection, headID, payload)
	if err != nil {
		return false, fmt.Errorf("failed to save family of voter [%s], error %v", headID, err)
	}
	s.logger.Infow("family group saved", "head", headID, "members", len(members), "online", saved)
	return saved, nil
}

// SaveSurveyWhatsApp stores number on headID's survey.
func (s *Service) SaveSurveyWhatsApp(ctx context.Context, headID, number string) (bool, error) {
	if headID == "" {
		return false, ErrMissingID
	}
	payload := docstore.Document{
		whatsappField:                  number,
		pendingwrites.LastUpdatedField: millis(s.now()),
	}
	saved, err := s.queue.SaveOrEnqueue(ctx, docstore.SurveysCollection, headID, payload)
	if err != nil {
		return false, fmt.Errorf("failed to save whatsapp number of voter [%s], error %v", headID, err)
	}
	return saved, nil
}

func millis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
