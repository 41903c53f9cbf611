// Package candidate holds the campaign branding printed on receipts and
// used in shared messages.
package candidate

import (
	"context"
	"fmt"
	"io/ioutil"
	"sync"

	"github.com/janneta/canvass/localcache"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// CacheKey is the local cache key the branding is persisted under.
const CacheKey = "candidateInfo"

// Info is the candidate branding.
type Info struct {
	Name                      string `json:"name" yaml:"name"`
	Party                     string `json:"party" yaml:"party"`
	ElectionSymbol            string `json:"electionSymbol" yaml:"electionSymbol"`
	Slogan                    string `json:"slogan" yaml:"slogan"`
	Area                      string `json:"area" yaml:"area"`
	Contact                   string `json:"contact" yaml:"contact"`
	TagLine                   string `json:"tagLine" yaml:"tagLine"`
	ResellerName              string `json:"resellerName" yaml:"resellerName"`
	MainFrontImage            string `json:"mainFrontImage" yaml:"mainFrontImage"`
	MainWhatsappBrandingImage string `json:"mainWhatsappBrandingImage" yaml:"mainWhatsappBrandingImage"`
	LogoImageCircle           string `json:"logoImageCircle" yaml:"logoImageCircle"`
}

// Defaults returns the built-in branding.
func Defaults() Info {
	return Info{
		Name:                      "डॉ.दिलीप रत्नपारखी",
		Party:                     "Bhartiya Janta Party",
		ElectionSymbol:            "कमळ",
		Slogan:                    "सबका साथ, सबका विकास",
		Area:                      "मंगरूळ नगर परिषद निवडणूक 2025",
		Contact:                   "",
		TagLine:                   "मंगरूळ नगर परिषद निवडणूक 2025",
		ResellerName:              "Packy Media Services - Powered By JanNetaa",
		MainFrontImage:            "/frontstaringbanner.jpg",
		MainWhatsappBrandingImage: "/frontbanner.jpg",
		LogoImageCircle:           "/jannetaa.jpg",
	}
}

// Merge returns i with every non-empty field of patch set on it.
func (i Info) Merge(patch Info) Info {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&i.Name, patch.Name)
	set(&i.Party, patch.Party)
	set(&i.ElectionSymbol, patch.ElectionSymbol)
	set(&i.Slogan, patch.Slogan)
	set(&i.Area, patch.Area)
	set(&i.Contact, patch.Contact)
	set(&i.TagLine, patch.TagLine)
	set(&i.ResellerName, patch.ResellerName)
	set(&i.MainFrontImage, patch.MainFrontImage)
	set(&i.MainWhatsappBrandingImage, patch.MainWhatsappBrandingImage)
	set(&i.LogoImageCircle, patch.LogoImageCircle)
	return i
}

// ReadFile reads branding overrides from a YAML file.
func ReadFile(path string) (Info, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to read candidate file [%s], error %v", path, err)
	}
	var info Info
	if err := yaml.Unmarshal(b, &info); err != nil {
		return Info{}, fmt.Errorf("failed to parse candidate file [%s], error %v", path, err)
	}
	return info, nil
}

// Store is the process-wide branding, persisted in the local cache.
type Store struct {
	mu     sync.RWMutex
	info   Info
	cache  *localcache.Cache
	logger *zap.SugaredLogger
}

// Load builds the branding from the defaults, then the copy saved in
// the local cache, then the YAML file at path (when path is not empty),
// and writes the result back to the cache.
func Load(ctx context.Context, cache *localcache.Cache, path string, logger *zap.SugaredLogger) (*Store, error) {
	info := Defaults()
	var saved Info
	ok, err := cache.GetJSON(ctx, CacheKey, &saved)
	if err != nil {
		logger.Warnw("ignoring unreadable cached candidate info", "error", err)
	}
	if ok {
		info = info.Merge(saved)
	}
	if path != "" {
		fromFile, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		info = info.Merge(fromFile)
	}
	s := &Store{info: info, cache: cache, logger: logger}
	if err := s.save(ctx, info); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the current branding.
func (s *Store) Get() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Update merges the non-empty fields of patch into the branding.
func (s *Store) Update(ctx context.Context, patch Info) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.info.Merge(patch)
	if err := s.save(ctx, info); err != nil {
		return s.info, err
	}
	s.info = info
	return info, nil
}

// Reset restores the built-in branding.
func (s *Store) Reset(ctx context.Context) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Defaults()
	if err := s.save(ctx, info); err != nil {
		return s.info, err
	}
	s.info = info
	return info, nil
}

func (s *Store) save(ctx context.Context, info Info) error {
	if err := s.cache.PutJSON(ctx, CacheKey, info); err != nil {
		return fmt.Errorf("failed to save candidate info, error %v", err)
	}
	s.logger.Infow("candidate info saved", "name", info.Name)
	return nil
}
