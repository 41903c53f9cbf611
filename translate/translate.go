// Package translate renders English voter roll fields in Marathi for
// the printed receipts, using the public Google Translate endpoint.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/janneta/canvass/voter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the translate endpoint queried by Text.
const DefaultBaseURL = "https://translate.googleapis.com/translate_a/single"

const (
	sourceLang  = "en"
	targetLang  = "mr"
	maxParallel = 8
)

// Client translates text. Failures never surface: the input is
// returned untranslated instead.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	logger     *zap.SugaredLogger
}

// New returns a client for the public endpoint.
func New(logger *zap.SugaredLogger) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Text returns s in Marathi, or s itself when the translation fails.
func (c *Client) Text(ctx context.Context, s string) string {
	if s == "" {
		return ""
	}
	out, err := c.translate(ctx, s)
	if err != nil {
		c.logger.Warnw("translation failed, keeping original text", "text", s, "error", err)
		return s
	}
	if out == "" {
		return s
	}
	return out
}

func (c *Client) translate(ctx context.Context, s string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", sourceLang)
	q.Set("tl", targetLang)
	q.Set("dt", "t")
	q.Set("q", s)
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build translate request, error %v", err)
	}
	resp, err := c.HTTPClient.Do(req.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to call translate, error %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate answered with status %d", resp.StatusCode)
	}
	var data []interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("failed to decode translate response, error %v", err)
	}
	return firstSegment(data), nil
}

// firstSegment returns data[0][0][0] when it is a string.
func firstSegment(data []interface{}) string {
	var cur interface{} = data
	for i := 0; i < 3; i++ {
		list, ok := cur.([]interface{})
		if !ok || len(list) == 0 {
			return ""
		}
		cur = list[0]
	}
	s, _ := cur.(string)
	return s
}

// Voter returns v with its printed fields translated.
func (c *Client) Voter(ctx context.Context, v voter.Voter) voter.Voter {
	v.Name = c.Text(ctx, v.Name)
	v.VoterID = c.Text(ctx, v.VoterID)
	v.SerialNumber = c.Text(ctx, v.SerialNumber)
	v.BoothNumber = c.Text(ctx, v.BoothNumber)
	v.PollingStationAddress = c.Text(ctx, v.PollingStationAddress)
	v.Gender = c.Text(ctx, v.Gender)
	v.Age = c.Text(ctx, v.Age)
	return v
}

// Family translates every member concurrently. The result keeps the
// order of members.
func (c *Client) Family(ctx context.Context, members []voter.Member) ([]voter.Member, error) {
	out := make([]voter.Member, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, m := range members {
		i, m := i, m
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m.Name = c.Text(gctx, m.Name)
			m.VoterID = c.Text(gctx, m.VoterID)
			m.BoothNumber = c.Text(gctx, m.BoothNumber)
			m.PollingStationAddress = c.Text(gctx, m.PollingStationAddress)
			m.Gender = c.Text(gctx, m.Gender)
			m.Age = c.Text(gctx, m.Age)
			out[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to translate family members, error %v", err)
	}
	return out, nil
}
